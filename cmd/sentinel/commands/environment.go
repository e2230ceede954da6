// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/sentinel/lib/config"
	"github.com/bureau-foundation/sentinel/lib/permission"
	"github.com/bureau-foundation/sentinel/lib/permstore"
	"github.com/bureau-foundation/sentinel/lib/sensor"
	"github.com/bureau-foundation/sentinel/lib/taskinstance"
	"github.com/bureau-foundation/sentinel/lib/taskstore"
)

// ConfigParams is embedded by every command that reads configuration.
// Embedded params types are exported so reflection can bind their
// fields.
type ConfigParams struct {
	ConfigPath string `json:"-" flag:"config" desc:"path to sentinel.yaml (default: $SENTINEL_CONFIG)"`
}

func (p ConfigParams) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p.ConfigPath != "" {
		cfg, err = config.LoadFile(p.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openPermissionStore(cfg *config.Config, logger *slog.Logger) (*permstore.Store, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return permstore.Open(permstore.Config{Path: cfg.Paths.Database, Logger: logger})
}

func openTaskStore(cfg *config.Config, logger *slog.Logger) (*taskstore.SQLite, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return taskstore.Open(taskstore.Config{Path: cfg.Paths.Database, Logger: logger})
}

// customRoles turns the configured custom role names into definitions
// with no permissions of their own.
func customRoles(cfg *config.Config) []permission.RoleDefinition {
	definitions := make([]permission.RoleDefinition, 0, len(cfg.Auth.CustomRoles))
	for _, name := range cfg.Auth.CustomRoles {
		definitions = append(definitions, permission.RoleDefinition{Name: name})
	}
	return definitions
}

// sensorDefaults converts the configured sensor section into the base
// configuration manifest sensors are applied to.
func sensorDefaults(cfg *config.Config) (sensor.Config, error) {
	base := sensor.DefaultConfig()
	mode, err := sensor.ParseMode(cfg.Sensor.Mode)
	if err != nil {
		return sensor.Config{}, err
	}
	base.Mode = mode
	for _, field := range []struct {
		name   string
		value  float64
		target *time.Duration
	}{
		{"poke_interval", cfg.Sensor.PokeInterval, &base.PokeInterval},
		{"timeout", cfg.Sensor.Timeout, &base.Timeout},
		{"max_poke_interval", cfg.Sensor.MaxPokeInterval, &base.MaxPokeInterval},
	} {
		duration, err := sensor.Seconds(field.name, field.value)
		if err != nil {
			return sensor.Config{}, err
		}
		*field.target = duration
	}
	base.ExponentialBackoff = cfg.Sensor.ExponentialBackoff
	base.SoftFail = cfg.Sensor.SoftFail
	return base, base.Validate()
}

// TaskParams identify one task instance.
type TaskParams struct {
	WorkflowID  string `json:"workflow_id" flag:"workflow" desc:"workflow id (required)"`
	TaskID      string `json:"task_id" flag:"task" desc:"task id (required)"`
	LogicalDate string `json:"logical_date" flag:"logical-date" desc:"logical date, RFC 3339 (required)"`
}

func (p TaskParams) key() (taskinstance.Key, error) {
	if p.WorkflowID == "" || p.TaskID == "" || p.LogicalDate == "" {
		return taskinstance.Key{}, errors.New("--workflow, --task, --logical-date: all required")
	}
	logicalDate, err := time.Parse(time.RFC3339, p.LogicalDate)
	if err != nil {
		return taskinstance.Key{}, fmt.Errorf("--logical-date: %w", err)
	}
	return taskinstance.Key{WorkflowID: p.WorkflowID, TaskID: p.TaskID, LogicalDate: logicalDate}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
