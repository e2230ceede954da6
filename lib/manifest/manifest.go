// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest reads workflow manifests: JSONC files (JSON with
// comments and trailing commas) declaring a workflow's access control
// and the sensors it runs. A directory of manifests is the workflow
// discovery source for permission sync.
//
//	// deploy/workflows/ingest.jsonc
//	{
//	  "access_control": {"data-eng": ["can_read", "can_edit"]},
//	  "sensors": [
//	    {"task_id": "wait_for_file", "mode": "reschedule", "poke_interval": 30, "timeout": 3600},
//	  ],
//	}
//
// The workflow id defaults to the file name without its extension.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/sentinel/lib/permission"
	"github.com/bureau-foundation/sentinel/lib/sensor"
)

// Workflow is one parsed manifest.
type Workflow struct {
	// ID is the workflow id. Defaults to the file name.
	ID string `json:"workflow_id"`

	Description string `json:"description,omitempty"`

	// AccessControl maps role names to actions. Absent or null means
	// the workflow declares no access control, which is different from
	// an empty object (declared, with no grants).
	AccessControl permission.AccessControl `json:"access_control"`

	Sensors []SensorSpec `json:"sensors,omitempty"`
}

// SensorSpec declares one sensor task. Intervals are in seconds; an
// absent field keeps the default.
type SensorSpec struct {
	TaskID             string   `json:"task_id"`
	Mode               string   `json:"mode,omitempty"`
	PokeInterval       *float64 `json:"poke_interval,omitempty"`
	Timeout            *float64 `json:"timeout,omitempty"`
	MaxPokeInterval    *float64 `json:"max_poke_interval,omitempty"`
	ExponentialBackoff bool     `json:"exponential_backoff,omitempty"`
	SoftFail           bool     `json:"soft_fail,omitempty"`
	Retries            int      `json:"retries,omitempty"`
}

// Config returns base with the spec's settings applied. Invalid values
// produce a *sensor.ConfigurationError.
func (s SensorSpec) Config(base sensor.Config) (sensor.Config, error) {
	config := base
	config.Name = s.TaskID
	if s.Mode != "" {
		mode, err := sensor.ParseMode(s.Mode)
		if err != nil {
			return sensor.Config{}, err
		}
		config.Mode = mode
	}
	for _, field := range []struct {
		name   string
		value  *float64
		target *time.Duration
	}{
		{"poke_interval", s.PokeInterval, &config.PokeInterval},
		{"timeout", s.Timeout, &config.Timeout},
		{"max_poke_interval", s.MaxPokeInterval, &config.MaxPokeInterval},
	} {
		if field.value == nil {
			continue
		}
		duration, err := sensor.Seconds(field.name, *field.value)
		if err != nil {
			return sensor.Config{}, err
		}
		*field.target = duration
	}
	config.ExponentialBackoff = config.ExponentialBackoff || s.ExponentialBackoff
	config.SoftFail = config.SoftFail || s.SoftFail
	return config, nil
}

// Parse strips JSONC comments and trailing commas from data and decodes
// the manifest. Unknown fields are rejected. defaultID is used when the
// manifest does not name its workflow.
func Parse(data []byte, defaultID string) (*Workflow, error) {
	decoder := json.NewDecoder(strings.NewReader(string(jsonc.ToJSON(data))))
	decoder.DisallowUnknownFields()

	var workflow Workflow
	if err := decoder.Decode(&workflow); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if workflow.ID == "" {
		workflow.ID = defaultID
	}
	return &workflow, nil
}

// ReadFile reads and parses the manifest at path.
func ReadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	workflow, err := Parse(data, NameFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return workflow, nil
}

// NameFromPath returns the file name of path without its extension:
// "deploy/workflows/ingest.jsonc" gives "ingest".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
