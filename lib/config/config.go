// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for sentinel.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures file and directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Auth configures the role model.
	Auth AuthConfig `yaml:"auth"`

	// Sensor holds the defaults applied to sensors declared in
	// workflow manifests.
	Sensor SensorConfig `yaml:"sensor"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Auth   *AuthConfig   `yaml:"auth,omitempty"`
	Sensor *SensorConfig `yaml:"sensor,omitempty"`
}

// PathsConfig configures file and directory locations.
type PathsConfig struct {
	// Root is the base directory for sentinel data.
	Root string `yaml:"root"`

	// Database is the SQLite file holding task instances, reschedule
	// records, and the permission catalog.
	Database string `yaml:"database"`

	// Manifests is the directory of workflow manifests (*.jsonc).
	Manifests string `yaml:"manifests"`
}

// AuthConfig configures the role model.
type AuthConfig struct {
	// PublicRole is the role granted to anonymous principals. Empty
	// means anonymous principals have no access.
	PublicRole string `yaml:"public_role"`

	// AdminRole is the role that bypasses permission checks.
	// Default: Admin
	AdminRole string `yaml:"admin_role"`

	// CustomRoles are created by role sync in addition to the
	// baseline roles. They start with no permissions.
	CustomRoles []string `yaml:"custom_roles"`
}

// SensorConfig holds sensor defaults. Intervals are in seconds.
type SensorConfig struct {
	// Mode is "poke" or "reschedule".
	// Default: poke
	Mode string `yaml:"mode"`

	// PokeInterval is the wait between pokes.
	// Default: 60
	PokeInterval float64 `yaml:"poke_interval"`

	// Timeout bounds one try's poll cycle.
	// Default: 604800 (seven days)
	Timeout float64 `yaml:"timeout"`

	// MaxPokeInterval caps exponential backoff. Zero means no cap.
	MaxPokeInterval float64 `yaml:"max_poke_interval"`

	ExponentialBackoff bool `yaml:"exponential_backoff"`
	SoftFail           bool `yaml:"soft_fail"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "sentinel")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:      defaultRoot,
			Database:  filepath.Join(defaultRoot, "sentinel.db"),
			Manifests: filepath.Join(defaultRoot, "workflows"),
		},
		Auth: AuthConfig{
			PublicRole: "Public",
			AdminRole:  "Admin",
		},
		Sensor: SensorConfig{
			Mode:         "poke",
			PokeInterval: 60,
			Timeout:      7 * 24 * 60 * 60,
		},
	}
}

// Load loads configuration from SENTINEL_CONFIG environment variable.
//
// There are no fallbacks or defaults: if SENTINEL_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("SENTINEL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SENTINEL_CONFIG environment variable not set; " +
			"set it to the path of your sentinel.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. The only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: no anonymous access.
		if overrides == nil || overrides.Auth == nil || overrides.Auth.PublicRole == "" {
			c.Auth.PublicRole = ""
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Database != "" {
			c.Paths.Database = overrides.Paths.Database
		}
		if overrides.Paths.Manifests != "" {
			c.Paths.Manifests = overrides.Paths.Manifests
		}
	}

	if overrides.Auth != nil {
		if overrides.Auth.PublicRole != "" {
			c.Auth.PublicRole = overrides.Auth.PublicRole
		}
		if overrides.Auth.AdminRole != "" {
			c.Auth.AdminRole = overrides.Auth.AdminRole
		}
		if overrides.Auth.CustomRoles != nil {
			c.Auth.CustomRoles = overrides.Auth.CustomRoles
		}
	}

	if overrides.Sensor != nil {
		if overrides.Sensor.Mode != "" {
			c.Sensor.Mode = overrides.Sensor.Mode
		}
		if overrides.Sensor.PokeInterval != 0 {
			c.Sensor.PokeInterval = overrides.Sensor.PokeInterval
		}
		if overrides.Sensor.Timeout != 0 {
			c.Sensor.Timeout = overrides.Sensor.Timeout
		}
		if overrides.Sensor.MaxPokeInterval != 0 {
			c.Sensor.MaxPokeInterval = overrides.Sensor.MaxPokeInterval
		}
		// Booleans are always applied from overrides.
		c.Sensor.ExponentialBackoff = overrides.Sensor.ExponentialBackoff
		c.Sensor.SoftFail = overrides.Sensor.SoftFail
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"SENTINEL_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["SENTINEL_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Database = expandVars(c.Paths.Database, vars)
	c.Paths.Manifests = expandVars(c.Paths.Manifests, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Database == "" {
		errs = append(errs, fmt.Errorf("paths.database is required"))
	}
	if c.Paths.Manifests == "" {
		errs = append(errs, fmt.Errorf("paths.manifests is required"))
	}

	if c.Auth.AdminRole == "" {
		errs = append(errs, fmt.Errorf("auth.admin_role is required"))
	}
	for _, role := range c.Auth.CustomRoles {
		if role == "" {
			errs = append(errs, fmt.Errorf("auth.custom_roles contains an empty name"))
		}
	}

	modes := []string{"poke", "reschedule"}
	if !slices.Contains(modes, c.Sensor.Mode) {
		errs = append(errs, fmt.Errorf("sensor.mode must be one of: %v", modes))
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"sensor.poke_interval", c.Sensor.PokeInterval},
		{"sensor.timeout", c.Sensor.Timeout},
		{"sensor.max_poke_interval", c.Sensor.MaxPokeInterval},
	} {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) || field.value < 0 {
			errs = append(errs, fmt.Errorf("%s must be a non-negative number of seconds", field.name))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the data root and the database's parent
// directory if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.Database),
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
