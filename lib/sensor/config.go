// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/sentinel/lib/clock"
)

// Config holds a sensor's polling parameters.
type Config struct {
	// Name identifies the sensor in logs and errors, usually the task
	// id.
	Name string

	// PokeInterval is the wait between pokes. Must be >= 0.
	PokeInterval time.Duration

	// Timeout bounds the poll cycle of one try. Must be >= 0.
	Timeout time.Duration

	// Mode is ModePoke or ModeReschedule.
	Mode Mode

	// ExponentialBackoff grows the wait between pokes; see
	// NextPokeInterval.
	ExponentialBackoff bool

	// MaxPokeInterval caps the backed-off wait. Zero means no cap.
	// When set it must be >= PokeInterval.
	MaxPokeInterval time.Duration

	// SoftFail turns a timeout into a skip instead of an error.
	SoftFail bool

	// Clock is required.
	Clock clock.Clock

	// Logger receives poke-level debug messages. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns a poke-mode configuration with a one-minute
// poke interval and a seven-day timeout.
func DefaultConfig() Config {
	return Config{
		PokeInterval: time.Minute,
		Timeout:      7 * 24 * time.Hour,
		Mode:         ModePoke,
		Clock:        clock.Real(),
	}
}

// Validate reports the first invalid setting as a *ConfigurationError.
func (c Config) Validate() error {
	if c.PokeInterval < 0 {
		return &ConfigurationError{Field: "poke_interval", Value: c.PokeInterval, Reason: "must be a non-negative number"}
	}
	if c.Timeout < 0 {
		return &ConfigurationError{Field: "timeout", Value: c.Timeout, Reason: "must be a non-negative number"}
	}
	if c.MaxPokeInterval < 0 {
		return &ConfigurationError{Field: "max_poke_interval", Value: c.MaxPokeInterval, Reason: "must be a non-negative number"}
	}
	if c.MaxPokeInterval > 0 && c.MaxPokeInterval < c.PokeInterval {
		return &ConfigurationError{Field: "max_poke_interval", Value: c.MaxPokeInterval,
			Reason: fmt.Sprintf("must not be below poke_interval %v", c.PokeInterval)}
	}
	if !c.Mode.valid() {
		return &ConfigurationError{Field: "mode", Value: string(c.Mode), Reason: "must be one of poke, reschedule"}
	}
	if c.Clock == nil {
		return &ConfigurationError{Field: "clock", Value: nil, Reason: "is required"}
	}
	return nil
}

// Seconds converts a number of seconds to a Duration, rejecting
// negative, NaN, infinite and out-of-range values with a
// ConfigurationError naming field.
func Seconds(field string, value float64) (time.Duration, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, &ConfigurationError{Field: field, Value: value, Reason: "must be a finite number"}
	}
	if value < 0 {
		return 0, &ConfigurationError{Field: field, Value: value, Reason: "must be a non-negative number"}
	}
	if value > float64(math.MaxInt64)/float64(time.Second) {
		return 0, &ConfigurationError{Field: field, Value: value, Reason: "is out of range"}
	}
	return time.Duration(value * float64(time.Second)), nil
}

// ParseSeconds is Seconds for values that arrive as text (YAML, CLI
// flags). Non-numeric text is a ConfigurationError.
func ParseSeconds(field, value string) (time.Duration, error) {
	number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, &ConfigurationError{Field: field, Value: value, Reason: "must be a number of seconds"}
	}
	return Seconds(field, number)
}
