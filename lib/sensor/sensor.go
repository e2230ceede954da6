// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/sentinel/lib/taskinstance"
)

// Poker checks the external condition a sensor waits for.
type Poker interface {
	// Poke returns true once the condition holds. Returning an error
	// made by RescheduleAt requests a specific next-invocation time;
	// any other error aborts the attempt and is returned unchanged.
	Poke(ctx context.Context, pokeContext *PokeContext) (bool, error)
}

// PokerFunc adapts a function to the Poker interface.
type PokerFunc func(ctx context.Context, pokeContext *PokeContext) (bool, error)

// Poke calls f.
func (f PokerFunc) Poke(ctx context.Context, pokeContext *PokeContext) (bool, error) {
	return f(ctx, pokeContext)
}

// PokeContext is what a Poker sees on each call.
type PokeContext struct {
	TaskInstance taskinstance.TaskInstance

	// Attempt is the 1-based poke number within the try's poll cycle.
	Attempt int

	// StartedAt is the start of the try's poll cycle.
	StartedAt time.Time

	Logger *slog.Logger

	sensor *Sensor

	// violation is a refused SetMode made during this poke. Execute
	// fails the invocation with it even if the Poker dropped the error.
	violation error
}

// Mode returns the running sensor's current mode.
func (p *PokeContext) Mode() Mode { return p.sensor.Mode() }

// SetMode switches the running sensor's mode, like Sensor.SetMode. A
// refused switch also fails the invocation this poke belongs to, and
// only that invocation.
func (p *PokeContext) SetMode(mode Mode) error {
	err := p.sensor.SetMode(mode)
	if _, isViolation := err.(*ModeViolationError); isViolation {
		p.violation = err
	}
	return err
}

// Sensor runs a Poker under a Config. A Sensor may be executed for
// many task instances concurrently; the only mutable state is its mode.
type Sensor struct {
	config       Config
	poker        Poker
	pokeModeOnly bool
	logger       *slog.Logger

	mu   sync.Mutex
	mode Mode
}

// New validates config and returns a Sensor. Invalid intervals or mode
// produce a *ConfigurationError; a poke-mode-only poker configured for
// reschedule mode produces a *ModeViolationError.
func New(config Config, poker Poker) (*Sensor, error) {
	if poker == nil {
		return nil, &ConfigurationError{Field: "poker", Value: nil, Reason: "is required"}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	pokeModeOnly := isPokeModeOnly(poker)
	if err := validateMode(config.Name, config.Mode, pokeModeOnly); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Sensor{
		config:       config,
		poker:        poker,
		pokeModeOnly: pokeModeOnly,
		logger:       logger.With("sensor", config.Name),
		mode:         config.Mode,
	}, nil
}

// Name returns the configured sensor name.
func (s *Sensor) Name() string { return s.config.Name }

// Config returns the sensor's configuration with the current mode.
func (s *Sensor) Config() Config {
	config := s.config
	config.Mode = s.Mode()
	return config
}

// Mode returns the current mode.
func (s *Sensor) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the sensor's mode. Switching a poke-mode-only sensor
// to anything but ModePoke fails with *ModeViolationError and leaves the
// mode unchanged; setting ModePoke always succeeds.
func (s *Sensor) SetMode(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateMode(s.config.Name, mode, s.pokeModeOnly); err != nil {
		return err
	}
	s.mode = mode
	return nil
}

// RequiresRescheduleReadiness reports whether the orchestrator must
// hold back invocations until the latest reschedule date has passed.
// Only reschedule-mode sensors carry this dependency.
func (s *Sensor) RequiresRescheduleReadiness() bool {
	return s.Mode() == ModeReschedule
}
