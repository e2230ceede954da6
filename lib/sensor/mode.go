// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

// Mode selects how a sensor waits between pokes.
type Mode string

const (
	// ModePoke blocks inside the invocation between pokes.
	ModePoke Mode = "poke"

	// ModeReschedule ends the invocation after every unsuccessful
	// poke and asks to be invoked again later.
	ModeReschedule Mode = "reschedule"
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(value string) (Mode, error) {
	mode := Mode(value)
	if !mode.valid() {
		return "", &ConfigurationError{Field: "mode", Value: value, Reason: "must be one of poke, reschedule"}
	}
	return mode, nil
}

func (m Mode) valid() bool {
	return m == ModePoke || m == ModeReschedule
}

// PokeModeOnlyPoker is implemented by pokers that must never run in
// reschedule mode, typically because they hold in-process state
// between pokes that would be lost when the invocation ends.
type PokeModeOnlyPoker interface {
	Poker
	PokeModeOnly() bool
}

func isPokeModeOnly(poker Poker) bool {
	restricted, ok := poker.(PokeModeOnlyPoker)
	return ok && restricted.PokeModeOnly()
}

// validateMode is the single check shared by New and SetMode.
func validateMode(name string, mode Mode, pokeModeOnly bool) error {
	if !mode.valid() {
		return &ConfigurationError{Field: "mode", Value: string(mode), Reason: "must be one of poke, reschedule"}
	}
	if pokeModeOnly && mode != ModePoke {
		return &ModeViolationError{Sensor: name, Requested: mode}
	}
	return nil
}

func (m Mode) String() string {
	if m == "" {
		return "<unset>"
	}
	return string(m)
}
