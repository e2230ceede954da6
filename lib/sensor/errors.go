// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"fmt"
	"time"
)

// ConfigurationError reports an invalid sensor setting. It is raised
// at construction and is never retried.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sensor: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// TimeoutError reports that the poked condition did not become true
// within the timeout window. Cause is set when a context cancellation
// or execution deadline ended the wait instead.
type TimeoutError struct {
	Elapsed time.Duration
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sensor: poll aborted after %v: %v", e.Elapsed, e.Cause)
	}
	return fmt.Sprintf("sensor: timed out after %v (timeout %v)", e.Elapsed, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// RescheduleError asks for the next invocation at Date. Pokers return
// it through RescheduleAt; the engine turns it into an
// OutcomeRescheduled.
type RescheduleError struct {
	Date time.Time
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("sensor: reschedule requested for %s", e.Date.UTC().Format(time.RFC3339))
}

// RescheduleAt returns the signal a Poker uses to request a specific
// next-invocation time.
func RescheduleAt(date time.Time) error {
	return &RescheduleError{Date: date}
}

// ModeViolationError reports an attempt to run or switch a
// poke-mode-only sensor in another mode.
type ModeViolationError struct {
	Sensor    string
	Requested Mode
}

func (e *ModeViolationError) Error() string {
	return fmt.Sprintf("sensor %q only supports poke mode, cannot use mode %s", e.Sensor, e.Requested)
}
