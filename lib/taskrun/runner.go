// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/sentinel/lib/clock"
	"github.com/bureau-foundation/sentinel/lib/reschedule"
	"github.com/bureau-foundation/sentinel/lib/sensor"
	"github.com/bureau-foundation/sentinel/lib/taskinstance"
)

// ErrNotReadyToReschedule is returned by Run when a reschedule-mode
// sensor is invoked before its latest reschedule date.
var ErrNotReadyToReschedule = errors.New("taskrun: not ready to reschedule")

// ErrTerminal is returned by Run for an instance that already finished
// as success, skipped or failed. Clear makes it runnable again.
var ErrTerminal = errors.New("taskrun: task instance is finished")

// Store is the persistence the runner needs. CommitReschedule must
// store the instance and append the record atomically.
type Store interface {
	taskinstance.Store
	reschedule.Ledger
	CommitReschedule(ctx context.Context, ti taskinstance.TaskInstance, record reschedule.Record) (reschedule.Record, error)
}

// RunOptions tunes one Run call.
type RunOptions struct {
	// Retries is the retry budget given to an instance that does not
	// exist yet. Ignored for existing instances.
	Retries int

	// TestMode executes the sensor without persisting anything. The
	// ready-to-reschedule check is skipped and finished instances may
	// be tested.
	TestMode bool

	// Deadline is passed to the sensor as an external execution
	// deadline. Zero means none.
	Deadline time.Time
}

// Result describes what a Run did.
type Result struct {
	// TaskInstance is the instance after the transition. In test mode
	// it is the transition that would have been stored.
	TaskInstance taskinstance.TaskInstance

	// Outcome is the sensor's outcome. Zero when the sensor failed.
	Outcome sensor.Outcome

	// Record is the appended reschedule record, when the run was
	// rescheduled outside test mode.
	Record *reschedule.Record
}

// Runner executes sensors for task instances.
type Runner struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewRunner returns a Runner. A nil logger discards output.
func NewRunner(store Store, clk clock.Clock, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{store: store, clock: clk, logger: logger}
}

// Run performs one invocation of s for the instance identified by key.
//
// The sensor's error, if any, is returned unchanged after the failure
// transition has been stored. Errors from the store are joined with it
// so both remain visible to errors.Is and errors.As.
func (r *Runner) Run(ctx context.Context, key taskinstance.Key, s *sensor.Sensor, options RunOptions) (Result, error) {
	ti, err := r.store.Get(ctx, key)
	if errors.Is(err, taskinstance.ErrNotFound) {
		ti = taskinstance.New(key, options.Retries)
	} else if err != nil {
		return Result{}, fmt.Errorf("taskrun: loading %s: %w", key, err)
	}

	if !options.TestMode && ti.State.Terminal() {
		return Result{TaskInstance: ti}, fmt.Errorf("%w: %s is %s", ErrTerminal, key, ti.State)
	}

	records, err := r.store.FindFor(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("taskrun: loading reschedules for %s: %w", key, err)
	}

	now := r.clock.Now()
	if !options.TestMode && s.RequiresRescheduleReadiness() && ti.State == taskinstance.StateUpForReschedule &&
		!reschedule.ReadyAt(records, now) {
		latest, _ := reschedule.Latest(records)
		return Result{TaskInstance: ti}, fmt.Errorf("%w: %s until %s",
			ErrNotReadyToReschedule, key, latest.RescheduleDate.UTC().Format(time.RFC3339))
	}

	if ti.State != taskinstance.StateUpForReschedule || ti.TryNumber == 0 {
		ti.TryNumber++
		ti.StartDate = now
	}
	ti.State = taskinstance.StateRunning
	ti.EndDate = time.Time{}

	logger := r.logger.With("task_instance", key.String(), "try", ti.TryNumber, "test_mode", options.TestMode)
	if !options.TestMode {
		if err := r.store.Put(ctx, ti); err != nil {
			return Result{}, fmt.Errorf("taskrun: starting %s: %w", key, err)
		}
	}
	logger.Info("sensor invocation started", "mode", s.Mode())

	outcome, executeErr := s.Execute(ctx, sensor.Invocation{
		TaskInstance: ti,
		Reschedules:  records,
		Deadline:     options.Deadline,
	})
	ti.EndDate = r.clock.Now()

	if executeErr != nil {
		if ti.EligibleForRetry() {
			ti.State = taskinstance.StateUpForRetry
		} else {
			ti.State = taskinstance.StateFailed
		}
		logger.Warn("sensor invocation failed", "state", ti.State, "error", executeErr)
		if !options.TestMode {
			if err := r.store.Put(ctx, ti); err != nil {
				return Result{TaskInstance: ti}, errors.Join(executeErr,
					fmt.Errorf("taskrun: storing failure of %s: %w", key, err))
			}
		}
		return Result{TaskInstance: ti}, executeErr
	}

	result := Result{Outcome: outcome}
	switch outcome.Kind {
	case sensor.OutcomeSuccess:
		ti.State = taskinstance.StateSuccess
	case sensor.OutcomeSkipped:
		ti.State = taskinstance.StateSkipped
	case sensor.OutcomeRescheduled:
		ti.State = taskinstance.StateUpForReschedule
		record := reschedule.Record{
			Key:            key,
			TryNumber:      ti.TryNumber,
			StartDate:      outcome.InvocationStart,
			RescheduleDate: outcome.RescheduleDate,
		}
		result.TaskInstance = ti
		logger.Info("sensor rescheduled", "reschedule_date", record.RescheduleDate)
		if options.TestMode {
			return result, nil
		}
		stored, err := r.store.CommitReschedule(ctx, ti, record)
		if err != nil {
			return result, fmt.Errorf("taskrun: rescheduling %s: %w", key, err)
		}
		result.Record = &stored
		return result, nil
	default:
		return Result{TaskInstance: ti}, fmt.Errorf("taskrun: %s: unexpected sensor outcome %v", key, outcome.Kind)
	}

	result.TaskInstance = ti
	logger.Info("sensor invocation finished", "state", ti.State, "pokes", outcome.Pokes)
	if !options.TestMode {
		if err := r.store.Put(ctx, ti); err != nil {
			return result, fmt.Errorf("taskrun: storing %s: %w", key, err)
		}
	}
	return result, nil
}

// Clear resets the instance for key so the next Run starts a fresh try
// with retries more attempts available. The ceiling never drops: an
// instance that already had a larger budget keeps it.
func (r *Runner) Clear(ctx context.Context, key taskinstance.Key, retries int) (taskinstance.TaskInstance, error) {
	if retries < 0 {
		return taskinstance.TaskInstance{}, fmt.Errorf("taskrun: clear %s: negative retries %d", key, retries)
	}
	ti, err := r.store.Get(ctx, key)
	if err != nil {
		return taskinstance.TaskInstance{}, fmt.Errorf("taskrun: clear %s: %w", key, err)
	}

	ti.State = taskinstance.StateNone
	ti.MaxTries = max(ti.MaxTries, ti.TryNumber+retries)
	ti.EndDate = time.Time{}
	if err := r.store.Put(ctx, ti); err != nil {
		return taskinstance.TaskInstance{}, fmt.Errorf("taskrun: clear %s: %w", key, err)
	}
	r.logger.Info("task instance cleared", "task_instance", key.String(), "max_tries", ti.MaxTries)
	return ti, nil
}
