// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sensor

import (
	"context"
	"errors"
	"time"

	"github.com/bureau-foundation/sentinel/lib/reschedule"
	"github.com/bureau-foundation/sentinel/lib/taskinstance"
)

// OutcomeKind tags the non-error result of an invocation.
type OutcomeKind int

const (
	// OutcomeSuccess means the condition was met.
	OutcomeSuccess OutcomeKind = iota + 1

	// OutcomeRescheduled means the invocation ended without the
	// condition being met and asks to run again at RescheduleDate.
	OutcomeRescheduled

	// OutcomeSkipped means the timeout expired under SoftFail.
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRescheduled:
		return "rescheduled"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome is the result of one invocation.
type Outcome struct {
	Kind OutcomeKind

	// RescheduleDate is set for OutcomeRescheduled.
	RescheduleDate time.Time

	// InvocationStart is when Execute began.
	InvocationStart time.Time

	// Pokes is the number of Poke calls made.
	Pokes int
}

// Invocation describes one call of Execute.
type Invocation struct {
	// TaskInstance is the instance being sensed, already marked as
	// running for its current try.
	TaskInstance taskinstance.TaskInstance

	// Reschedules holds the instance's reschedule records, all tries.
	Reschedules []reschedule.Record

	// Deadline, when non-zero, is an external wall-clock bound on the
	// invocation. Reaching it aborts the poll loop with a
	// *TimeoutError regardless of the sensor's own timeout.
	Deadline time.Time
}

// Execute runs the poll loop for one invocation. See the package
// documentation for the meaning of each outcome and error.
func (s *Sensor) Execute(ctx context.Context, invocation Invocation) (Outcome, error) {
	clock := s.config.Clock
	invocationStart := clock.Now()
	try := invocation.TaskInstance.TryNumber

	startedAt := invocationStart
	attempt := 1
	if s.Mode() == ModeReschedule {
		startedAt = reschedule.StartedAt(invocation.Reschedules, try, invocationStart)
		attempt = len(reschedule.ForTry(invocation.Reschedules, try)) + 1
	}
	runDuration := func() time.Duration { return clock.Now().Sub(startedAt) }
	identity := invocation.TaskInstance.Key.String()

	outcome := Outcome{InvocationStart: invocationStart}
	logger := s.logger.With("task_instance", identity, "try", try)

	for {
		if err := s.interrupted(ctx, invocation.Deadline); err != nil {
			return outcome, &TimeoutError{Elapsed: runDuration(), Timeout: s.config.Timeout, Cause: err}
		}

		pokeContext := &PokeContext{
			TaskInstance: invocation.TaskInstance,
			Attempt:      attempt,
			StartedAt:    startedAt,
			Logger:       logger,
			sensor:       s,
		}
		done, err := s.poker.Poke(ctx, pokeContext)
		outcome.Pokes++

		if pokeContext.violation != nil {
			return outcome, pokeContext.violation
		}
		if err != nil {
			var rescheduleSignal *RescheduleError
			if errors.As(err, &rescheduleSignal) {
				logger.Debug("poke requested reschedule", "reschedule_date", rescheduleSignal.Date)
				outcome.Kind = OutcomeRescheduled
				outcome.RescheduleDate = rescheduleSignal.Date
				if now := clock.Now(); outcome.RescheduleDate.Before(now) {
					outcome.RescheduleDate = now
				}
				return outcome, nil
			}
			return outcome, err
		}
		if done {
			logger.Debug("poke succeeded", "attempt", attempt)
			outcome.Kind = OutcomeSuccess
			return outcome, nil
		}

		elapsed := runDuration()
		if elapsed >= s.config.Timeout {
			if s.config.SoftFail {
				logger.Info("sensor timed out, skipping", "elapsed", elapsed, "timeout", s.config.Timeout)
				outcome.Kind = OutcomeSkipped
				return outcome, nil
			}
			return outcome, &TimeoutError{Elapsed: elapsed, Timeout: s.config.Timeout}
		}

		interval := s.config.NextPokeInterval(identity, startedAt, runDuration, attempt)

		if s.Mode() == ModeReschedule {
			outcome.Kind = OutcomeRescheduled
			outcome.RescheduleDate = clock.Now().Add(interval)
			logger.Debug("poke not satisfied, rescheduling",
				"attempt", attempt, "reschedule_date", outcome.RescheduleDate)
			return outcome, nil
		}

		logger.Debug("poke not satisfied, waiting", "attempt", attempt, "interval", interval)
		if err := s.wait(ctx, interval, invocation.Deadline); err != nil {
			return outcome, &TimeoutError{Elapsed: runDuration(), Timeout: s.config.Timeout, Cause: err}
		}
		attempt++
	}
}

// errDeadlineReached is the Cause of a TimeoutError produced by
// Invocation.Deadline.
var errDeadlineReached = errors.New("execution deadline reached")

func (s *Sensor) interrupted(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !deadline.IsZero() && !s.config.Clock.Now().Before(deadline) {
		return errDeadlineReached
	}
	return nil
}

// wait blocks for interval on the sensor's clock. Cancellation of ctx
// or reaching deadline cuts the wait short and returns the cause.
func (s *Sensor) wait(ctx context.Context, interval time.Duration, deadline time.Time) error {
	clock := s.config.Clock
	var deadlineChannel <-chan time.Time
	if !deadline.IsZero() {
		remaining := deadline.Sub(clock.Now())
		if remaining <= interval {
			deadlineChannel = clock.After(remaining)
		}
	}
	if deadlineChannel != nil {
		select {
		case <-deadlineChannel:
			return errDeadlineReached
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case <-clock.After(interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
