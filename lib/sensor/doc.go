// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sensor implements the poll loop of a sensor: a task that
// waits for an external condition by repeatedly calling a [Poker]
// until it reports true, the timeout expires, or the loop hands
// control back to the orchestrator.
//
// # Modes
//
// In poke mode ([ModePoke]) one invocation blocks between pokes,
// holding its worker slot for up to the whole timeout window. In
// reschedule mode ([ModeReschedule]) every unsuccessful poke ends the
// invocation with an [OutcomeRescheduled] carrying the time of the
// next invocation, releasing the worker slot in between. The caller
// (see package taskrun) persists that outcome as a reschedule record.
//
// # Outcomes
//
// [Sensor.Execute] returns a tagged [Outcome] for the non-error paths
// (success, rescheduled, skipped) and a typed error otherwise:
//
//   - [*TimeoutError] when the condition was not met within Timeout
//     and SoftFail is off, or when the context or execution deadline
//     ended the wait.
//   - [*ModeViolationError] when a poke-mode-only sensor was pushed
//     out of poke mode.
//   - Any error returned by the Poker, unchanged. The one exception is
//     [*RescheduleError] (see [RescheduleAt]), a control signal that a
//     Poker returns to ask for a specific next-invocation time; it
//     becomes an OutcomeRescheduled, never an error.
//
// # Timeout accounting
//
// The timeout is measured from the start of the current try's poll
// cycle. In reschedule mode that is the StartDate of the try's first
// reschedule record, so the window spans all reschedule cycles of the
// try; a retry or a clear starts a new try and a new window.
//
// # Poke-mode-only pokers
//
// A Poker that implements [PokeModeOnlyPoker] and returns true can
// only run in poke mode. [New] rejects any other mode and
// [Sensor.SetMode] refuses to leave poke mode. A Poker that attempts
// the switch from inside Poke through [PokeContext.SetMode] fails the
// invocation that poke belongs to; other invocations of the same
// Sensor are unaffected.
package sensor
