// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskrun drives a sensor through the task-instance lifecycle.
//
// [Runner.Run] is one invocation as seen by the orchestrator: it loads
// the instance, starts or resumes an attempt, executes the sensor and
// persists the resulting transition. A reschedule is persisted as the
// instance update plus a reschedule record in one transaction, so a
// reader never sees one without the other.
//
// Attempt bookkeeping:
//
//   - Resuming from up_for_reschedule keeps the try number and the
//     instance start date.
//   - Any other start increments the try number and resets the start
//     date.
//   - A failure moves the instance to up_for_retry while TryNumber <=
//     MaxTries and to failed afterwards.
//   - [Runner.Clear] resets the instance to none and raises MaxTries to
//     TryNumber plus the given retries, so exhausted tries no longer
//     count against the new ceiling.
package taskrun
