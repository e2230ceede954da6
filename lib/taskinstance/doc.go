// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskinstance defines the task-instance record the sensor
// engine reads and writes.
//
// A task instance is owned by the orchestrator. The engine touches
// only its state, try number, max tries and start/end dates; identity
// (workflow, task, logical date) is immutable.
//
// TryNumber counts attempts that have started. It is zero for an
// instance that has never run and increments when an attempt begins
// from any state other than up_for_reschedule: a reschedule resumes the
// same attempt, a retry or a clear starts a new one. MaxTries is the
// number of retries the instance may still consume; an attempt that
// fails while TryNumber <= MaxTries goes to up_for_retry, otherwise to
// failed. Clearing raises MaxTries so previously exhausted tries do not
// count against the new ceiling.
package taskinstance
