// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reschedule is the append-only ledger of reschedule cycles.
//
// Every time a reschedule-mode sensor finishes an invocation without
// its condition being met, one Record is appended: the task instance,
// the try number, when the invocation started and when the
// orchestrator should invoke the sensor again. Records are never
// updated or deleted. Records of earlier tries are kept; everything
// that reasons about a try filters by try number.
//
// The ledger answers two questions for the engine. [StartedAt] gives
// the start of the current try's poll cycle, which is what the sensor
// timeout is measured against. [ReadyAt] gives the earliest time the
// orchestrator may re-invoke an up_for_reschedule instance.
package reschedule
