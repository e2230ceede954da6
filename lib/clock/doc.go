// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the sensor
// engine and the task runner.
//
// Production code accepts a Clock instead of calling time.Now or
// time.After directly. Real() is the wall clock in UTC. Fake()
// returns a deterministic clock that moves only when the test calls
// Advance, which is what lets sensor tests step through poke-mode
// waits and reschedule cycles without sleeping.
//
// # FakeClock Synchronization
//
// A goroutine blocked in After or Sleep registers a pending waiter.
// Tests call WaitForTimers before Advance so the advance cannot race
// the registration:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go func() { done <- sensor.Execute(ctx, invocation) }()
//	c.WaitForTimers(1)          // the poke loop is now waiting
//	c.Advance(10 * time.Second) // release it
package clock
