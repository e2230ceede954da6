// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestReal_NowIsUTC(t *testing.T) {
	now := Real().Now()
	if now.Location() != time.UTC {
		t.Errorf("Real().Now() location = %v, want UTC", now.Location())
	}
}

func TestReal_AfterNonPositiveFiresImmediately(t *testing.T) {
	select {
	case <-Real().After(0):
	case <-time.After(5 * time.Second):
		t.Fatal("Real().After(0) did not fire")
	}
}

func TestSince(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := Fake(start)
	fake.Advance(90 * time.Second)
	if got := Since(fake, start); got != 90*time.Second {
		t.Errorf("Since = %v, want 90s", got)
	}
}
