// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskinstance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of a task instance.
type State string

const (
	StateNone            State = "none"
	StateRunning         State = "running"
	StateSuccess         State = "success"
	StateFailed          State = "failed"
	StateUpForRetry      State = "up_for_retry"
	StateUpForReschedule State = "up_for_reschedule"
	StateSkipped         State = "skipped"
)

// Terminal reports whether no further attempt will be scheduled
// without external intervention.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateSkipped:
		return true
	}
	return false
}

// Key identifies a task instance.
type Key struct {
	WorkflowID  string
	TaskID      string
	LogicalDate time.Time
}

func (k Key) String() string {
	return fmt.Sprintf("%s.%s@%s", k.WorkflowID, k.TaskID, k.LogicalDate.UTC().Format(time.RFC3339))
}

// TaskInstance is one scheduled execution of a task.
type TaskInstance struct {
	Key Key

	State State

	// TryNumber is the number of attempts started so far.
	TryNumber int

	// MaxTries is the retry ceiling; see the package documentation.
	MaxTries int

	// StartDate is when the current try's first invocation began. It
	// survives reschedules and resets when a new try starts.
	StartDate time.Time

	// EndDate is when the instance last reached a terminal or waiting
	// state. Zero while running.
	EndDate time.Time
}

// New returns a never-run instance with the given retry budget.
func New(key Key, retries int) TaskInstance {
	return TaskInstance{
		Key:      key,
		State:    StateNone,
		MaxTries: retries,
	}
}

// EligibleForRetry reports whether a failure of the current attempt
// should lead to up_for_retry rather than failed.
func (ti TaskInstance) EligibleForRetry() bool {
	return ti.TryNumber <= ti.MaxTries
}

// ErrNotFound is returned by Store.Get for an unknown key.
var ErrNotFound = errors.New("taskinstance: not found")

// Store persists task instances.
type Store interface {
	// Get returns the instance for key, or ErrNotFound.
	Get(ctx context.Context, key Key) (TaskInstance, error)

	// Put inserts or replaces the instance.
	Put(ctx context.Context, ti TaskInstance) error
}
