// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskstore

import (
	"context"
	"sync"

	"github.com/bureau-foundation/sentinel/lib/reschedule"
	"github.com/bureau-foundation/sentinel/lib/taskinstance"
)

// Memory is an in-process store. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu        sync.Mutex
	instances map[taskinstance.Key]taskinstance.TaskInstance
	ledger    *reschedule.MemoryLedger
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		instances: make(map[taskinstance.Key]taskinstance.TaskInstance),
		ledger:    reschedule.NewMemoryLedger(),
	}
}

// Get implements taskinstance.Store.
func (m *Memory) Get(_ context.Context, key taskinstance.Key) (taskinstance.TaskInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ti, ok := m.instances[normalize(key)]
	if !ok {
		return taskinstance.TaskInstance{}, taskinstance.ErrNotFound
	}
	return ti, nil
}

// Put implements taskinstance.Store.
func (m *Memory) Put(_ context.Context, ti taskinstance.TaskInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[normalize(ti.Key)] = ti
	return nil
}

// Append implements reschedule.Ledger.
func (m *Memory) Append(ctx context.Context, record reschedule.Record) (reschedule.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Append(ctx, record)
}

// FindFor implements reschedule.Ledger.
func (m *Memory) FindFor(ctx context.Context, key taskinstance.Key) ([]reschedule.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.FindFor(ctx, key)
}

// CommitReschedule stores ti and appends record as one step: readers
// never observe one without the other, and a rejected record leaves
// ti unchanged.
func (m *Memory) CommitReschedule(ctx context.Context, ti taskinstance.TaskInstance, record reschedule.Record) (reschedule.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.ledger.Append(ctx, record)
	if err != nil {
		return reschedule.Record{}, err
	}
	m.instances[normalize(ti.Key)] = ti
	return stored, nil
}

func normalize(key taskinstance.Key) taskinstance.Key {
	key.LogicalDate = key.LogicalDate.UTC().Round(0)
	return key
}
