// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reschedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/sentinel/lib/taskinstance"
)

// Record is one reschedule cycle.
type Record struct {
	// ID orders records by creation. Assigned by the ledger on Append.
	ID int64

	Key       taskinstance.Key
	TryNumber int

	// StartDate is when the rescheduling invocation began.
	StartDate time.Time

	// RescheduleDate is the earliest time of the next invocation.
	RescheduleDate time.Time
}

// Duration is the wait this record requested.
func (r Record) Duration() time.Duration {
	return r.RescheduleDate.Sub(r.StartDate)
}

// Ledger stores reschedule records.
type Ledger interface {
	// Append stores record and returns it with its ID assigned.
	Append(ctx context.Context, record Record) (Record, error)

	// FindFor returns every record for key in creation order.
	FindFor(ctx context.Context, key taskinstance.Key) ([]Record, error)
}

// MemoryLedger is a Ledger held in process memory.
type MemoryLedger struct {
	mu      sync.Mutex
	nextID  int64
	records map[taskinstance.Key][]Record
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[taskinstance.Key][]Record)}
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, record Record) (Record, error) {
	if record.TryNumber < 1 {
		return Record{}, fmt.Errorf("reschedule: append: try number %d < 1", record.TryNumber)
	}
	if record.RescheduleDate.Before(record.StartDate) {
		return Record{}, fmt.Errorf("reschedule: append: reschedule date %v before start date %v",
			record.RescheduleDate, record.StartDate)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	record.ID = l.nextID
	l.records[normalizeKey(record.Key)] = append(l.records[normalizeKey(record.Key)], record)
	return record, nil
}

// FindFor implements Ledger.
func (l *MemoryLedger) FindFor(_ context.Context, key taskinstance.Key) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored := l.records[normalizeKey(key)]
	if len(stored) == 0 {
		return nil, nil
	}
	result := make([]Record, len(stored))
	copy(result, stored)
	return result, nil
}

// normalizeKey strips the monotonic reading and location from the
// logical date so equal instants map to the same entry.
func normalizeKey(key taskinstance.Key) taskinstance.Key {
	key.LogicalDate = key.LogicalDate.UTC().Round(0)
	return key
}
