// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/sentinel/lib/reschedule"
	"github.com/bureau-foundation/sentinel/lib/taskinstance"
)

// contractStore is the surface both implementations share.
type contractStore interface {
	taskinstance.Store
	reschedule.Ledger
	CommitReschedule(ctx context.Context, ti taskinstance.TaskInstance, record reschedule.Record) (reschedule.Record, error)
}

var (
	logicalDate = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	key         = taskinstance.Key{WorkflowID: "ingest", TaskID: "wait_for_file", LogicalDate: logicalDate}
)

func stores(t *testing.T) map[string]contractStore {
	t.Helper()
	sqliteStore, err := Open(Config{Path: filepath.Join(t.TempDir(), "tasks.db"), PoolSize: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]contractStore{
		"memory": NewMemory(),
		"sqlite": sqliteStore,
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), key)
			if !errors.Is(err, taskinstance.ErrNotFound) {
				t.Fatalf("Get error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ti := taskinstance.New(key, 2)
			ti.State = taskinstance.StateRunning
			ti.TryNumber = 1
			ti.StartDate = logicalDate.Add(time.Minute)

			if err := store.Put(ctx, ti); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := store.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.State != taskinstance.StateRunning || got.TryNumber != 1 || got.MaxTries != 2 {
				t.Errorf("Get = %+v", got)
			}
			if !got.StartDate.Equal(ti.StartDate) {
				t.Errorf("StartDate = %v, want %v", got.StartDate, ti.StartDate)
			}
			if !got.EndDate.IsZero() {
				t.Errorf("EndDate = %v, want zero", got.EndDate)
			}

			ti.State = taskinstance.StateSuccess
			ti.EndDate = logicalDate.Add(2 * time.Minute)
			if err := store.Put(ctx, ti); err != nil {
				t.Fatalf("Put update: %v", err)
			}
			got, err = store.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get after update: %v", err)
			}
			if got.State != taskinstance.StateSuccess || !got.EndDate.Equal(ti.EndDate) {
				t.Errorf("Get after update = %+v", got)
			}
		})
	}
}

func TestStore_LogicalDateLocationIgnored(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Put(ctx, taskinstance.New(key, 0)); err != nil {
				t.Fatalf("Put: %v", err)
			}
			shifted := key
			shifted.LogicalDate = logicalDate.In(time.FixedZone("UTC+5", 5*3600))
			if _, err := store.Get(ctx, shifted); err != nil {
				t.Errorf("Get with shifted location: %v", err)
			}
		})
	}
}

func TestStore_CommitRescheduleAccumulates(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ti := taskinstance.New(key, 0)
			ti.State = taskinstance.StateUpForReschedule
			ti.TryNumber = 1

			start := logicalDate.Add(time.Hour)
			var ids []int64
			for i := range 3 {
				record, err := store.CommitReschedule(ctx, ti, reschedule.Record{
					Key:            key,
					TryNumber:      1,
					StartDate:      start.Add(time.Duration(i) * 10 * time.Second),
					RescheduleDate: start.Add(time.Duration(i+1) * 10 * time.Second),
				})
				if err != nil {
					t.Fatalf("CommitReschedule %d: %v", i, err)
				}
				ids = append(ids, record.ID)
			}
			if !(ids[0] < ids[1] && ids[1] < ids[2]) {
				t.Errorf("record IDs %v not increasing", ids)
			}

			records, err := store.FindFor(ctx, key)
			if err != nil {
				t.Fatalf("FindFor: %v", err)
			}
			if len(records) != 3 {
				t.Fatalf("FindFor returned %d records, want 3", len(records))
			}
			if records[0].Duration() != 10*time.Second {
				t.Errorf("Duration = %v, want 10s", records[0].Duration())
			}
			if !records[2].RescheduleDate.Equal(start.Add(30 * time.Second)) {
				t.Errorf("last RescheduleDate = %v", records[2].RescheduleDate)
			}

			got, err := store.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.State != taskinstance.StateUpForReschedule {
				t.Errorf("State = %v, want up_for_reschedule", got.State)
			}
		})
	}
}

func TestStore_CommitRescheduleRejectsInvalidRecord(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ti := taskinstance.New(key, 0)
			ti.State = taskinstance.StateUpForReschedule

			_, err := store.CommitReschedule(ctx, ti, reschedule.Record{
				Key:            key,
				TryNumber:      0,
				StartDate:      logicalDate,
				RescheduleDate: logicalDate,
			})
			if err == nil {
				t.Fatal("CommitReschedule accepted try number 0")
			}
			if _, err := store.Get(ctx, key); !errors.Is(err, taskinstance.ErrNotFound) {
				t.Errorf("instance stored despite rejected record: %v", err)
			}
		})
	}
}

func TestStore_FindForSeparatesInstances(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			other := key
			other.LogicalDate = logicalDate.AddDate(0, 0, 1)

			for _, k := range []taskinstance.Key{key, other} {
				_, err := store.Append(ctx, reschedule.Record{
					Key: k, TryNumber: 1, StartDate: logicalDate, RescheduleDate: logicalDate.Add(time.Second),
				})
				if err != nil {
					t.Fatalf("Append: %v", err)
				}
			}
			records, err := store.FindFor(ctx, key)
			if err != nil {
				t.Fatalf("FindFor: %v", err)
			}
			if len(records) != 1 {
				t.Errorf("FindFor returned %d records, want 1", len(records))
			}
		})
	}
}
