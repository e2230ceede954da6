// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package taskstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sentinel/lib/reschedule"
	"github.com/bureau-foundation/sentinel/lib/sqlitepool"
	"github.com/bureau-foundation/sentinel/lib/taskinstance"
)

const schema = `
CREATE TABLE IF NOT EXISTS task_instances (
	workflow_id  TEXT    NOT NULL,
	task_id      TEXT    NOT NULL,
	logical_date INTEGER NOT NULL,
	state        TEXT    NOT NULL,
	try_number   INTEGER NOT NULL,
	max_tries    INTEGER NOT NULL,
	start_date   INTEGER,
	end_date     INTEGER,
	PRIMARY KEY (workflow_id, task_id, logical_date)
);

CREATE TABLE IF NOT EXISTS task_reschedules (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	workflow_id     TEXT    NOT NULL,
	task_id         TEXT    NOT NULL,
	logical_date    INTEGER NOT NULL,
	try_number      INTEGER NOT NULL,
	start_date      INTEGER NOT NULL,
	reschedule_date INTEGER NOT NULL,
	duration        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS task_reschedules_instance
	ON task_reschedules (workflow_id, task_id, logical_date, id);
`

// Config holds the parameters for Open.
type Config struct {
	// Path is the database file. Required.
	Path string

	// PoolSize is passed to sqlitepool.
	PoolSize int

	// Logger receives store lifecycle messages. Nil discards them.
	Logger *slog.Logger
}

// SQLite stores task instances and reschedule records in one SQLite
// database. Safe for concurrent use.
type SQLite struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config) (*SQLite, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("taskstore: %w", err)
	}
	return &SQLite{pool: pool, logger: logger}, nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

// Get implements taskinstance.Store.
func (s *SQLite) Get(ctx context.Context, key taskinstance.Key) (taskinstance.TaskInstance, error) {
	var (
		ti    taskinstance.TaskInstance
		found bool
	)
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT state, try_number, max_tries, start_date, end_date
			 FROM task_instances
			 WHERE workflow_id = ? AND task_id = ? AND logical_date = ?`,
			&sqlitex.ExecOptions{
				Args: []any{key.WorkflowID, key.TaskID, key.LogicalDate.UnixNano()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					ti = taskinstance.TaskInstance{
						Key:       key,
						State:     taskinstance.State(stmt.ColumnText(0)),
						TryNumber: stmt.ColumnInt(1),
						MaxTries:  stmt.ColumnInt(2),
						StartDate: columnTime(stmt, 3),
						EndDate:   columnTime(stmt, 4),
					}
					return nil
				},
			})
	})
	if err != nil {
		return taskinstance.TaskInstance{}, fmt.Errorf("taskstore: get %s: %w", key, err)
	}
	if !found {
		return taskinstance.TaskInstance{}, taskinstance.ErrNotFound
	}
	return ti, nil
}

// Put implements taskinstance.Store.
func (s *SQLite) Put(ctx context.Context, ti taskinstance.TaskInstance) error {
	err := s.pool.Transact(ctx, func(conn *sqlite.Conn) error {
		return putInstance(conn, ti)
	})
	if err != nil {
		return fmt.Errorf("taskstore: put %s: %w", ti.Key, err)
	}
	return nil
}

// Append implements reschedule.Ledger.
func (s *SQLite) Append(ctx context.Context, record reschedule.Record) (reschedule.Record, error) {
	if err := validateRecord(record); err != nil {
		return reschedule.Record{}, err
	}
	err := s.pool.Transact(ctx, func(conn *sqlite.Conn) error {
		id, err := insertRecord(conn, record)
		record.ID = id
		return err
	})
	if err != nil {
		return reschedule.Record{}, fmt.Errorf("taskstore: append reschedule for %s: %w", record.Key, err)
	}
	return record, nil
}

// FindFor implements reschedule.Ledger.
func (s *SQLite) FindFor(ctx context.Context, key taskinstance.Key) ([]reschedule.Record, error) {
	var records []reschedule.Record
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT id, try_number, start_date, reschedule_date
			 FROM task_reschedules
			 WHERE workflow_id = ? AND task_id = ? AND logical_date = ?
			 ORDER BY id`,
			&sqlitex.ExecOptions{
				Args: []any{key.WorkflowID, key.TaskID, key.LogicalDate.UnixNano()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					records = append(records, reschedule.Record{
						ID:             stmt.ColumnInt64(0),
						Key:            key,
						TryNumber:      stmt.ColumnInt(1),
						StartDate:      columnTime(stmt, 2),
						RescheduleDate: columnTime(stmt, 3),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("taskstore: find reschedules for %s: %w", key, err)
	}
	return records, nil
}

// CommitReschedule stores ti and appends record in one IMMEDIATE
// transaction.
func (s *SQLite) CommitReschedule(ctx context.Context, ti taskinstance.TaskInstance, record reschedule.Record) (reschedule.Record, error) {
	if err := validateRecord(record); err != nil {
		return reschedule.Record{}, err
	}
	err := s.pool.Transact(ctx, func(conn *sqlite.Conn) error {
		if err := putInstance(conn, ti); err != nil {
			return err
		}
		id, err := insertRecord(conn, record)
		record.ID = id
		return err
	})
	if err != nil {
		return reschedule.Record{}, fmt.Errorf("taskstore: commit reschedule for %s: %w", ti.Key, err)
	}
	s.logger.Debug("reschedule committed",
		"task_instance", ti.Key.String(),
		"try", record.TryNumber,
		"reschedule_date", record.RescheduleDate,
	)
	return record, nil
}

func putInstance(conn *sqlite.Conn, ti taskinstance.TaskInstance) error {
	return sqlitex.Execute(conn,
		`INSERT INTO task_instances
			(workflow_id, task_id, logical_date, state, try_number, max_tries, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workflow_id, task_id, logical_date) DO UPDATE SET
			state = excluded.state,
			try_number = excluded.try_number,
			max_tries = excluded.max_tries,
			start_date = excluded.start_date,
			end_date = excluded.end_date`,
		&sqlitex.ExecOptions{
			Args: []any{
				ti.Key.WorkflowID,
				ti.Key.TaskID,
				ti.Key.LogicalDate.UnixNano(),
				string(ti.State),
				ti.TryNumber,
				ti.MaxTries,
				nullableTime(ti.StartDate),
				nullableTime(ti.EndDate),
			},
		})
}

func insertRecord(conn *sqlite.Conn, record reschedule.Record) (int64, error) {
	err := sqlitex.Execute(conn,
		`INSERT INTO task_reschedules
			(workflow_id, task_id, logical_date, try_number, start_date, reschedule_date, duration)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.Key.WorkflowID,
				record.Key.TaskID,
				record.Key.LogicalDate.UnixNano(),
				record.TryNumber,
				record.StartDate.UnixNano(),
				record.RescheduleDate.UnixNano(),
				int64(record.Duration()),
			},
		})
	if err != nil {
		return 0, err
	}
	return conn.LastInsertRowID(), nil
}

func validateRecord(record reschedule.Record) error {
	if record.TryNumber < 1 {
		return fmt.Errorf("taskstore: reschedule try number %d < 1", record.TryNumber)
	}
	if record.StartDate.IsZero() {
		return errors.New("taskstore: reschedule start date is required")
	}
	if record.RescheduleDate.Before(record.StartDate) {
		return fmt.Errorf("taskstore: reschedule date %v before start date %v",
			record.RescheduleDate, record.StartDate)
	}
	return nil
}

// Times are stored as Unix nanoseconds; a zero time is NULL.

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func columnTime(stmt *sqlite.Stmt, column int) time.Time {
	if stmt.ColumnIsNull(column) {
		return time.Time{}
	}
	return time.Unix(0, stmt.ColumnInt64(column)).UTC()
}
