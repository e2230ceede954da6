// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool is the SQLite connection pool shared by the task
// store and the permission store.
//
// It wraps zombiezen.com/go/sqlite with the pragmas both stores rely
// on: WAL journal mode so permission checks never block on a sync in
// progress, NORMAL synchronous, a busy timeout so concurrent writers
// queue instead of failing with SQLITE_BUSY, and foreign keys off (the
// stores maintain their own referential integrity inside explicit
// transactions).
//
// Callers [Pool.Take] a connection and [Pool.Put] it back; a
// connection is never shared between goroutines. [Pool.Transact]
// covers the common case of running a function inside a single
// IMMEDIATE transaction, which is how the task store commits a state
// transition together with its reschedule record and how the
// permission store applies a resource's grants and revocations as one
// unit.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/sentinel/sentinel.db",
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
package sqlitepool
