// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permstore implements permission.Store on SQLite. Each read
// method runs on one pooled connection; each Apply method is one
// IMMEDIATE transaction, so a failed change leaves no trace.
package permstore
