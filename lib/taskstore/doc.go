// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskstore persists task instances and their reschedule
// records. [SQLite] keeps both in one database so that a reschedule
// (instance update plus record insert) commits in a single IMMEDIATE
// transaction; [Memory] offers the same contract in process memory.
//
// Both types satisfy taskinstance.Store, reschedule.Ledger and the
// taskrun.Store interface.
package taskstore
