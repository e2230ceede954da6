// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permsync keeps roles and per-workflow permissions in a
// permission.Store in line with their declarations.
//
// [Syncer.SyncResourcePermissions] makes the bindings on one resource
// equal to an access control: it validates every role and action
// first, then grants what is missing and revokes what is no longer
// declared in one store transaction. [Syncer.SyncRoles] creates the
// baseline roles, gives Admin every base permission and then runs
// [Syncer.CreateResourceSpecificPermissions], which syncs only the
// discovered workflows whose access control is new or changed.
//
// Every operation reads the store in bulk a fixed number of times,
// independent of how many roles or resources exist.
package permsync
