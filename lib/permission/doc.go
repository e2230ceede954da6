// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission defines the role-based access control model
// shared by the permission synchronizer (package permsync) and the
// access evaluator (package access).
//
// A [Permission] is an (action, resource) pair. A [Role] holds a set of
// permissions; principals hold roles. Workflows are protected by
// per-workflow resources named "WORKFLOW:<id>" (see
// [ResourceNameForWorkflow]) in addition to the all-workflows resource
// [ResourceWorkflows].
//
// The package also defines the [Store] contract the synchronizer writes
// through, an in-memory implementation ([MemoryStore]) and the
// access-control [Fingerprint] used to skip unchanged resources.
package permission
