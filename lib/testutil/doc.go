// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for sentinel packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so tests that drive a poke loop through a fake clock do
// not hang forever when the loop misbehaves. They are the only place
// tests touch a real wall-clock timer.
//
// [RequireErrorAs] asserts that an error chain contains a given typed
// error and returns it for further inspection.
//
// All helpers call t.Fatalf on failure.
//
// This package has no sentinel-internal dependencies.
package testutil
