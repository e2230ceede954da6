// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package access answers permission questions for principals against a
// permission.Store.
//
// A principal is allowed an (action, resource) pair when any of its
// roles holds that permission. Two wider rules apply:
//
//   - A role holding the action on the all-workflows resource
//     (permission.ResourceWorkflows) is allowed that action on every
//     per-workflow resource. It is not allowed anything on other base
//     resources, and it is never allowed a different action.
//   - The configured admin role is allowed everything.
//
// # Anonymous principals
//
// An anonymous principal holds exactly the configured public role. With
// no public role configured it holds no roles and is denied everything.
//
// # Results
//
// [Evaluator.Check] returns a [Result] carrying the decision and the
// rule that produced it, for CLI diagnostics and audit logging. The
// boolean helpers are thin wrappers over Check.
package access
