// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"context"
	"errors"
)

// ErrRoleNotFound is returned by Store.Role for an unknown role.
var ErrRoleNotFound = errors.New("permission: role not found")

// Catalog is a bulk snapshot of the permission objects that exist and
// of the access-control fingerprints recorded per resource.
type Catalog struct {
	Permissions  PermissionSet
	Fingerprints map[string]string
}

// RolesChange is an additive change to roles, applied atomically.
type RolesChange struct {
	// CreateRoles are created with no permissions.
	CreateRoles []string

	// Ensure are permission objects to create if missing.
	Ensure []Permission

	// Grant binds permissions to roles. Each permission must exist or
	// be listed in Ensure.
	Grant []Binding
}

// Empty reports whether the change does nothing.
func (c RolesChange) Empty() bool {
	return len(c.CreateRoles) == 0 && len(c.Ensure) == 0 && len(c.Grant) == 0
}

// ResourceChange replaces the bindings of one resource, applied
// atomically: no reader observes the grants without the revocations.
type ResourceChange struct {
	Resource string

	// Ensure are permission objects on Resource to create if missing.
	Ensure []Permission

	Grant  []Binding
	Revoke []Binding

	// Fingerprint, when non-empty, is stored as the resource's current
	// access-control fingerprint.
	Fingerprint string

	// AccessControl is the declaration the fingerprint was taken from.
	// Stores that keep it record it alongside the fingerprint.
	AccessControl AccessControl
}

// Store persists roles, permission objects and role bindings. Every
// read method is a single bulk read.
type Store interface {
	// Roles returns every role with its permissions.
	Roles(ctx context.Context) ([]Role, error)

	// Role returns one role, or ErrRoleNotFound.
	Role(ctx context.Context, name string) (Role, error)

	// Catalog returns every permission object and fingerprint.
	Catalog(ctx context.Context) (Catalog, error)

	// ApplyRoles applies change in one transaction.
	ApplyRoles(ctx context.Context, change RolesChange) error

	// ApplyResource applies change in one transaction. Granting to an
	// unknown role fails the whole change.
	ApplyResource(ctx context.Context, change ResourceChange) error
}
