// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permsync

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/sentinel/lib/permission"
)

// ErrSync matches every validation failure of a sync call through
// errors.Is.
var ErrSync = errors.New("permsync: sync failed")

// RoleNotFoundError reports an access control naming a role that does
// not exist. Nothing was written for Resource.
type RoleNotFoundError struct {
	Resource string
	Role     string
}

func (e *RoleNotFoundError) Error() string {
	return fmt.Sprintf("permsync: access control for %s includes role %q, but that role does not exist",
		e.Resource, e.Role)
}

func (e *RoleNotFoundError) Is(target error) bool { return target == ErrSync }

// InvalidPermissionError reports actions that cannot be granted on
// Resource. Nothing was written for Resource.
type InvalidPermissionError struct {
	Resource string
	Role     string
	Actions  []permission.Action
	Allowed  []permission.Action
}

func (e *InvalidPermissionError) Error() string {
	return fmt.Sprintf("permsync: access control for %s includes invalid permissions %v for role %q; valid permissions are %v",
		e.Resource, e.Actions, e.Role, e.Allowed)
}

func (e *InvalidPermissionError) Is(target error) bool { return target == ErrSync }
