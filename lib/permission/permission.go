// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"slices"
	"strings"
)

// Action is a verb a role may be granted on a resource.
type Action string

const (
	ActionCanCreate     Action = "can_create"
	ActionCanRead       Action = "can_read"
	ActionCanEdit       Action = "can_edit"
	ActionCanDelete     Action = "can_delete"
	ActionCanAccessMenu Action = "menu_access"
)

// WorkflowActions are the actions a per-workflow access control may
// declare.
var WorkflowActions = []Action{ActionCanRead, ActionCanEdit, ActionCanDelete}

// IsWorkflowAction reports whether action may appear in a per-workflow
// access control.
func IsWorkflowAction(action Action) bool {
	return slices.Contains(WorkflowActions, action)
}

// Base resources.
const (
	ResourceWorkflows        = "Workflows"
	ResourceWorkflowRuns     = "Workflow Runs"
	ResourceTaskInstances    = "Task Instances"
	ResourceTaskReschedules  = "Task Reschedules"
	ResourceConnections      = "Connections"
	ResourceConfig           = "Configurations"
	ResourceRoles            = "Roles"
	ResourceWebsite          = "Website"
	ResourceDocumentation    = "Documentation"
	ResourcePermissionsAudit = "Permission Audit"
)

// WorkflowResourcePrefix starts the name of every per-workflow resource.
const WorkflowResourcePrefix = "WORKFLOW:"

// ResourceNameForWorkflow returns the per-workflow resource name for
// workflowID. An id that already carries the prefix is returned as is.
func ResourceNameForWorkflow(workflowID string) string {
	if strings.HasPrefix(workflowID, WorkflowResourcePrefix) {
		return workflowID
	}
	return WorkflowResourcePrefix + workflowID
}

// WorkflowIDFromResource is the inverse of ResourceNameForWorkflow. The
// boolean is false for resources that are not per-workflow.
func WorkflowIDFromResource(resource string) (string, bool) {
	return strings.CutPrefix(resource, WorkflowResourcePrefix)
}

// IsWorkflowResource reports whether resource is a per-workflow
// resource.
func IsWorkflowResource(resource string) bool {
	return strings.HasPrefix(resource, WorkflowResourcePrefix)
}

// Permission is an (action, resource) pair. Two permissions are the
// same permission iff both fields are equal.
type Permission struct {
	Action   Action `json:"action"`
	Resource string `json:"resource"`
}

func (p Permission) String() string {
	return string(p.Action) + " on " + p.Resource
}

func comparePermissions(a, b Permission) int {
	if c := strings.Compare(a.Resource, b.Resource); c != 0 {
		return c
	}
	return strings.Compare(string(a.Action), string(b.Action))
}

// PermissionSet is a set of permissions. The zero value is an empty,
// read-only set; use NewPermissionSet or Add on a made set.
type PermissionSet map[Permission]struct{}

// NewPermissionSet returns a set holding permissions.
func NewPermissionSet(permissions ...Permission) PermissionSet {
	set := make(PermissionSet, len(permissions))
	for _, permission := range permissions {
		set[permission] = struct{}{}
	}
	return set
}

// Add inserts permission.
func (s PermissionSet) Add(permission Permission) { s[permission] = struct{}{} }

// Has reports whether permission is in the set.
func (s PermissionSet) Has(permission Permission) bool {
	_, ok := s[permission]
	return ok
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	clone := make(PermissionSet, len(s))
	for permission := range s {
		clone[permission] = struct{}{}
	}
	return clone
}

// Sorted returns the permissions ordered by resource, then action.
func (s PermissionSet) Sorted() []Permission {
	sorted := make([]Permission, 0, len(s))
	for permission := range s {
		sorted = append(sorted, permission)
	}
	slices.SortFunc(sorted, comparePermissions)
	return sorted
}

// OnResource returns the subset bound to resource.
func (s PermissionSet) OnResource(resource string) PermissionSet {
	subset := make(PermissionSet)
	for permission := range s {
		if permission.Resource == resource {
			subset[permission] = struct{}{}
		}
	}
	return subset
}

// WithoutWorkflowResources returns the subset on base resources.
func (s PermissionSet) WithoutWorkflowResources() PermissionSet {
	subset := make(PermissionSet)
	for permission := range s {
		if !IsWorkflowResource(permission.Resource) {
			subset[permission] = struct{}{}
		}
	}
	return subset
}

// Role is a named set of permissions.
type Role struct {
	Name        string
	Permissions PermissionSet
}

// AccessControl maps role names to the actions each role is granted
// on one resource.
type AccessControl map[string][]Action

// Binding is a permission granted to a role.
type Binding struct {
	Role       string
	Permission Permission
}

func (b Binding) String() string {
	return b.Role + ": " + b.Permission.String()
}

// SortBindings orders bindings by role, then permission.
func SortBindings(bindings []Binding) {
	slices.SortFunc(bindings, func(a, b Binding) int {
		if c := strings.Compare(a.Role, b.Role); c != 0 {
			return c
		}
		return comparePermissions(a.Permission, b.Permission)
	})
}
