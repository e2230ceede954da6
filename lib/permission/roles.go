// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

// Baseline role names.
const (
	RoleAdmin  = "Admin"
	RoleOp     = "Op"
	RoleUser   = "User"
	RoleViewer = "Viewer"
	RolePublic = "Public"
)

// RoleDefinition declares a role and the permissions it must have.
type RoleDefinition struct {
	Name        string
	Permissions []Permission
}

var viewerPermissions = []Permission{
	{ActionCanRead, ResourceWorkflows},
	{ActionCanRead, ResourceWorkflowRuns},
	{ActionCanRead, ResourceTaskInstances},
	{ActionCanRead, ResourceTaskReschedules},
	{ActionCanRead, ResourceWebsite},
	{ActionCanRead, ResourceDocumentation},
	{ActionCanAccessMenu, ResourceWorkflows},
	{ActionCanAccessMenu, ResourceDocumentation},
}

var userPermissions = []Permission{
	{ActionCanEdit, ResourceWorkflows},
	{ActionCanDelete, ResourceWorkflows},
	{ActionCanCreate, ResourceWorkflowRuns},
	{ActionCanEdit, ResourceWorkflowRuns},
	{ActionCanDelete, ResourceWorkflowRuns},
	{ActionCanCreate, ResourceTaskInstances},
	{ActionCanEdit, ResourceTaskInstances},
	{ActionCanDelete, ResourceTaskInstances},
}

var opPermissions = []Permission{
	{ActionCanRead, ResourceConfig},
	{ActionCanAccessMenu, ResourceConfig},
	{ActionCanCreate, ResourceConnections},
	{ActionCanRead, ResourceConnections},
	{ActionCanEdit, ResourceConnections},
	{ActionCanDelete, ResourceConnections},
	{ActionCanAccessMenu, ResourceConnections},
}

var adminPermissions = []Permission{
	{ActionCanRead, ResourceRoles},
	{ActionCanEdit, ResourceRoles},
	{ActionCanRead, ResourcePermissionsAudit},
}

// BaselineRoles returns the built-in role definitions. Each role
// includes the permissions of the role below it; Public has none.
// The synchronizer additionally grants Admin every base-resource
// permission that exists in the store.
func BaselineRoles() []RoleDefinition {
	viewer := clonePermissions(viewerPermissions)
	user := append(clonePermissions(viewer), userPermissions...)
	op := append(clonePermissions(user), opPermissions...)
	admin := append(clonePermissions(op), adminPermissions...)

	return []RoleDefinition{
		{Name: RoleAdmin, Permissions: admin},
		{Name: RoleOp, Permissions: op},
		{Name: RoleUser, Permissions: user},
		{Name: RoleViewer, Permissions: viewer},
		{Name: RolePublic},
	}
}

func clonePermissions(permissions []Permission) []Permission {
	return append([]Permission(nil), permissions...)
}
