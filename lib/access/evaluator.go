// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/bureau-foundation/sentinel/lib/permission"
)

// Principal is a user, service or anonymous caller.
type Principal struct {
	// ID names the principal in logs. Empty for anonymous callers.
	ID string

	// Roles are the roles assigned to an authenticated principal.
	// Ignored when Anonymous is set.
	Roles []string

	Anonymous bool
}

// AnonymousPrincipal returns the principal of an unauthenticated
// caller.
func AnonymousPrincipal() Principal {
	return Principal{Anonymous: true}
}

func (p Principal) String() string {
	if p.Anonymous {
		return "<anonymous>"
	}
	return p.ID
}

// Decision is the outcome of an access check.
type Decision int

const (
	// Deny means the action is not permitted.
	Deny Decision = iota

	// Allow means the action is permitted.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Rule identifies which rule decided a check.
type Rule int

const (
	// RuleNoRoles: the principal holds no roles.
	RuleNoRoles Rule = iota

	// RuleNoPermission: no role holds a matching permission.
	RuleNoPermission

	// RuleExactPermission: a role holds (action, resource).
	RuleExactPermission

	// RuleAllWorkflows: a role holds the action on the all-workflows
	// resource and the resource is a workflow.
	RuleAllWorkflows

	// RuleAdminRole: the principal holds the admin role.
	RuleAdminRole
)

// String returns a human-readable rule description.
func (r Rule) String() string {
	switch r {
	case RuleNoRoles:
		return "principal has no roles"
	case RuleNoPermission:
		return "no role holds a matching permission"
	case RuleExactPermission:
		return "role holds the permission"
	case RuleAllWorkflows:
		return "role holds the permission on all workflows"
	case RuleAdminRole:
		return "admin role"
	default:
		return "unknown"
	}
}

// Result is the outcome of a check with its trace.
type Result struct {
	Decision Decision
	Rule     Rule

	// MatchedRole is the role that allowed the action. Empty on Deny.
	MatchedRole string

	// MatchedPermission is the permission that allowed the action. Nil
	// on Deny and for RuleAdminRole.
	MatchedPermission *permission.Permission
}

// Config holds the parameters for New.
type Config struct {
	// Store is required.
	Store permission.Store

	// PublicRole is the role of anonymous principals. Empty means
	// anonymous principals have no roles.
	PublicRole string

	// AdminRole is allowed every action on every resource. Empty
	// disables the override.
	AdminRole string

	Logger *slog.Logger
}

// Evaluator answers access questions. It holds no cache; every call
// reads the roles it needs from the store. Safe for concurrent use.
type Evaluator struct {
	store      permission.Store
	publicRole string
	adminRole  string
	logger     *slog.Logger
}

// New returns an Evaluator for cfg.
func New(cfg Config) (*Evaluator, error) {
	if cfg.Store == nil {
		return nil, errors.New("access: Store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{
		store:      cfg.Store,
		publicRole: cfg.PublicRole,
		adminRole:  cfg.AdminRole,
		logger:     logger,
	}, nil
}

// RolesFor returns the role names principal holds.
func (e *Evaluator) RolesFor(principal Principal) []string {
	if principal.Anonymous {
		if e.publicRole == "" {
			return nil
		}
		return []string{e.publicRole}
	}
	return slices.Clone(principal.Roles)
}

// Check evaluates whether principal may perform action on resource.
func (e *Evaluator) Check(ctx context.Context, principal Principal, action permission.Action, resource string) (Result, error) {
	roles, err := e.loadRoles(ctx, principal)
	if err != nil {
		return Result{}, err
	}
	result := decide(roles, e.adminRole, action, resource)
	e.logger.Debug("access check",
		"principal", principal.String(),
		"action", action,
		"resource", resource,
		"decision", result.Decision.String(),
		"rule", result.Rule.String(),
	)
	return result, nil
}

// HasAccess reports whether principal may perform action on resource.
func (e *Evaluator) HasAccess(ctx context.Context, action permission.Action, resource string, principal Principal) (bool, error) {
	result, err := e.Check(ctx, principal, action, resource)
	if err != nil {
		return false, err
	}
	return result.Decision == Allow, nil
}

// CanRead reports whether principal may read workflowID.
func (e *Evaluator) CanRead(ctx context.Context, workflowID string, principal Principal) (bool, error) {
	return e.HasAccess(ctx, permission.ActionCanRead, permission.ResourceNameForWorkflow(workflowID), principal)
}

// CanEdit reports whether principal may edit workflowID.
func (e *Evaluator) CanEdit(ctx context.Context, workflowID string, principal Principal) (bool, error) {
	return e.HasAccess(ctx, permission.ActionCanEdit, permission.ResourceNameForWorkflow(workflowID), principal)
}

// AccessibleResourceIDs returns, sorted, the ids of the known workflows
// on which principal may perform action. Known workflows are those with
// permission objects in the store. A permission for a different action
// never counts.
func (e *Evaluator) AccessibleResourceIDs(ctx context.Context, principal Principal, action permission.Action) ([]string, error) {
	roles, err := e.loadRoles(ctx, principal)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, nil
	}

	if wide := decide(roles, e.adminRole, action, permission.ResourceWorkflows); wide.Decision == Allow {
		catalog, err := e.store.Catalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("access: %w", err)
		}
		return workflowIDs(catalog.Permissions, ""), nil
	}

	held := make(permission.PermissionSet)
	for _, role := range roles {
		for p := range role.Permissions {
			held.Add(p)
		}
	}
	return workflowIDs(held, action), nil
}

// ReadableResourceIDs is AccessibleResourceIDs for can_read.
func (e *Evaluator) ReadableResourceIDs(ctx context.Context, principal Principal) ([]string, error) {
	return e.AccessibleResourceIDs(ctx, principal, permission.ActionCanRead)
}

// EditableResourceIDs is AccessibleResourceIDs for can_edit.
func (e *Evaluator) EditableResourceIDs(ctx context.Context, principal Principal) ([]string, error) {
	return e.AccessibleResourceIDs(ctx, principal, permission.ActionCanEdit)
}

// PrincipalPermissions returns the union of the permissions held by
// principal's roles.
func (e *Evaluator) PrincipalPermissions(ctx context.Context, principal Principal) (permission.PermissionSet, error) {
	roles, err := e.loadRoles(ctx, principal)
	if err != nil {
		return nil, err
	}
	union := make(permission.PermissionSet)
	for _, role := range roles {
		for p := range role.Permissions {
			union.Add(p)
		}
	}
	return union, nil
}

// HasAnyPermission reports whether principal's roles hold at least one
// permission.
func (e *Evaluator) HasAnyPermission(ctx context.Context, principal Principal) (bool, error) {
	permissions, err := e.PrincipalPermissions(ctx, principal)
	if err != nil {
		return false, err
	}
	return len(permissions) > 0, nil
}

// HasAllResourcesAccess reports whether principal holds the admin role
// or may read or edit every workflow.
func (e *Evaluator) HasAllResourcesAccess(ctx context.Context, principal Principal) (bool, error) {
	roles, err := e.loadRoles(ctx, principal)
	if err != nil {
		return false, err
	}
	for _, action := range []permission.Action{permission.ActionCanRead, permission.ActionCanEdit} {
		if decide(roles, e.adminRole, action, permission.ResourceWorkflows).Decision == Allow {
			return true, nil
		}
	}
	return false, nil
}

// loadRoles reads the roles principal holds. Roles missing from the
// store are skipped: a principal assigned a deleted role simply gains
// nothing from it.
func (e *Evaluator) loadRoles(ctx context.Context, principal Principal) ([]permission.Role, error) {
	var roles []permission.Role
	for _, name := range e.RolesFor(principal) {
		role, err := e.store.Role(ctx, name)
		if errors.Is(err, permission.ErrRoleNotFound) {
			e.logger.Debug("principal holds unknown role", "principal", principal.String(), "role", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("access: loading role %q: %w", name, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// decide applies the rules in order: admin role, exact permission, then
// all-workflows permission for workflow resources.
func decide(roles []permission.Role, adminRole string, action permission.Action, resource string) Result {
	if len(roles) == 0 {
		return Result{Decision: Deny, Rule: RuleNoRoles}
	}
	if adminRole != "" {
		for _, role := range roles {
			if role.Name == adminRole {
				return Result{Decision: Allow, Rule: RuleAdminRole, MatchedRole: role.Name}
			}
		}
	}

	exact := permission.Permission{Action: action, Resource: resource}
	for _, role := range roles {
		if role.Permissions.Has(exact) {
			return Result{Decision: Allow, Rule: RuleExactPermission, MatchedRole: role.Name, MatchedPermission: &exact}
		}
	}

	if permission.IsWorkflowResource(resource) {
		all := permission.Permission{Action: action, Resource: permission.ResourceWorkflows}
		for _, role := range roles {
			if role.Permissions.Has(all) {
				return Result{Decision: Allow, Rule: RuleAllWorkflows, MatchedRole: role.Name, MatchedPermission: &all}
			}
		}
	}
	return Result{Decision: Deny, Rule: RuleNoPermission}
}

// workflowIDs returns the sorted ids of workflow resources in set,
// restricted to action unless action is empty.
func workflowIDs(set permission.PermissionSet, action permission.Action) []string {
	ids := make(map[string]struct{})
	for p := range set {
		if action != "" && p.Action != action {
			continue
		}
		if id, ok := permission.WorkflowIDFromResource(p.Resource); ok {
			ids[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(ids))
}
