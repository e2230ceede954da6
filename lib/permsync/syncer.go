// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permsync

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/bureau-foundation/sentinel/lib/permission"
)

// Resource is a discovered workflow and its declared access control.
// A nil AccessControl means the workflow declares none.
type Resource struct {
	WorkflowID    string
	AccessControl permission.AccessControl
}

// Discovery lists the workflows whose permissions the Syncer manages.
type Discovery interface {
	Resources(ctx context.Context) ([]Resource, error)
}

// Config holds the parameters for New.
type Config struct {
	// Store is required.
	Store permission.Store

	// Discovery supplies workflows for CreateResourceSpecificPermissions.
	// Nil means no workflows.
	Discovery Discovery

	// CustomRoles are synced alongside the baseline roles by SyncRoles.
	CustomRoles []permission.RoleDefinition

	Logger *slog.Logger
}

// Syncer applies role and access-control declarations to a store.
// Safe for concurrent use; syncs of the same resource are serialized.
type Syncer struct {
	store       permission.Store
	discovery   Discovery
	customRoles []permission.RoleDefinition
	logger      *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New returns a Syncer for cfg.
func New(cfg Config) (*Syncer, error) {
	if cfg.Store == nil {
		return nil, errors.New("permsync: Store is required")
	}
	for _, role := range cfg.CustomRoles {
		if role.Name == "" {
			return nil, errors.New("permsync: custom role with empty name")
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Syncer{
		store:       cfg.Store,
		discovery:   cfg.Discovery,
		customRoles: cfg.CustomRoles,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}, nil
}

// SyncResourcePermissions makes the bindings on resource equal to ac.
//
// A nil ac only ensures the resource's read and edit permission objects
// exist. Otherwise every role in ac must exist (*RoleNotFoundError) and
// every action must be valid for the resource (*InvalidPermissionError);
// on either error nothing is written. The store is read twice.
func (s *Syncer) SyncResourcePermissions(ctx context.Context, resource string, ac permission.AccessControl) error {
	unlock := s.lockResource(resource)
	defer unlock()

	catalog, err := s.readCatalog(ctx)
	if err != nil {
		return fmt.Errorf("permsync: %s: %w", resource, err)
	}
	if ac == nil {
		return s.ensureDefaults(ctx, resource, catalog)
	}

	roles, err := s.store.Roles(ctx)
	if err != nil {
		return fmt.Errorf("permsync: %s: %w", resource, err)
	}
	return s.syncResource(ctx, resource, ac, indexRoles(roles), catalog)
}

// BulkSyncRoles creates missing roles and grants each role the
// declared permissions it lacks, creating permission objects as
// needed. It never removes a binding. When nothing is missing the
// store is read twice and not written.
func (s *Syncer) BulkSyncRoles(ctx context.Context, definitions []permission.RoleDefinition) error {
	catalog, err := s.store.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("permsync: bulk sync roles: %w", err)
	}
	stored, err := s.store.Roles(ctx)
	if err != nil {
		return fmt.Errorf("permsync: bulk sync roles: %w", err)
	}
	roles := indexRoles(stored)

	var change permission.RolesChange
	ensured := make(permission.PermissionSet)
	for _, definition := range definitions {
		if definition.Name == "" {
			return errors.New("permsync: bulk sync roles: role with empty name")
		}
		existing, exists := roles[definition.Name]
		if !exists && !slices.Contains(change.CreateRoles, definition.Name) {
			change.CreateRoles = append(change.CreateRoles, definition.Name)
		}
		for _, p := range definition.Permissions {
			if !catalog.Permissions.Has(p) && !ensured.Has(p) {
				ensured.Add(p)
				change.Ensure = append(change.Ensure, p)
			}
			if !exists || !existing.Has(p) {
				change.Grant = append(change.Grant, permission.Binding{Role: definition.Name, Permission: p})
			}
		}
	}
	if change.Empty() {
		return nil
	}

	if err := s.store.ApplyRoles(ctx, change); err != nil {
		return fmt.Errorf("permsync: bulk sync roles: %w", err)
	}
	for _, name := range change.CreateRoles {
		s.logger.Info("role created", "role", name)
	}
	for _, binding := range change.Grant {
		s.logger.Info("permission granted", "role", binding.Role,
			"action", binding.Permission.Action, "resource", binding.Permission.Resource)
	}
	return nil
}

// SyncRoles brings the store in line with every declaration: baseline
// and custom roles, Admin's hold on every base-resource permission,
// and the access controls of all discovered workflows. Repeated calls
// with unchanged declarations write nothing.
func (s *Syncer) SyncRoles(ctx context.Context) error {
	definitions := append(permission.BaselineRoles(), s.customRoles...)
	if err := s.BulkSyncRoles(ctx, definitions); err != nil {
		return err
	}
	if err := s.grantAdminBasePermissions(ctx); err != nil {
		return err
	}
	return s.CreateResourceSpecificPermissions(ctx)
}

// CreateResourceSpecificPermissions ensures every discovered workflow
// has its read and edit permission objects and syncs the access control
// of workflows whose declaration is new or changed since the last sync.
//
// The catalog is read once for all workflows. Roles are read only for
// workflows whose declaration changed, so an unchanged run costs one
// read however many workflows and roles exist.
// A failing workflow does not stop the others; all failures are
// returned joined.
func (s *Syncer) CreateResourceSpecificPermissions(ctx context.Context) error {
	if s.discovery == nil {
		return nil
	}
	resources, err := s.discovery.Resources(ctx)
	if err != nil {
		return fmt.Errorf("permsync: discovering workflows: %w", err)
	}
	slices.SortFunc(resources, func(a, b Resource) int { return cmp.Compare(a.WorkflowID, b.WorkflowID) })

	catalog, err := s.readCatalog(ctx)
	if err != nil {
		return fmt.Errorf("permsync: %w", err)
	}

	var errs []error
	for _, resource := range resources {
		name := permission.ResourceNameForWorkflow(resource.WorkflowID)
		err := func() error {
			unlock := s.lockResource(name)
			defer unlock()

			if resource.AccessControl == nil {
				return s.ensureDefaults(ctx, name, catalog)
			}
			fingerprint, err := permission.Fingerprint(resource.AccessControl)
			if err != nil {
				return err
			}
			if catalog.Fingerprints[name] == fingerprint && len(missingDefaults(name, catalog)) == 0 {
				return nil
			}
			// Roles are read under the resource lock: a snapshot taken
			// before another sync of this resource would miss its grants.
			stored, err := s.store.Roles(ctx)
			if err != nil {
				return fmt.Errorf("permsync: %w", err)
			}
			return s.syncResource(ctx, name, resource.AccessControl, indexRoles(stored), catalog)
		}()
		if err != nil {
			s.logger.Error("workflow permission sync failed", "resource", name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncResource validates ac against roles and applies the difference.
// On success roles and catalog are updated in place so callers can
// reuse them for further resources.
func (s *Syncer) syncResource(ctx context.Context, resource string, ac permission.AccessControl,
	roles map[string]permission.PermissionSet, catalog permission.Catalog) error {

	roleNames := slices.Sorted(maps.Keys(ac))
	for _, roleName := range roleNames {
		if _, ok := roles[roleName]; !ok {
			return &RoleNotFoundError{Resource: resource, Role: roleName}
		}
		var invalid []permission.Action
		for _, action := range ac[roleName] {
			if !allowedAction(resource, action) {
				invalid = append(invalid, action)
			}
		}
		if len(invalid) > 0 {
			return &InvalidPermissionError{
				Resource: resource,
				Role:     roleName,
				Actions:  invalid,
				Allowed:  allowedActions(resource),
			}
		}
	}

	fingerprint, err := permission.Fingerprint(ac)
	if err != nil {
		return err
	}

	desired := make(map[permission.Binding]struct{})
	ensure := missingDefaults(resource, catalog)
	for _, roleName := range roleNames {
		for _, action := range ac[roleName] {
			p := permission.Permission{Action: action, Resource: resource}
			desired[permission.Binding{Role: roleName, Permission: p}] = struct{}{}
			if !catalog.Permissions.Has(p) && !slices.Contains(ensure, p) {
				ensure = append(ensure, p)
			}
		}
	}

	var grants, revokes []permission.Binding
	for binding := range desired {
		if !roles[binding.Role].Has(binding.Permission) {
			grants = append(grants, binding)
		}
	}
	for roleName, held := range roles {
		for p := range held.OnResource(resource) {
			binding := permission.Binding{Role: roleName, Permission: p}
			if _, keep := desired[binding]; !keep {
				revokes = append(revokes, binding)
			}
		}
	}
	permission.SortBindings(grants)
	permission.SortBindings(revokes)

	if len(ensure) == 0 && len(grants) == 0 && len(revokes) == 0 && catalog.Fingerprints[resource] == fingerprint {
		s.logger.Debug("access control unchanged", "resource", resource)
		return nil
	}

	err = s.store.ApplyResource(ctx, permission.ResourceChange{
		Resource:      resource,
		Ensure:        ensure,
		Grant:         grants,
		Revoke:        revokes,
		Fingerprint:   fingerprint,
		AccessControl: ac,
	})
	if err != nil {
		return fmt.Errorf("permsync: %s: %w", resource, err)
	}

	for _, p := range ensure {
		catalog.Permissions.Add(p)
	}
	catalog.Fingerprints[resource] = fingerprint
	for _, binding := range grants {
		roles[binding.Role].Add(binding.Permission)
		s.logger.Info("permission granted", "role", binding.Role,
			"action", binding.Permission.Action, "resource", resource)
	}
	for _, binding := range revokes {
		delete(roles[binding.Role], binding.Permission)
		s.logger.Info("stale permission revoked", "role", binding.Role,
			"action", binding.Permission.Action, "resource", resource)
	}
	return nil
}

func (s *Syncer) ensureDefaults(ctx context.Context, resource string, catalog permission.Catalog) error {
	missing := missingDefaults(resource, catalog)
	if len(missing) == 0 {
		return nil
	}
	if err := s.store.ApplyResource(ctx, permission.ResourceChange{Resource: resource, Ensure: missing}); err != nil {
		return fmt.Errorf("permsync: %s: %w", resource, err)
	}
	for _, p := range missing {
		catalog.Permissions.Add(p)
	}
	s.logger.Info("resource permissions created", "resource", resource)
	return nil
}

func (s *Syncer) grantAdminBasePermissions(ctx context.Context) error {
	catalog, err := s.store.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("permsync: admin permissions: %w", err)
	}
	admin, err := s.store.Role(ctx, permission.RoleAdmin)
	if err != nil {
		return fmt.Errorf("permsync: admin permissions: %w", err)
	}

	var grants []permission.Binding
	for p := range catalog.Permissions.WithoutWorkflowResources() {
		if !admin.Permissions.Has(p) {
			grants = append(grants, permission.Binding{Role: permission.RoleAdmin, Permission: p})
		}
	}
	if len(grants) == 0 {
		return nil
	}
	permission.SortBindings(grants)
	if err := s.store.ApplyRoles(ctx, permission.RolesChange{Grant: grants}); err != nil {
		return fmt.Errorf("permsync: admin permissions: %w", err)
	}
	s.logger.Info("admin permissions extended", "granted", len(grants))
	return nil
}

// readCatalog reads the catalog and makes its maps safe to update in
// place.
func (s *Syncer) readCatalog(ctx context.Context) (permission.Catalog, error) {
	catalog, err := s.store.Catalog(ctx)
	if err != nil {
		return permission.Catalog{}, err
	}
	if catalog.Permissions == nil {
		catalog.Permissions = make(permission.PermissionSet)
	}
	if catalog.Fingerprints == nil {
		catalog.Fingerprints = make(map[string]string)
	}
	return catalog, nil
}

func (s *Syncer) lockResource(resource string) (unlock func()) {
	s.locksMu.Lock()
	lock, ok := s.locks[resource]
	if !ok {
		lock = new(sync.Mutex)
		s.locks[resource] = lock
	}
	s.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// missingDefaults returns the read and edit permission objects of
// resource that the catalog lacks.
func missingDefaults(resource string, catalog permission.Catalog) []permission.Permission {
	var missing []permission.Permission
	for _, action := range []permission.Action{permission.ActionCanRead, permission.ActionCanEdit} {
		p := permission.Permission{Action: action, Resource: resource}
		if !catalog.Permissions.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

func allowedActions(resource string) []permission.Action {
	if permission.IsWorkflowResource(resource) {
		return permission.WorkflowActions
	}
	return []permission.Action{
		permission.ActionCanCreate,
		permission.ActionCanRead,
		permission.ActionCanEdit,
		permission.ActionCanDelete,
		permission.ActionCanAccessMenu,
	}
}

func allowedAction(resource string, action permission.Action) bool {
	return slices.Contains(allowedActions(resource), action)
}

func indexRoles(roles []permission.Role) map[string]permission.PermissionSet {
	index := make(map[string]permission.PermissionSet, len(roles))
	for _, role := range roles {
		permissions := role.Permissions
		if permissions == nil {
			permissions = make(permission.PermissionSet)
		}
		index[role.Name] = permissions
	}
	return index
}
