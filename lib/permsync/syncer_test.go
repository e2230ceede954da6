// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permsync_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/bureau-foundation/sentinel/lib/permission"
	"github.com/bureau-foundation/sentinel/lib/permsync"
	"github.com/bureau-foundation/sentinel/lib/testutil"
)

type staticDiscovery struct {
	mu        sync.Mutex
	resources []permsync.Resource
}

func (d *staticDiscovery) Resources(context.Context) ([]permsync.Resource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.resources), nil
}

func (d *staticDiscovery) set(resources ...permsync.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources = resources
}

var (
	readWrite = []permission.Action{permission.ActionCanRead, permission.ActionCanEdit}
	readOnly  = []permission.Action{permission.ActionCanRead}
)

func newSyncer(t *testing.T, store permission.Store, discovery permsync.Discovery) *permsync.Syncer {
	t.Helper()
	syncer, err := permsync.New(permsync.Config{Store: store, Discovery: discovery})
	if err != nil {
		t.Fatalf("permsync.New: %v", err)
	}
	return syncer
}

func createRoles(t *testing.T, store permission.Store, names ...string) {
	t.Helper()
	if err := store.ApplyRoles(context.Background(), permission.RolesChange{CreateRoles: names}); err != nil {
		t.Fatalf("ApplyRoles: %v", err)
	}
}

// bindingsOn returns "role:action" strings for every binding on
// resource, sorted.
func bindingsOn(t *testing.T, store permission.Store, resource string) []string {
	t.Helper()
	roles, err := store.Roles(context.Background())
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	var result []string
	for _, role := range roles {
		for p := range role.Permissions.OnResource(resource) {
			result = append(result, role.Name+":"+string(p.Action))
		}
	}
	slices.Sort(result)
	return result
}

func TestSyncResourcePermissions_GrantsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a", "team-b")
	syncer := newSyncer(t, store, nil)
	resource := permission.ResourceNameForWorkflow("ingest")
	ac := permission.AccessControl{"team-a": readWrite, "team-b": readOnly}

	if err := syncer.SyncResourcePermissions(ctx, resource, ac); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	want := []string{"team-a:can_edit", "team-a:can_read", "team-b:can_read"}
	if got := bindingsOn(t, store, resource); !slices.Equal(got, want) {
		t.Fatalf("bindings = %v, want %v", got, want)
	}

	var readsPerCall []int64
	for range 3 {
		before := store.Reads()
		if err := syncer.SyncResourcePermissions(ctx, resource, ac); err != nil {
			t.Fatalf("repeat sync: %v", err)
		}
		readsPerCall = append(readsPerCall, store.Reads()-before)
	}
	for _, reads := range readsPerCall {
		if reads != 2 {
			t.Errorf("reads per repeated sync = %v, want 2 each", readsPerCall)
			break
		}
	}
	if got := bindingsOn(t, store, resource); !slices.Equal(got, want) {
		t.Errorf("bindings after repeats = %v, want %v", got, want)
	}
}

func TestSyncResourcePermissions_ReadsIndependentOfRoleCount(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	ac := make(permission.AccessControl)
	var names []string
	for i := range 50 {
		name := fmt.Sprintf("team-%02d", i)
		names = append(names, name)
		ac[name] = readWrite
	}
	createRoles(t, store, names...)
	syncer := newSyncer(t, store, nil)

	resource := permission.ResourceNameForWorkflow("ingest")
	before := store.Reads()
	if err := syncer.SyncResourcePermissions(ctx, resource, ac); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if reads := store.Reads() - before; reads != 2 {
		t.Errorf("reads = %d with 50 roles, want 2", reads)
	}
}

func TestSyncResourcePermissions_RevokesStale(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a")
	syncer := newSyncer(t, store, nil)
	resource := permission.ResourceNameForWorkflow("access_control_test")

	if err := syncer.SyncResourcePermissions(ctx, resource, permission.AccessControl{"team-a": readWrite}); err != nil {
		t.Fatalf("sync read/write: %v", err)
	}
	if err := syncer.SyncResourcePermissions(ctx, resource, permission.AccessControl{"team-a": readOnly}); err != nil {
		t.Fatalf("sync read only: %v", err)
	}

	if got := bindingsOn(t, store, resource); !slices.Equal(got, []string{"team-a:can_read"}) {
		t.Errorf("bindings = %v, want [team-a:can_read]", got)
	}
}

func TestSyncResourcePermissions_LeavesOtherResourcesAlone(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a")
	syncer := newSyncer(t, store, nil)
	first := permission.ResourceNameForWorkflow("first")
	second := permission.ResourceNameForWorkflow("second")

	if err := syncer.SyncResourcePermissions(ctx, first, permission.AccessControl{"team-a": readWrite}); err != nil {
		t.Fatalf("sync first: %v", err)
	}
	if err := syncer.SyncResourcePermissions(ctx, second, permission.AccessControl{}); err != nil {
		t.Fatalf("sync second: %v", err)
	}
	if got := bindingsOn(t, store, first); len(got) != 2 {
		t.Errorf("bindings on first = %v, want untouched", got)
	}
}

func TestSyncResourcePermissions_UnknownRole(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a")
	syncer := newSyncer(t, store, nil)
	resource := permission.ResourceNameForWorkflow("access_control_test")

	err := syncer.SyncResourcePermissions(ctx, resource, permission.AccessControl{
		"team-a":       readWrite,
		"this-role-is": readOnly,
	})
	notFound := testutil.RequireErrorAs[*permsync.RoleNotFoundError](t, err)
	if notFound.Role != "this-role-is" {
		t.Errorf("Role = %q, want this-role-is", notFound.Role)
	}
	if !errors.Is(err, permsync.ErrSync) {
		t.Error("RoleNotFoundError does not match ErrSync")
	}
	if !strings.Contains(err.Error(), "role does not exist") {
		t.Errorf("message %q lacks %q", err, "role does not exist")
	}
	assertUntouched(t, store, resource)
}

func TestSyncResourcePermissions_InvalidAction(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a", "team-b")
	syncer := newSyncer(t, store, nil)
	resource := permission.ResourceNameForWorkflow("access_control_test")

	err := syncer.SyncResourcePermissions(ctx, resource, permission.AccessControl{
		"team-a": readWrite,
		"team-b": {permission.ActionCanRead, "can_varimport"},
	})
	invalid := testutil.RequireErrorAs[*permsync.InvalidPermissionError](t, err)
	if !slices.Equal(invalid.Actions, []permission.Action{"can_varimport"}) {
		t.Errorf("Actions = %v, want [can_varimport]", invalid.Actions)
	}
	if !errors.Is(err, permsync.ErrSync) {
		t.Error("InvalidPermissionError does not match ErrSync")
	}
	if !strings.Contains(err.Error(), "invalid permissions") {
		t.Errorf("message %q lacks %q", err, "invalid permissions")
	}
	assertUntouched(t, store, resource)
}

func assertUntouched(t *testing.T, store *permission.MemoryStore, resource string) {
	t.Helper()
	if got := bindingsOn(t, store, resource); len(got) != 0 {
		t.Errorf("bindings after failed sync = %v, want none", got)
	}
	catalog, err := store.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if got := len(catalog.Permissions.OnResource(resource)); got != 0 {
		t.Errorf("failed sync created %d permission objects", got)
	}
	if _, ok := catalog.Fingerprints[resource]; ok {
		t.Error("failed sync recorded a fingerprint")
	}
}

func TestSyncResourcePermissions_NilAccessControlCreatesObjectsOnly(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a")
	syncer := newSyncer(t, store, nil)
	resource := permission.ResourceNameForWorkflow("no_access_control")

	if err := syncer.SyncResourcePermissions(ctx, resource, nil); err != nil {
		t.Fatalf("sync: %v", err)
	}
	catalog, err := store.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	for _, action := range readWrite {
		if !catalog.Permissions.Has(permission.Permission{Action: action, Resource: resource}) {
			t.Errorf("missing %s on %s", action, resource)
		}
	}
	if got := bindingsOn(t, store, resource); len(got) != 0 {
		t.Errorf("bindings = %v, want none", got)
	}
}

func TestBulkSyncRoles_CreatesAndShortCircuits(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	syncer := newSyncer(t, store, nil)

	definition := permission.RoleDefinition{
		Name: "MyRole2",
		Permissions: []permission.Permission{
			{Action: "can_list", Resource: "SomeModelView"},
			{Action: "can_show", Resource: "SomeModelView"},
			{Action: permission.ActionCanEdit, Resource: "SomeModelView"},
			{Action: permission.ActionCanDelete, Resource: "SomeModelView"},
		},
	}
	if err := syncer.BulkSyncRoles(ctx, []permission.RoleDefinition{definition}); err != nil {
		t.Fatalf("BulkSyncRoles: %v", err)
	}
	role, err := store.Role(ctx, "MyRole2")
	if err != nil {
		t.Fatalf("Role: %v", err)
	}
	if len(role.Permissions) != len(definition.Permissions) {
		t.Errorf("role has %d permissions, want %d", len(role.Permissions), len(definition.Permissions))
	}

	before := store.Reads()
	if err := syncer.BulkSyncRoles(ctx, []permission.RoleDefinition{definition}); err != nil {
		t.Fatalf("repeat BulkSyncRoles: %v", err)
	}
	if reads := store.Reads() - before; reads != 2 {
		t.Errorf("repeat reads = %d, want 2", reads)
	}
}

func TestBulkSyncRoles_IsAdditive(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	syncer := newSyncer(t, store, nil)
	definitions := []permission.RoleDefinition{{Name: "Test_Role"}}

	if err := syncer.BulkSyncRoles(ctx, definitions); err != nil {
		t.Fatalf("BulkSyncRoles: %v", err)
	}
	editRoles := permission.Permission{Action: permission.ActionCanEdit, Resource: permission.ResourceRoles}
	err := store.ApplyRoles(ctx, permission.RolesChange{
		Ensure: []permission.Permission{editRoles},
		Grant:  []permission.Binding{{Role: "Test_Role", Permission: editRoles}},
	})
	if err != nil {
		t.Fatalf("ApplyRoles: %v", err)
	}

	if err := syncer.BulkSyncRoles(ctx, definitions); err != nil {
		t.Fatalf("repeat BulkSyncRoles: %v", err)
	}
	role, err := store.Role(ctx, "Test_Role")
	if err != nil {
		t.Fatalf("Role: %v", err)
	}
	if len(role.Permissions) != 1 || !role.Permissions.Has(editRoles) {
		t.Errorf("permissions = %v, want the manually granted one kept", role.Permissions.Sorted())
	}
}

func TestSyncRoles_BaselineAndIdempotent(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	discovery := &staticDiscovery{}
	discovery.set(permsync.Resource{
		WorkflowID:    "ingest",
		AccessControl: permission.AccessControl{permission.RoleViewer: readOnly},
	})
	syncer := newSyncer(t, store, discovery)

	if err := syncer.SyncRoles(ctx); err != nil {
		t.Fatalf("SyncRoles: %v", err)
	}
	first, err := store.Roles(ctx)
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if len(first) < 5 {
		t.Fatalf("roles = %d, want at least 5", len(first))
	}

	readConfig := permission.Permission{Action: permission.ActionCanRead, Resource: permission.ResourceConfig}
	for _, role := range first {
		want := role.Name == permission.RoleAdmin || role.Name == permission.RoleOp
		if got := role.Permissions.Has(readConfig); got != want {
			t.Errorf("%s has %s = %v, want %v", role.Name, readConfig, got, want)
		}
		if role.Name == permission.RolePublic && len(role.Permissions) != 0 {
			t.Errorf("Public permissions = %v, want none", role.Permissions.Sorted())
		}
	}

	if err := syncer.SyncRoles(ctx); err != nil {
		t.Fatalf("second SyncRoles: %v", err)
	}
	second, err := store.Roles(ctx)
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if countBindings(first) != countBindings(second) {
		t.Errorf("bindings grew from %d to %d on repeat", countBindings(first), countBindings(second))
	}
	if got := bindingsOn(t, store, permission.ResourceNameForWorkflow("ingest")); !slices.Equal(got, []string{"Viewer:can_read"}) {
		t.Errorf("workflow bindings = %v, want [Viewer:can_read]", got)
	}
}

func countBindings(roles []permission.Role) int {
	total := 0
	for _, role := range roles {
		total += len(role.Permissions)
	}
	return total
}

func TestCreateResourceSpecificPermissions(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, permission.RolePublic)
	discovery := &staticDiscovery{}
	withAccess := permsync.Resource{
		WorkflowID:    "has_access_control",
		AccessControl: permission.AccessControl{permission.RolePublic: readOnly},
	}
	withoutAccess := permsync.Resource{WorkflowID: "no_access_control"}
	discovery.set(withAccess, withoutAccess)
	syncer := newSyncer(t, store, discovery)

	if err := syncer.CreateResourceSpecificPermissions(ctx); err != nil {
		t.Fatalf("CreateResourceSpecificPermissions: %v", err)
	}
	catalog, err := store.Catalog(ctx)
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	for _, id := range []string{"has_access_control", "no_access_control"} {
		resource := permission.ResourceNameForWorkflow(id)
		for _, action := range readWrite {
			if !catalog.Permissions.Has(permission.Permission{Action: action, Resource: resource}) {
				t.Errorf("missing %s on %s", action, resource)
			}
		}
	}
	if got := bindingsOn(t, store, permission.ResourceNameForWorkflow("has_access_control")); !slices.Equal(got, []string{"Public:can_read"}) {
		t.Errorf("bindings = %v, want [Public:can_read]", got)
	}

	before := store.Reads()
	if err := syncer.CreateResourceSpecificPermissions(ctx); err != nil {
		t.Fatalf("unchanged run: %v", err)
	}
	if reads := store.Reads() - before; reads != 1 {
		t.Errorf("unchanged run reads = %d, want 1", reads)
	}

	discovery.set(withoutAccess)
	before = store.Reads()
	if err := syncer.CreateResourceSpecificPermissions(ctx); err != nil {
		t.Fatalf("run without access control: %v", err)
	}
	if reads := store.Reads() - before; reads != 1 {
		t.Errorf("reads = %d, want 1", reads)
	}
}

func TestCreateResourceSpecificPermissions_ChangedAccessControl(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a")
	discovery := &staticDiscovery{}
	discovery.set(permsync.Resource{WorkflowID: "ingest", AccessControl: permission.AccessControl{"team-a": readWrite}})
	syncer := newSyncer(t, store, discovery)

	if err := syncer.CreateResourceSpecificPermissions(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	discovery.set(permsync.Resource{WorkflowID: "ingest", AccessControl: permission.AccessControl{"team-a": readOnly}})
	if err := syncer.CreateResourceSpecificPermissions(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := bindingsOn(t, store, permission.ResourceNameForWorkflow("ingest")); !slices.Equal(got, []string{"team-a:can_read"}) {
		t.Errorf("bindings = %v, want [team-a:can_read]", got)
	}
}

func TestCreateResourceSpecificPermissions_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a")
	discovery := &staticDiscovery{}
	discovery.set(
		permsync.Resource{WorkflowID: "broken", AccessControl: permission.AccessControl{"ghost": readOnly}},
		permsync.Resource{WorkflowID: "fine", AccessControl: permission.AccessControl{"team-a": readOnly}},
	)
	syncer := newSyncer(t, store, discovery)

	err := syncer.CreateResourceSpecificPermissions(ctx)
	testutil.RequireErrorAs[*permsync.RoleNotFoundError](t, err)
	if got := bindingsOn(t, store, permission.ResourceNameForWorkflow("fine")); len(got) != 1 {
		t.Errorf("bindings on fine = %v, want one", got)
	}
}

// interleavingStore runs afterApply once, right after the first change
// to trigger is applied, while the bulk pass still holds its snapshot.
type interleavingStore struct {
	*permission.MemoryStore
	trigger    string
	once       sync.Once
	afterApply func() error
	hookErr    error
}

func (s *interleavingStore) ApplyResource(ctx context.Context, change permission.ResourceChange) error {
	if err := s.MemoryStore.ApplyResource(ctx, change); err != nil {
		return err
	}
	if change.Resource == s.trigger {
		s.once.Do(func() { s.hookErr = s.afterApply() })
	}
	return nil
}

func TestCreateResourceSpecificPermissions_SeesConcurrentSync(t *testing.T) {
	ctx := context.Background()
	store := &interleavingStore{
		MemoryStore: permission.NewMemoryStore(),
		trigger:     permission.ResourceNameForWorkflow("a"),
	}
	createRoles(t, store, permission.RoleOp, permission.RoleViewer)
	discovery := &staticDiscovery{}
	discovery.set(
		permsync.Resource{WorkflowID: "a", AccessControl: permission.AccessControl{permission.RoleViewer: readOnly}},
		permsync.Resource{WorkflowID: "b", AccessControl: permission.AccessControl{permission.RoleViewer: readOnly}},
	)
	syncer := newSyncer(t, store, discovery)

	resourceB := permission.ResourceNameForWorkflow("b")
	store.afterApply = func() error {
		return syncer.SyncResourcePermissions(ctx, resourceB,
			permission.AccessControl{permission.RoleOp: {permission.ActionCanEdit}})
	}

	if err := syncer.CreateResourceSpecificPermissions(ctx); err != nil {
		t.Fatalf("CreateResourceSpecificPermissions: %v", err)
	}
	if store.hookErr != nil {
		t.Fatalf("interleaved sync of b: %v", store.hookErr)
	}
	if got := bindingsOn(t, store, resourceB); !slices.Equal(got, []string{"Viewer:can_read"}) {
		t.Errorf("bindings on b = %v, want [Viewer:can_read]", got)
	}

	// The declaration that won is the one whose fingerprint is stored,
	// so a later run has nothing to correct.
	if err := syncer.CreateResourceSpecificPermissions(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := bindingsOn(t, store, resourceB); !slices.Equal(got, []string{"Viewer:can_read"}) {
		t.Errorf("bindings on b after second run = %v, want [Viewer:can_read]", got)
	}
}

func TestSyncResourcePermissions_ConcurrentResources(t *testing.T) {
	ctx := context.Background()
	store := permission.NewMemoryStore()
	createRoles(t, store, "team-a", "team-b")
	syncer := newSyncer(t, store, nil)

	var group sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		group.Add(1)
		go func() {
			defer group.Done()
			resource := permission.ResourceNameForWorkflow(fmt.Sprintf("workflow-%d", i%5))
			errs <- syncer.SyncResourcePermissions(ctx, resource, permission.AccessControl{"team-a": readWrite, "team-b": readOnly})
		}()
	}
	group.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent sync: %v", err)
		}
	}
	for i := range 5 {
		resource := permission.ResourceNameForWorkflow(fmt.Sprintf("workflow-%d", i))
		if got := bindingsOn(t, store, resource); len(got) != 3 {
			t.Errorf("%s bindings = %v, want 3", resource, got)
		}
	}
}
