// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// MemoryStore is a Store held in process memory. It counts reads so
// callers can check that an operation stays within a fixed number of
// bulk reads.
type MemoryStore struct {
	mu           sync.RWMutex
	permissions  PermissionSet
	roles        map[string]PermissionSet
	fingerprints map[string]string

	reads atomic.Int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions:  make(PermissionSet),
		roles:        make(map[string]PermissionSet),
		fingerprints: make(map[string]string),
	}
}

// Reads returns the number of read calls served so far.
func (m *MemoryStore) Reads() int64 { return m.reads.Load() }

// Roles implements Store.
func (m *MemoryStore) Roles(_ context.Context) ([]Role, error) {
	m.reads.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()

	roles := make([]Role, 0, len(m.roles))
	for _, name := range slices.Sorted(maps.Keys(m.roles)) {
		roles = append(roles, Role{Name: name, Permissions: m.roles[name].Clone()})
	}
	return roles, nil
}

// Role implements Store.
func (m *MemoryStore) Role(_ context.Context, name string) (Role, error) {
	m.reads.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()

	permissions, ok := m.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("%w: %q", ErrRoleNotFound, name)
	}
	return Role{Name: name, Permissions: permissions.Clone()}, nil
}

// Catalog implements Store.
func (m *MemoryStore) Catalog(_ context.Context) (Catalog, error) {
	m.reads.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Catalog{
		Permissions:  m.permissions.Clone(),
		Fingerprints: maps.Clone(m.fingerprints),
	}, nil
}

// ApplyRoles implements Store.
func (m *MemoryStore) ApplyRoles(_ context.Context, change RolesChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkGrants(change.Grant, change.Ensure, change.CreateRoles); err != nil {
		return err
	}
	for _, name := range change.CreateRoles {
		if _, ok := m.roles[name]; !ok {
			m.roles[name] = make(PermissionSet)
		}
	}
	for _, permission := range change.Ensure {
		m.permissions.Add(permission)
	}
	for _, binding := range change.Grant {
		m.roles[binding.Role].Add(binding.Permission)
	}
	return nil
}

// ApplyResource implements Store.
func (m *MemoryStore) ApplyResource(_ context.Context, change ResourceChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, permission := range change.Ensure {
		if permission.Resource != change.Resource {
			return fmt.Errorf("permission: %s is not on resource %s", permission, change.Resource)
		}
	}
	if err := m.checkGrants(change.Grant, change.Ensure, nil); err != nil {
		return err
	}
	for _, binding := range append(slices.Clone(change.Grant), change.Revoke...) {
		if binding.Permission.Resource != change.Resource {
			return fmt.Errorf("permission: binding %s is not on resource %s", binding, change.Resource)
		}
	}

	for _, permission := range change.Ensure {
		m.permissions.Add(permission)
	}
	for _, binding := range change.Grant {
		m.roles[binding.Role].Add(binding.Permission)
	}
	for _, binding := range change.Revoke {
		if permissions, ok := m.roles[binding.Role]; ok {
			delete(permissions, binding.Permission)
		}
	}
	if change.Fingerprint != "" {
		m.fingerprints[change.Resource] = change.Fingerprint
	}
	return nil
}

// checkGrants validates grants against the current state plus the
// permissions and roles the same change creates. Caller holds mu.
func (m *MemoryStore) checkGrants(grants []Binding, ensure []Permission, createRoles []string) error {
	for _, binding := range grants {
		if _, ok := m.roles[binding.Role]; !ok && !slices.Contains(createRoles, binding.Role) {
			return fmt.Errorf("%w: %q", ErrRoleNotFound, binding.Role)
		}
		if !m.permissions.Has(binding.Permission) && !slices.Contains(ensure, binding.Permission) {
			return fmt.Errorf("permission: grant of unknown permission %s", binding.Permission)
		}
	}
	return nil
}
