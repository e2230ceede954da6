// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/sentinel/lib/codec"
	"github.com/bureau-foundation/sentinel/lib/permission"
	"github.com/bureau-foundation/sentinel/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS roles (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS permissions (
	action   TEXT NOT NULL,
	resource TEXT NOT NULL,
	PRIMARY KEY (action, resource)
);

CREATE TABLE IF NOT EXISTS role_permissions (
	role     TEXT NOT NULL,
	action   TEXT NOT NULL,
	resource TEXT NOT NULL,
	PRIMARY KEY (role, action, resource)
);

CREATE INDEX IF NOT EXISTS role_permissions_resource
	ON role_permissions (resource);

CREATE TABLE IF NOT EXISTS resource_fingerprints (
	resource       TEXT PRIMARY KEY,
	fingerprint    TEXT NOT NULL,
	access_control BLOB
);
`

// Config holds the parameters for Open.
type Config struct {
	Path     string
	PoolSize int
	Logger   *slog.Logger
}

// Store is a SQLite permission.Store.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
	reads  atomic.Int64
}

var _ permission.Store = (*Store)(nil)

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("permstore: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Reads returns the number of read calls served so far.
func (s *Store) Reads() int64 { return s.reads.Load() }

// Roles implements permission.Store with one joined query.
func (s *Store) Roles(ctx context.Context) ([]permission.Role, error) {
	s.reads.Add(1)
	var roles []permission.Role
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT r.name, rp.action, rp.resource
			 FROM roles r
			 LEFT JOIN role_permissions rp ON rp.role = r.name
			 ORDER BY r.name`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					name := stmt.ColumnText(0)
					if len(roles) == 0 || roles[len(roles)-1].Name != name {
						roles = append(roles, permission.Role{Name: name, Permissions: make(permission.PermissionSet)})
					}
					if !stmt.ColumnIsNull(1) {
						roles[len(roles)-1].Permissions.Add(scanPermission(stmt, 1))
					}
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("permstore: roles: %w", err)
	}
	return roles, nil
}

// Role implements permission.Store.
func (s *Store) Role(ctx context.Context, name string) (permission.Role, error) {
	s.reads.Add(1)
	var (
		role  = permission.Role{Name: name, Permissions: make(permission.PermissionSet)}
		found bool
	)
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT rp.action, rp.resource
			 FROM roles r
			 LEFT JOIN role_permissions rp ON rp.role = r.name
			 WHERE r.name = ?`,
			&sqlitex.ExecOptions{
				Args: []any{name},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					if !stmt.ColumnIsNull(0) {
						role.Permissions.Add(scanPermission(stmt, 0))
					}
					return nil
				},
			})
	})
	if err != nil {
		return permission.Role{}, fmt.Errorf("permstore: role %q: %w", name, err)
	}
	if !found {
		return permission.Role{}, fmt.Errorf("%w: %q", permission.ErrRoleNotFound, name)
	}
	return role, nil
}

// Catalog implements permission.Store.
func (s *Store) Catalog(ctx context.Context) (permission.Catalog, error) {
	s.reads.Add(1)
	catalog := permission.Catalog{
		Permissions:  make(permission.PermissionSet),
		Fingerprints: make(map[string]string),
	}
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `SELECT action, resource FROM permissions`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				catalog.Permissions.Add(scanPermission(stmt, 0))
				return nil
			},
		})
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn, `SELECT resource, fingerprint FROM resource_fingerprints`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				catalog.Fingerprints[stmt.ColumnText(0)] = stmt.ColumnText(1)
				return nil
			},
		})
	})
	if err != nil {
		return permission.Catalog{}, fmt.Errorf("permstore: catalog: %w", err)
	}
	return catalog, nil
}

// ApplyRoles implements permission.Store.
func (s *Store) ApplyRoles(ctx context.Context, change permission.RolesChange) error {
	err := s.pool.Transact(ctx, func(conn *sqlite.Conn) error {
		for _, name := range change.CreateRoles {
			if err := sqlitex.Execute(conn, `INSERT OR IGNORE INTO roles (name) VALUES (?)`,
				&sqlitex.ExecOptions{Args: []any{name}}); err != nil {
				return err
			}
		}
		if err := ensurePermissions(conn, change.Ensure); err != nil {
			return err
		}
		return grant(conn, change.Grant)
	})
	if err != nil {
		return fmt.Errorf("permstore: apply roles: %w", err)
	}
	return nil
}

// ApplyResource implements permission.Store.
func (s *Store) ApplyResource(ctx context.Context, change permission.ResourceChange) error {
	for _, p := range change.Ensure {
		if p.Resource != change.Resource {
			return fmt.Errorf("permstore: %s is not on resource %s", p, change.Resource)
		}
	}
	for _, binding := range append(append([]permission.Binding(nil), change.Grant...), change.Revoke...) {
		if binding.Permission.Resource != change.Resource {
			return fmt.Errorf("permstore: binding %s is not on resource %s", binding, change.Resource)
		}
	}

	err := s.pool.Transact(ctx, func(conn *sqlite.Conn) error {
		if err := ensurePermissions(conn, change.Ensure); err != nil {
			return err
		}
		if err := grant(conn, change.Grant); err != nil {
			return err
		}
		for _, binding := range change.Revoke {
			err := sqlitex.Execute(conn,
				`DELETE FROM role_permissions WHERE role = ? AND action = ? AND resource = ?`,
				&sqlitex.ExecOptions{Args: bindingArgs(binding)})
			if err != nil {
				return err
			}
		}
		if change.Fingerprint == "" {
			return nil
		}
		declared, err := codec.Marshal(change.AccessControl)
		if err != nil {
			return fmt.Errorf("encoding access control: %w", err)
		}
		return sqlitex.Execute(conn,
			`INSERT INTO resource_fingerprints (resource, fingerprint, access_control) VALUES (?, ?, ?)
			 ON CONFLICT (resource) DO UPDATE SET
			   fingerprint = excluded.fingerprint,
			   access_control = excluded.access_control`,
			&sqlitex.ExecOptions{Args: []any{change.Resource, change.Fingerprint, declared}})
	})
	if err != nil {
		return fmt.Errorf("permstore: apply %s: %w", change.Resource, err)
	}
	return nil
}

// DeclaredAccessControl returns the access control last synced for
// resource. The boolean is false when the resource has never been
// synced with a declaration.
func (s *Store) DeclaredAccessControl(ctx context.Context, resource string) (permission.AccessControl, bool, error) {
	s.reads.Add(1)
	var (
		declared []byte
		found    bool
	)
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT access_control FROM resource_fingerprints WHERE resource = ?`,
			&sqlitex.ExecOptions{
				Args: []any{resource},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					found = true
					declared = make([]byte, stmt.ColumnLen(0))
					stmt.ColumnBytes(0, declared)
					return nil
				},
			})
	})
	if err != nil {
		return nil, false, fmt.Errorf("permstore: access control for %s: %w", resource, err)
	}
	if !found || len(declared) == 0 {
		return nil, false, nil
	}
	var accessControl permission.AccessControl
	if err := codec.Unmarshal(declared, &accessControl); err != nil {
		return nil, false, fmt.Errorf("permstore: decoding access control for %s: %w", resource, err)
	}
	if accessControl == nil {
		accessControl = permission.AccessControl{}
	}
	return accessControl, true, nil
}

func ensurePermissions(conn *sqlite.Conn, permissions []permission.Permission) error {
	for _, p := range permissions {
		err := sqlitex.Execute(conn, `INSERT OR IGNORE INTO permissions (action, resource) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{string(p.Action), p.Resource}})
		if err != nil {
			return err
		}
	}
	return nil
}

// grant binds each permission after checking that the role and the
// permission object exist, so a bad binding rolls back the whole
// transaction.
func grant(conn *sqlite.Conn, bindings []permission.Binding) error {
	for _, binding := range bindings {
		var roleExists, permissionExists bool
		err := sqlitex.Execute(conn,
			`SELECT
				EXISTS (SELECT 1 FROM roles WHERE name = ?),
				EXISTS (SELECT 1 FROM permissions WHERE action = ? AND resource = ?)`,
			&sqlitex.ExecOptions{
				Args: bindingArgs(binding),
				ResultFunc: func(stmt *sqlite.Stmt) error {
					roleExists = stmt.ColumnBool(0)
					permissionExists = stmt.ColumnBool(1)
					return nil
				},
			})
		if err != nil {
			return err
		}
		if !roleExists {
			return fmt.Errorf("%w: %q", permission.ErrRoleNotFound, binding.Role)
		}
		if !permissionExists {
			return fmt.Errorf("grant of unknown permission %s", binding.Permission)
		}
		err = sqlitex.Execute(conn,
			`INSERT OR IGNORE INTO role_permissions (role, action, resource) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: bindingArgs(binding)})
		if err != nil {
			return err
		}
	}
	return nil
}

func bindingArgs(binding permission.Binding) []any {
	return []any{binding.Role, string(binding.Permission.Action), binding.Permission.Resource}
}

func scanPermission(stmt *sqlite.Stmt, column int) permission.Permission {
	return permission.Permission{
		Action:   permission.Action(stmt.ColumnText(column)),
		Resource: stmt.ColumnText(column + 1),
	}
}
