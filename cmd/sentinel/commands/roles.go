// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sentinel/cmd/sentinel/cli"
	"github.com/bureau-foundation/sentinel/lib/manifest"
	"github.com/bureau-foundation/sentinel/lib/permission"
	"github.com/bureau-foundation/sentinel/lib/permsync"
)

func rolesCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "roles",
		Summary: "Synchronize and inspect roles",
		Subcommands: []*cli.Command{
			rolesSyncCommand(stdout),
			rolesListCommand(stdout),
			rolesShowCommand(stdout),
		},
	}
}

type rolesSyncParams struct {
	ConfigParams
	ResourcesOnly bool `json:"-" flag:"resources-only" desc:"only sync workflow access controls, skip baseline roles"`
}

func rolesSyncCommand(stdout io.Writer) *cli.Command {
	var params rolesSyncParams
	return &cli.Command{
		Name:    "sync",
		Summary: "Bring roles and workflow permissions in line with declarations",
		Description: `Create the baseline roles (Admin, Op, User, Viewer, Public) and the
configured custom roles, grant any declared permissions they lack, and
apply the access_control of every workflow manifest in the configured
manifests directory. Unchanged declarations write nothing.`,
		Examples: []cli.Example{
			{Description: "Full sync", Command: "sentinel roles sync --config /etc/sentinel/sentinel.yaml"},
			{Description: "Only workflow permissions", Command: "sentinel roles sync --resources-only"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("sync", &params)
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			cfg, err := params.load()
			if err != nil {
				return err
			}
			store, err := openPermissionStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			syncer, err := permsync.New(permsync.Config{
				Store:       store,
				Discovery:   manifest.Directory{Path: cfg.Paths.Manifests},
				CustomRoles: customRoles(cfg),
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			if params.ResourcesOnly {
				err = syncer.CreateResourceSpecificPermissions(ctx)
			} else {
				err = syncer.SyncRoles(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "roles synchronized (%d store reads)\n", store.Reads())
			return nil
		},
	}
}

type rolesListParams struct {
	ConfigParams
	cli.JSONOutput
	Role string `json:"role" flag:"role" desc:"only list this role"`
}

// roleEntry is one role in "roles list --json" output.
type roleEntry struct {
	Name        string                  `json:"name"`
	Permissions []permission.Permission `json:"permissions"`
}

func rolesListCommand(stdout io.Writer) *cli.Command {
	var params rolesListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List roles and their permissions",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			cfg, err := params.load()
			if err != nil {
				return err
			}
			store, err := openPermissionStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			var roles []permission.Role
			if params.Role != "" {
				role, err := store.Role(ctx, params.Role)
				if err != nil {
					return err
				}
				roles = []permission.Role{role}
			} else if roles, err = store.Roles(ctx); err != nil {
				return err
			}

			entries := make([]roleEntry, 0, len(roles))
			for _, role := range roles {
				entries = append(entries, roleEntry{Name: role.Name, Permissions: role.Permissions.Sorted()})
			}
			if done, err := params.EmitJSON(stdout, entries); done {
				return err
			}

			table := cli.NewTable("ROLE", "ACTION", "RESOURCE")
			for _, entry := range entries {
				if len(entry.Permissions) == 0 {
					table.Row(entry.Name, "-", "-")
				}
				for _, p := range entry.Permissions {
					table.Row(entry.Name, string(p.Action), p.Resource)
				}
			}
			return table.Render(stdout)
		},
	}
}

type rolesShowParams struct {
	ConfigParams
	cli.JSONOutput
	Workflow string `json:"workflow" flag:"workflow" desc:"workflow id to inspect (required)"`
}

// grantEntry is one role binding held on a resource.
type grantEntry struct {
	Role   string            `json:"role"`
	Action permission.Action `json:"action"`
}

// declarationOutput is the "roles show --json" result.
type declarationOutput struct {
	Resource string                   `json:"resource"`
	Synced   bool                     `json:"synced"`
	Declared permission.AccessControl `json:"declared,omitempty"`
	Granted  []grantEntry             `json:"granted"`
}

func rolesShowCommand(stdout io.Writer) *cli.Command {
	var params rolesShowParams
	return &cli.Command{
		Name:    "show",
		Summary: "Show a workflow's synced declaration and current grants",
		Description: `Print the access_control last applied to the workflow by "roles sync"
next to the role bindings the store currently holds on its resource.
A workflow that has never been synced shows no declaration.`,
		Examples: []cli.Example{
			{Description: "Inspect a workflow", Command: "sentinel roles show --workflow ingest"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			if params.Workflow == "" {
				return fmt.Errorf("--workflow is required")
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			store, err := openPermissionStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			resource := permission.ResourceNameForWorkflow(params.Workflow)
			declared, synced, err := store.DeclaredAccessControl(ctx, resource)
			if err != nil {
				return err
			}
			roles, err := store.Roles(ctx)
			if err != nil {
				return err
			}

			output := declarationOutput{Resource: resource, Synced: synced, Declared: declared, Granted: []grantEntry{}}
			for _, role := range roles {
				for _, p := range role.Permissions.OnResource(resource).Sorted() {
					output.Granted = append(output.Granted, grantEntry{Role: role.Name, Action: p.Action})
				}
			}
			if done, err := params.EmitJSON(stdout, output); done {
				return err
			}

			if !synced {
				fmt.Fprintf(stdout, "no access_control recorded for %s\n", resource)
			}
			table := cli.NewTable("ROLE", "ACTION", "DECLARED", "GRANTED")
			for _, row := range declarationRows(declared, output.Granted) {
				table.Row(row...)
			}
			return table.Render(stdout)
		},
	}
}

// declarationRows merges declared actions and granted bindings into
// one row per role and action, sorted.
func declarationRows(declared permission.AccessControl, granted []grantEntry) [][]string {
	type key struct {
		role   string
		action permission.Action
	}
	state := make(map[key][2]bool)
	for role, actions := range declared {
		for _, action := range actions {
			entry := state[key{role, action}]
			entry[0] = true
			state[key{role, action}] = entry
		}
	}
	for _, grant := range granted {
		entry := state[key{grant.Role, grant.Action}]
		entry[1] = true
		state[key{grant.Role, grant.Action}] = entry
	}

	keys := make([]key, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		return cmp.Or(cmp.Compare(a.role, b.role), cmp.Compare(a.action, b.action))
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		entry := state[k]
		rows = append(rows, []string{k.role, string(k.action), yesNo(entry[0]), yesNo(entry[1])})
	}
	return rows
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
