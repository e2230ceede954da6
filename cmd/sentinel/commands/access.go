// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sentinel/cmd/sentinel/cli"
	"github.com/bureau-foundation/sentinel/lib/access"
	"github.com/bureau-foundation/sentinel/lib/config"
	"github.com/bureau-foundation/sentinel/lib/permission"
	"github.com/bureau-foundation/sentinel/lib/permstore"
)

func accessCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "access",
		Summary: "Answer access questions",
		Subcommands: []*cli.Command{
			accessCheckCommand(stdout),
			accessIDsCommand(stdout),
		},
	}
}

// PrincipalParams describe the caller an access question is asked for.
type PrincipalParams struct {
	Principal string   `json:"principal,omitempty" flag:"principal" desc:"principal id, for logs"`
	Roles     []string `json:"roles" flag:"role" desc:"role held by the principal (repeatable)"`
	Anonymous bool     `json:"anonymous" flag:"anonymous" desc:"ask for an anonymous caller (uses the public role)"`
}

func (p PrincipalParams) principal() (access.Principal, error) {
	if p.Anonymous {
		if len(p.Roles) > 0 {
			return access.Principal{}, errors.New("--anonymous and --role are mutually exclusive")
		}
		return access.AnonymousPrincipal(), nil
	}
	id := p.Principal
	if id == "" {
		id = "roles=" + strings.Join(p.Roles, ",")
	}
	return access.Principal{ID: id, Roles: p.Roles}, nil
}

type evaluatorHandle struct {
	evaluator *access.Evaluator
	store     *permstore.Store
}

func openEvaluator(cfg *config.Config, logger *slog.Logger) (*evaluatorHandle, error) {
	store, err := openPermissionStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	evaluator, err := access.New(access.Config{
		Store:      store,
		PublicRole: cfg.Auth.PublicRole,
		AdminRole:  cfg.Auth.AdminRole,
		Logger:     logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &evaluatorHandle{evaluator: evaluator, store: store}, nil
}

type accessCheckParams struct {
	ConfigParams
	PrincipalParams
	cli.JSONOutput
	Action   string `json:"action" flag:"action" desc:"action to check (required)"`
	Resource string `json:"resource" flag:"resource" desc:"resource name, e.g. \"Workflows\""`
	Workflow string `json:"workflow" flag:"workflow" desc:"workflow id; shorthand for --resource WORKFLOW:<id>"`
}

// checkOutput is "access check --json" output.
type checkOutput struct {
	Principal         string                 `json:"principal"`
	Action            permission.Action      `json:"action"`
	Resource          string                 `json:"resource"`
	Decision          string                 `json:"decision"`
	Rule              string                 `json:"rule"`
	MatchedRole       string                 `json:"matched_role,omitempty"`
	MatchedPermission *permission.Permission `json:"matched_permission,omitempty"`
}

func accessCheckCommand(stdout io.Writer) *cli.Command {
	var params accessCheckParams
	return &cli.Command{
		Name:    "check",
		Summary: "Check whether a principal may perform an action",
		Description: `Evaluate one access question and print the decision with the rule
that produced it. Exits 1 when access is denied.`,
		Examples: []cli.Example{
			{Description: "May data-eng edit the ingest workflow?", Command: "sentinel access check --role data-eng --action can_edit --workflow ingest"},
			{Description: "May anonymous callers read workflow runs?", Command: `sentinel access check --anonymous --action can_read --resource "Workflow Runs"`},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("check", &params)
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			if params.Action == "" {
				return errors.New("--action is required")
			}
			resource := params.Resource
			switch {
			case params.Workflow != "" && resource != "":
				return errors.New("--resource and --workflow are mutually exclusive")
			case params.Workflow != "":
				resource = permission.ResourceNameForWorkflow(params.Workflow)
			case resource == "":
				return errors.New("one of --resource or --workflow is required")
			}
			principal, err := params.principal()
			if err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			handle, err := openEvaluator(cfg, logger)
			if err != nil {
				return err
			}
			defer handle.store.Close()

			action := permission.Action(params.Action)
			result, err := handle.evaluator.Check(ctx, principal, action, resource)
			if err != nil {
				return err
			}
			allowed := result.Decision == access.Allow

			output := checkOutput{
				Principal:         principal.String(),
				Action:            action,
				Resource:          resource,
				Decision:          result.Decision.String(),
				Rule:              result.Rule.String(),
				MatchedRole:       result.MatchedRole,
				MatchedPermission: result.MatchedPermission,
			}
			if done, err := params.EmitJSON(stdout, output); done {
				if err == nil && !allowed {
					return &cli.ExitError{Code: 1}
				}
				return err
			}

			fmt.Fprintf(stdout, "%s  %s %s on %q (rule: %s", cli.Verdict(stdout, allowed),
				output.Principal, action, resource, output.Rule)
			if result.MatchedRole != "" {
				fmt.Fprintf(stdout, ", role: %s", result.MatchedRole)
			}
			fmt.Fprintln(stdout, ")")
			if !allowed {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

type accessIDsParams struct {
	ConfigParams
	PrincipalParams
	cli.JSONOutput
	Action string `json:"action" flag:"action" desc:"can_read or can_edit" default:"can_read"`
}

func accessIDsCommand(stdout io.Writer) *cli.Command {
	var params accessIDsParams
	return &cli.Command{
		Name:    "ids",
		Summary: "List the workflow ids a principal may act on",
		Examples: []cli.Example{
			{Description: "Workflows the Viewer role can read", Command: "sentinel access ids --role Viewer"},
			{Description: "Workflows data-eng can edit, as JSON", Command: "sentinel access ids --role data-eng --action can_edit --json"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("ids", &params)
		},
		Run: func(ctx context.Context, _ []string, logger *slog.Logger) error {
			principal, err := params.principal()
			if err != nil {
				return err
			}
			cfg, err := params.load()
			if err != nil {
				return err
			}
			handle, err := openEvaluator(cfg, logger)
			if err != nil {
				return err
			}
			defer handle.store.Close()

			ids, err := handle.evaluator.AccessibleResourceIDs(ctx, principal, permission.Action(params.Action))
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(stdout, ids); done {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(stdout, id)
			}
			return nil
		},
	}
}
