// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sentinel/cmd/sentinel/cli"
	"github.com/bureau-foundation/sentinel/lib/manifest"
)

func manifestsCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "manifests",
		Summary: "Check workflow manifests",
		Subcommands: []*cli.Command{
			manifestsValidateCommand(stdout),
		},
	}
}

type manifestsValidateParams struct {
	ConfigParams
	cli.JSONOutput
}

// manifestReport is one file in "manifests validate --json" output.
type manifestReport struct {
	Path       string   `json:"path"`
	WorkflowID string   `json:"workflow_id,omitempty"`
	Issues     []string `json:"issues"`
}

func manifestsValidateCommand(stdout io.Writer) *cli.Command {
	var params manifestsValidateParams
	return &cli.Command{
		Name:    "validate",
		Summary: "Validate manifest files",
		Usage:   "sentinel manifests validate [flags] [file...]",
		Description: `Parse and validate workflow manifests. With no arguments, every
manifest in the configured manifests directory is checked. Sensor
entries are checked against the configured sensor defaults. Exits 1
when any manifest has issues.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("validate", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			cfg, err := params.load()
			if err != nil {
				return err
			}
			base, err := sensorDefaults(cfg)
			if err != nil {
				return fmt.Errorf("sensor defaults: %w", err)
			}

			paths := args
			if len(paths) == 0 {
				if paths, err = manifest.Files(cfg.Paths.Manifests); err != nil {
					return err
				}
			}

			reports := make([]manifestReport, 0, len(paths))
			failed := false
			for _, path := range paths {
				report := manifestReport{Path: path}
				workflow, err := manifest.ReadFile(path)
				if err != nil {
					report.Issues = []string{err.Error()}
				} else {
					report.WorkflowID = workflow.ID
					report.Issues = manifest.ValidateWith(workflow, base)
				}
				failed = failed || len(report.Issues) > 0
				reports = append(reports, report)
			}

			if done, err := params.EmitJSON(stdout, reports); done {
				if err == nil && failed {
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			for _, report := range reports {
				if len(report.Issues) == 0 {
					fmt.Fprintf(stdout, "%s: ok (%s)\n", report.Path, report.WorkflowID)
					continue
				}
				fmt.Fprintf(stdout, "%s:\n", report.Path)
				for _, issue := range report.Issues {
					fmt.Fprintf(stdout, "  - %s\n", issue)
				}
			}
			if failed {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
