// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the sentinel CLI command tree. Every command
// loads its configuration from --config or SENTINEL_CONFIG, opens the
// SQLite database the configuration names, and writes its output to
// the writer given to [Root].
package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/sentinel/cmd/sentinel/cli"
	"github.com/bureau-foundation/sentinel/lib/version"
)

// Root builds the complete command tree writing results to stdout.
func Root(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name: "sentinel",
		Description: `Sentinel: sensor scheduling and workflow access control.

Run poll-based sensors with reschedule bookkeeping, keep the role and
permission catalog in line with workflow manifests, and answer access
questions against it.`,
		Subcommands: []*cli.Command{
			rolesCommand(stdout),
			accessCommand(stdout),
			sensorCommand(stdout),
			reschedulesCommand(stdout),
			tasksCommand(stdout),
			manifestsCommand(stdout),
			versionCommand(stdout),
		},
	}
}

type versionParams struct {
	cli.JSONOutput
}

func versionCommand(stdout io.Writer) *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
			if done, err := params.EmitJSON(stdout, version.Current()); done {
				return err
			}
			_, err := io.WriteString(stdout, "sentinel "+version.Full()+"\n")
			return err
		},
	}
}
