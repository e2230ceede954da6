// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Sentinel is the operator CLI: role and permission sync, access
// checks, sensor runs, and reschedule history. See "sentinel --help".
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/sentinel/cmd/sentinel/cli"
	"github.com/bureau-foundation/sentinel/cmd/sentinel/commands"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelInfo
	if os.Getenv("SENTINEL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return commands.Root(os.Stdout).Execute(ctx, os.Args[1:], cli.NewCommandLogger(level))
}
