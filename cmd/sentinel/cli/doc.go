// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the sentinel CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree in
// cmd/sentinel/commands and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and structured help output
// with examples.
//
// Flags are declared as tagged struct fields and bound with
// [FlagsFromParams]; embedding [JSONOutput] adds --json. When a user
// types an unknown subcommand or flag, the framework suggests the
// closest known name by edit distance (threshold: distance <= 3).
//
// [Table] renders aligned text tables, with styled headers when the
// output is a terminal.
package cli
