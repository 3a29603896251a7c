// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the nxpack CLI.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a parameter struct bound to a
// [pflag.FlagSet] through struct tags ([FlagsFromParams]), and a Run
// function. Commands are assembled into a tree in cmd/nxpack/commands
// and dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and structured help output with examples.
//
// When a user types an unknown subcommand or flag, the framework computes
// Levenshtein edit distance against all known names and suggests the
// closest match (threshold: distance <= 3).
//
// Commands that load configuration or keys embed [GlobalParams], which
// carries --config and --verbose and builds the [Environment] (config,
// logger, transfer options) a command runs with. [Progress] renders a
// single-line transfer progress display on stderr.
package cli
