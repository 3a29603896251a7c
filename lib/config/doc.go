// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for nxpack.
//
// Configuration is loaded from a single file specified by either the
// NXPACK_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. Commands that can run without a
// config file start from [Default].
//
// The configuration file supports environment-specific sections
// (development, production) that override base values when
// [Config].Environment matches. Production defaults are quieter: the
// log level is raised to warn unless the file says otherwise.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${NXPACK_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Transfer, Package, LogLevel
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.TransferOptions], [Config.Slog] -- typed views of fields
//     stored as strings in the file
package config
