// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the nxpack
// binary.
//
// Version information is injected at build time via -ldflags, for
// example:
//
//	go build -ldflags "-X github.com/nxpack/nxpack/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When the linker flags are absent (go install, go run), the commit
// and dirty flag fall back to the VCS stamp in the binary's build
// info.
package version
