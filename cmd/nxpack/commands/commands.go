// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete nxpack CLI command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	forwardercmd "github.com/nxpack/nxpack/cmd/nxpack/forwarder"
	storecmd "github.com/nxpack/nxpack/cmd/nxpack/store"
	zipcmd "github.com/nxpack/nxpack/cmd/nxpack/zip"
	"github.com/nxpack/nxpack/lib/version"
)

// Root builds and returns the complete nxpack command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "nxpack",
		Description: `nxpack: forwarder package builder.

Build content archives that start homebrew executables from the home
menu, export them as NSP files or install them into a content store,
and move data through the chunked transfer pipeline.`,
		Subcommands: []*cli.Command{
			forwardercmd.Command(),
			inspectCommand(),
			copyCommand(),
			zipcmd.Command(),
			storecmd.Command(),
			keysCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(context.Context, []string) error {
					fmt.Printf("nxpack %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
