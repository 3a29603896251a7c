// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"cmp"
	"context"
	"fmt"
	"os"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/contentstore"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/install"
)

type installParams struct {
	packageParams
	Store string `flag:"store" desc:"content store root (default: paths.store)"`
}

func installCommand() *cli.Command {
	var params installParams

	return &cli.Command{
		Name:    "install",
		Summary: "Build a forwarder and install it into the content store",
		Description: `Build a forwarder package and install it: each archive is streamed
into a placeholder, verified and registered, then the content meta and
application record are committed.

Interrupting the install (Ctrl-C) cancels the transfer in progress.
Archives already registered stay in the store; "nxpack store remove"
deletes them.`,
		Usage: "nxpack forwarder install --nro <path> [flags]",
		Examples: []cli.Example{
			{
				Description: "Install a forwarder that passes arguments",
				Command:     `nxpack forwarder install --nro /switch/retro/retro.nro --args "/switch/retro/retro.nro /roms/game.sfc" --name Game`,
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fault.New(fault.InvalidArgument, "unexpected argument %q", args[0])
			}
			env, err := params.Environment("forwarder/install")
			if err != nil {
				return err
			}
			if err := env.Config.EnsurePaths(); err != nil {
				return err
			}
			pkg, err := params.build(env)
			if err != nil {
				return err
			}
			logArchives(env.Logger, pkg)

			store, err := contentstore.Open(cmp.Or(params.Store, env.Config.Paths.Store), env.Logger)
			if err != nil {
				return err
			}
			transferOptions, err := env.TransferOptions()
			if err != nil {
				return err
			}

			progress := cli.NewProgress(ctx, "installing")
			err = install.Install(ctx, store, pkg, progress, install.Options{
				Transfer: transferOptions,
				Logger:   env.Logger,
			})
			progress.Finish()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "installed %s %s\n", pkg.IDs, pkg.Records.Application.Name)
			return nil
		},
	}
}
