// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/fsys"
)

type createParams struct {
	packageParams
	Output string `flag:"output,o" desc:"directory the content archives are written to" default:"."`
}

func createCommand() *cli.Command {
	var params createParams

	return &cli.Command{
		Name:    "create",
		Summary: "Build a forwarder and write its content archives",
		Description: `Build a forwarder package and write its program, control and meta
archives to a directory, named by content id.`,
		Usage: "nxpack forwarder create --nro <path> [flags]",
		Examples: []cli.Example{
			{
				Description: "Build a forwarder for a homebrew app",
				Command:     "nxpack forwarder create --nro /switch/app/app.nro --icon icon.jpg -o out/",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fault.New(fault.InvalidArgument, "unexpected argument %q", args[0])
			}
			env, err := params.Environment("forwarder/create")
			if err != nil {
				return err
			}
			pkg, err := params.build(env)
			if err != nil {
				return err
			}
			logArchives(env.Logger, pkg)

			options, err := env.TransferOptions()
			if err != nil {
				return err
			}
			progress := cli.NewProgress(ctx, "writing")
			defer progress.Finish()
			for _, archive := range pkg.Archives() {
				path := filepath.Join(params.Output, forwarder.NSPEntryName(archive.Info))
				if err := writeOutput(ctx, fsys.OS{}, progress, path, archive.Data, options); err != nil {
					return err
				}
			}
			progress.Finish()

			fmt.Fprintf(os.Stdout, "%s %s (%s)\n", pkg.IDs, pkg.Records.Application.Name, humanize.IBytes(uint64(pkg.Size())))
			for _, archive := range pkg.Archives() {
				fmt.Fprintf(os.Stdout, "  %-8s %s\n", archive.Info.Type, forwarder.NSPEntryName(archive.Info))
			}
			return nil
		},
	}
}
