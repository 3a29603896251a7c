// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/fsys"
)

type nspParams struct {
	packageParams
	Output string `flag:"output,o" desc:"NSP file to write (default: <application id>.nsp)"`
}

func nspCommand() *cli.Command {
	var params nspParams

	return &cli.Command{
		Name:    "nsp",
		Summary: "Build a forwarder and export it as an NSP",
		Description: `Build a forwarder package and write it as a single NSP: a partition
filesystem holding the three content archives.`,
		Usage: "nxpack forwarder nsp --nro <path> [-o file.nsp] [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fault.New(fault.InvalidArgument, "unexpected argument %q", args[0])
			}
			env, err := params.Environment("forwarder/nsp")
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
			output := params.Output
			if output == "" {
				output = forwarder.FormatTitleID(pkg.IDs.Application) + ".nsp"
			}
			image := forwarder.ExportNSP(pkg)

			progress := cli.NewProgress(ctx, "exporting")
			err = writeOutput(ctx, fsys.OS{}, progress, output, image, options)
			progress.Finish()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s %s\n", output, humanize.IBytes(uint64(len(image))))
			return nil
		},
	}
}
