// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/transfer"
)

type copyParams struct {
	cli.GlobalParams
	Decompress string `flag:"decompress" desc:"decode the source: zstd, lz4 or deflate"`
	Compress   string `flag:"compress"   desc:"encode the destination: zstd, lz4 or deflate"`
	Mode       string `flag:"mode"       desc:"override transfer.mode: multi_threaded, single_threaded or single_threaded_if_smaller"`
}

func copyCommand() *cli.Command {
	var params copyParams

	return &cli.Command{
		Name:    "copy",
		Summary: "Copy a file through the transfer pipeline",
		Description: `Copy a file through the chunked transfer pipeline, optionally decoding
or encoding it on the way. The destination is written under a .part
name and renamed into place when the copy completes.`,
		Usage: "nxpack copy <source> <destination> [flags]",
		Examples: []cli.Example{
			{
				Description: "Decompress a zstd-compressed dump",
				Command:     "nxpack copy game.xci.zst game.xci --decompress zstd",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, 2, "nxpack copy <source> <destination> [flags]"); err != nil {
				return fault.Wrap(fault.InvalidArgument, err)
			}
			env, err := params.Environment("copy")
			if err != nil {
				return err
			}
			options, err := env.TransferOptions()
			if err != nil {
				return err
			}
			if params.Mode != "" {
				if options.Mode, err = transfer.ParseMode(params.Mode); err != nil {
					return fault.Wrap(fault.InvalidArgument, err)
				}
			}
			if options.Transform, err = copyTransform(params.Decompress, params.Compress); err != nil {
				return err
			}

			progress := cli.NewProgress(ctx, "copying")
			err = transfer.CopyFile(ctx, fsys.OS{}, progress, args[0], args[1], options)
			progress.Finish()
			return err
		},
	}
}

// copyTransform returns the transform for the codec flags. At most one
// of decompress and compress may be set.
func copyTransform(decompress, compress string) (transfer.TransformFunc, error) {
	if decompress != "" && compress != "" {
		return nil, fault.New(fault.InvalidArgument, "--decompress and --compress are mutually exclusive")
	}
	name, build := decompress, transfer.Decoder
	if compress != "" {
		name, build = compress, transfer.Encoder
	}
	codec, err := transfer.ParseCodec(name)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidArgument, err)
	}
	transform, err := build(codec)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidArgument, fmt.Errorf("codec %s: %w", codec, err))
	}
	return transform, nil
}
