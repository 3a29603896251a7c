// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package zip implements the "nxpack zip" command group: extracting
// and creating zip archives through the transfer pipeline.
package zip

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/transfer"
	"github.com/nxpack/nxpack/lib/ziptransfer"
)

// Command returns the "zip" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "zip",
		Summary: "Extract and create zip archives",
		Subcommands: []*cli.Command{
			extractCommand(),
			createCommand(),
		},
	}
}

type extractParams struct {
	cli.GlobalParams
	Include []string `flag:"include" desc:"only extract entries matching these path patterns"`
}

func extractCommand() *cli.Command {
	var params extractParams

	return &cli.Command{
		Name:    "extract",
		Summary: "Extract a zip archive into a directory",
		Description: `Extract every entry of a zip archive into a directory, checking each
entry's size and CRC-32. Entries whose names would escape the directory
are rejected.`,
		Usage: "nxpack zip extract <archive.zip> <directory> [flags]",
		Examples: []cli.Example{
			{
				Description: "Extract only the homebrew executables",
				Command:     "nxpack zip extract release.zip sdmc/ --include 'switch/*/*.nro'",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, 2, "nxpack zip extract <archive.zip> <directory> [flags]"); err != nil {
				return fault.Wrap(fault.InvalidArgument, err)
			}
			env, err := params.Environment("zip/extract")
			if err != nil {
				return err
			}
			filter, err := includeFilter(params.Include)
			if err != nil {
				return err
			}

			reader, err := zip.OpenReader(args[0])
			if err != nil {
				return fault.Wrap(fault.IO, fmt.Errorf("opening %s: %w", args[0], err))
			}
			defer reader.Close()

			env.Logger.Info("extracting archive", "archive", args[0], "entries", len(reader.File), "destination", args[1])
			progress := cli.NewProgress(ctx, "extracting")
			err = ziptransfer.ExtractAll(ctx, fsys.OS{}, progress, &reader.Reader, args[1], filter)
			progress.Finish()
			return err
		},
	}
}

// includeFilter returns a filter keeping entries that match any of
// patterns, or nil when there are none.
func includeFilter(patterns []string) (ziptransfer.Filter, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	for _, pattern := range patterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fault.New(fault.InvalidArgument, "include pattern %q: %w", pattern, err)
		}
	}
	return func(name, destination string) (string, bool) {
		for _, pattern := range patterns {
			if matched, _ := path.Match(pattern, name); matched {
				return destination, true
			}
		}
		return "", false
	}, nil
}

func createCommand() *cli.Command {
	var params cli.GlobalParams

	return &cli.Command{
		Name:    "create",
		Summary: "Create a zip archive from a directory",
		Description: `Create a zip archive holding every regular file under a directory.
Entry names are relative to the directory and files are deflated.`,
		Usage:  "nxpack zip create <directory> <archive.zip> [flags]",
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string) error {
			if err := cli.RequireArgs(args, 2, "nxpack zip create <directory> <archive.zip> [flags]"); err != nil {
				return fault.Wrap(fault.InvalidArgument, err)
			}
			env, err := params.Environment("zip/create")
			if err != nil {
				return err
			}
			files, err := collectFiles(args[0])
			if err != nil {
				return err
			}
			env.Logger.Info("creating archive", "source", args[0], "files", len(files), "archive", args[1])

			progress := cli.NewProgress(ctx, "compressing")
			err = createArchive(ctx, progress, args[0], files, args[1])
			progress.Finish()
			return err
		},
	}
}

// collectFiles lists the regular files under root, relative to it, in
// lexical order.
func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}
		files = append(files, relative)
		return nil
	})
	if err != nil {
		return nil, fault.Wrap(fault.IO, fmt.Errorf("listing %s: %w", root, err))
	}
	return files, nil
}

// createArchive writes the archive under a partial name and renames it
// into place once complete.
func createArchive(ctx context.Context, progress transfer.ProgressSink, base string, files []string, destination string) error {
	partial := destination + transfer.PartialSuffix
	output, err := os.Create(partial)
	if err != nil {
		return fault.Wrap(fault.IO, fmt.Errorf("creating %s: %w", partial, err))
	}
	if err := ziptransfer.CreateArchive(ctx, fsys.OS{}, progress, output, base, files); err != nil {
		output.Close()
		os.Remove(partial)
		return err
	}
	if err := output.Close(); err != nil {
		os.Remove(partial)
		return fault.Wrap(fault.IO, fmt.Errorf("closing %s: %w", partial, err))
	}
	if err := os.Rename(partial, destination); err != nil {
		os.Remove(partial)
		return fault.Wrap(fault.IO, fmt.Errorf("renaming %s: %w", partial, err))
	}
	return nil
}
