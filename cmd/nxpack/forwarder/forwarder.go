// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nxpack/nxpack/cmd/nxpack/cli"
	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/transfer"
)

// Command returns the "forwarder" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "forwarder",
		Summary: "Build and install forwarder packages",
		Description: `Build forwarder packages that start a homebrew executable from the
home menu.

A forwarder is three content archives (program, control and meta) whose
title id is derived from the executable path and its arguments, so the
same inputs always produce the same title. The loader stub and its NPDM
come from the config file (paths.loader, paths.loader_metadata) unless
given with --loader and --loader-metadata.`,
		Subcommands: []*cli.Command{
			createCommand(),
			nspCommand(),
			installCommand(),
		},
	}
}

// packageParams are the inputs shared by every forwarder subcommand.
type packageParams struct {
	cli.GlobalParams
	NroPath        string `flag:"nro"             desc:"absolute path of the executable on the console (required)"`
	Args           string `flag:"args"            desc:"argument line passed to the executable (default: the executable path)"`
	Name           string `flag:"name"            desc:"title name (default: executable file name)"`
	Author         string `flag:"author"          desc:"publisher name (default: package.author)"`
	DisplayVersion string `flag:"display-version" desc:"version string shown on the home menu (default: package.display_version)"`
	Icon           string `flag:"icon"            desc:"JPEG icon file"`
	Logo           string `flag:"logo"            desc:"PNG boot logo (requires --startup-movie)"`
	StartupMovie   string `flag:"startup-movie"   desc:"GIF boot animation (requires --logo)"`
	SystemVersion  string `flag:"system-version"  desc:"firmware the package targets, major.minor.micro (default: package.system_version)"`
	Keys           string `flag:"keys"            desc:"key file (default: paths.keys)"`
	Loader         string `flag:"loader"          desc:"loader stub executable (default: paths.loader)"`
	LoaderMetadata string `flag:"loader-metadata" desc:"loader stub NPDM (default: paths.loader_metadata)"`
}

// build loads every input and assembles the package.
func (p *packageParams) build(env *cli.Environment) (*forwarder.Package, error) {
	cfg := env.Config

	systemVersion, err := forwarder.ParseSystemVersion(cmp.Or(p.SystemVersion, cfg.Package.SystemVersion))
	if err != nil {
		return nil, fmt.Errorf("system version: %w", err)
	}

	options := forwarder.Options{
		NroPath:         p.NroPath,
		Args:            p.Args,
		Name:            p.Name,
		Author:          cmp.Or(p.Author, cfg.Package.Author),
		DisplayVersion:  cmp.Or(p.DisplayVersion, cfg.Package.DisplayVersion),
		SystemVersion:   systemVersion,
		KeyGeneration:   cfg.Package.KeyGeneration,
		SDKAddonVersion: cfg.Package.SDKAddonVersion,
		Logger:          env.Logger,
	}
	inputs := []struct {
		path        string
		destination *[]byte
	}{
		{cmp.Or(p.Loader, cfg.Paths.Loader), &options.Loader},
		{cmp.Or(p.LoaderMetadata, cfg.Paths.LoaderMetadata), &options.LoaderMetadata},
		{p.Icon, &options.Icon},
		{p.Logo, &options.Logo},
		{p.StartupMovie, &options.StartupMovie},
	}
	for _, input := range inputs {
		if input.path == "" {
			continue
		}
		data, err := os.ReadFile(input.path)
		if err != nil {
			return nil, err
		}
		*input.destination = data
	}

	keys, err := env.LoadKeys(p.Keys)
	if err != nil {
		return nil, err
	}
	pkg, err := forwarder.Create(keys, options)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("built forwarder",
		"application_id", pkg.IDs.String(),
		"name", pkg.Records.Application.Name,
		"nro", p.NroPath,
	)
	return pkg, nil
}

// writeOutput streams data to path through the transfer pipeline.
// The file is written under a partial name and renamed into place once
// complete.
func writeOutput(ctx context.Context, filesystem fsys.FS, progress transfer.ProgressSink, path string, data []byte, options transfer.Options) error {
	if err := filesystem.CreateDirectoryRecursively(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	size := int64(len(data))
	if err := fsys.CheckSpace(filesystem, filepath.Dir(path), size); err != nil {
		return err
	}

	partial := path + transfer.PartialSuffix
	output, err := filesystem.OpenFile(partial, fsys.ModeWrite)
	if err != nil {
		return fmt.Errorf("creating %s: %w", partial, err)
	}
	discard := func(cause error) error {
		output.Close()
		filesystem.DeleteFile(partial)
		return cause
	}
	if err := output.SetSize(size); err != nil {
		return discard(fmt.Errorf("preallocating %s: %w", partial, err))
	}
	if err := transfer.Transfer(ctx, progress, size, transfer.ReadAt(bytes.NewReader(data)), transfer.WriteAt(output), options); err != nil {
		return discard(fmt.Errorf("writing %s: %w", path, err))
	}
	if err := output.Close(); err != nil {
		filesystem.DeleteFile(partial)
		return fmt.Errorf("closing %s: %w", partial, err)
	}
	if err := filesystem.RenameFile(partial, path); err != nil {
		filesystem.DeleteFile(partial)
		return fmt.Errorf("renaming %s: %w", partial, err)
	}
	return nil
}

func logArchives(logger *slog.Logger, pkg *forwarder.Package) {
	for _, archive := range pkg.Archives() {
		logger.Debug("content archive",
			"content_id", archive.Info.ID.String(),
			"type", archive.Info.Type.String(),
			"size", archive.Info.Size,
		)
	}
}
