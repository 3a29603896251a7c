// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/nxpack/nxpack/lib/contentstore"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/forwarder"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/transfer"
)

// Options tune an installation.
type Options struct {
	// Transfer configures the pipeline used for every archive. Its
	// Transform and Pull fields must be unset.
	Transfer transfer.Options

	Logger *slog.Logger
}

// SpaceReporter is implemented by registrars that can report free
// space. Install refuses to start when the package does not fit.
type SpaceReporter interface {
	FreeSpace() (int64, error)
}

// Install streams pkg into registrar and registers it. Progress is
// reported over the combined size of all archives. Registrar failures
// are classified Registration; pipeline failures keep their own kind,
// so a cancelled install reports Cancelled.
func Install(ctx context.Context, registrar contentstore.Registrar, pkg *forwarder.Package, progress transfer.ProgressSink, options Options) error {
	if options.Transfer.Transform != nil || options.Transfer.Pull != nil {
		return fault.New(fault.InvalidArgument, "install transfers archives verbatim")
	}
	logger := cmp.Or(options.Logger, slog.Default())
	total := pkg.Size()

	if reporter, ok := registrar.(SpaceReporter); ok {
		free, err := reporter.FreeSpace()
		if err == nil && free < total {
			return fmt.Errorf("installing %s needs %s, %s free: %w",
				pkg.IDs, humanize.IBytes(uint64(total)), humanize.IBytes(uint64(max(free, 0))), fsys.ErrNoSpace)
		}
	}

	var base int64
	for _, archive := range pkg.Archives() {
		if err := installArchive(ctx, registrar, archive, &offsetProgress{sink: progress, base: base, total: total}, options.Transfer); err != nil {
			return err
		}
		base += archive.Info.Size
		logger.Info("registered content",
			"application_id", pkg.IDs.String(),
			"content_id", archive.Info.ID.String(),
			"type", archive.Info.Type.String(),
			"size", humanize.IBytes(uint64(archive.Info.Size)),
		)
	}

	records := pkg.Records
	if err := registrar.SetContentMeta(records.Key, records.Contents); err != nil {
		return fault.New(fault.Registration, "setting content meta %s: %w", records.Key, err)
	}
	if err := registrar.PushApplicationRecord(records.Application); err != nil {
		return fault.New(fault.Registration, "pushing application record %s: %w", pkg.IDs, err)
	}
	if err := registrar.Commit(); err != nil {
		return fault.New(fault.Registration, "committing %s: %w", pkg.IDs, err)
	}
	logger.Info("installed forwarder", "application_id", pkg.IDs.String(), "size", humanize.IBytes(uint64(total)))
	return nil
}

func installArchive(ctx context.Context, registrar contentstore.Registrar, archive forwarder.Archive, progress transfer.ProgressSink, options transfer.Options) error {
	id := archive.Info.ID
	if err := registrar.CreatePlaceholder(id, archive.Info.Size); err != nil {
		return fault.New(fault.Registration, "creating placeholder %s: %w", id, err)
	}
	write := func(data []byte, offset int64) error {
		if err := registrar.WritePlaceholder(id, offset, data); err != nil {
			return fault.New(fault.Registration, "writing placeholder %s: %w", id, err)
		}
		return nil
	}
	err := transfer.Transfer(ctx, progress, archive.Info.Size, transfer.ReadAt(bytes.NewReader(archive.Data)), write, options)
	if err != nil {
		return fmt.Errorf("streaming %s content %s: %w", archive.Info.Type, id, err)
	}
	if err := registrar.Register(archive.Info); err != nil {
		return fault.New(fault.Registration, "registering %s: %w", id, err)
	}
	return nil
}

// offsetProgress reports one archive's progress as part of the whole
// package.
type offsetProgress struct {
	sink  transfer.ProgressSink
	base  int64
	total int64
}

func (p *offsetProgress) ShouldExit() bool      { return p.sink.ShouldExit() }
func (p *offsetProgress) Done() <-chan struct{} { return p.sink.Done() }

func (p *offsetProgress) UpdateTransfer(current, _ int64) {
	p.sink.UpdateTransfer(p.base+current, p.total)
}
