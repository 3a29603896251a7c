// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package ziptransfer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/transfer"
)

// InsertOne streams sourcePath into a new deflated entry called name.
func InsertOne(ctx context.Context, filesystem fsys.FS, progress transfer.ProgressSink, writer *zip.Writer, sourcePath, name string) error {
	input, err := filesystem.OpenFile(sourcePath, fsys.ModeRead)
	if err != nil {
		return fmt.Errorf("opening %s: %w", sourcePath, err)
	}
	defer input.Close()
	size, err := input.GetSize()
	if err != nil {
		return err
	}

	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	header.SetMode(0o644)
	entry, err := writer.CreateHeader(header)
	if err != nil {
		return fault.Wrap(fault.IO, fmt.Errorf("creating entry %s: %w", name, err))
	}
	err = transfer.Transfer(ctx, progress, size, transfer.ReadAt(input), transfer.WriteSequential(entry), extractOptions())
	if err != nil {
		return fmt.Errorf("inserting %s: %w", sourcePath, err)
	}
	return nil
}

// CreateArchive writes a zip of files to out. files are paths relative
// to base and become the entry names, slash-separated.
func CreateArchive(ctx context.Context, filesystem fsys.FS, progress transfer.ProgressSink, out io.Writer, base string, files []string) error {
	writer := zip.NewWriter(out)
	for _, relative := range files {
		name := filepath.ToSlash(filepath.Clean(relative))
		if err := InsertOne(ctx, filesystem, progress, writer, filepath.Join(base, relative), name); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return fault.Wrap(fault.IO, fmt.Errorf("finishing archive: %w", err))
	}
	return nil
}
