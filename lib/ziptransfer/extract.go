// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package ziptransfer

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/fsys"
	"github.com/nxpack/nxpack/lib/transfer"
)

// Filter decides whether an entry is extracted and where. It receives
// the entry name and the default destination and returns the
// destination to use, or false to skip the entry.
type Filter func(name, destination string) (string, bool)

// extractOptions are the pipeline settings for archive work.
func extractOptions() transfer.Options {
	return transfer.Options{
		Mode:      transfer.ModeSingleThreadedIfSmaller,
		ChunkSize: transfer.SmallChunkSize,
	}
}

// ExtractOne streams an open entry reader to target. expectedSize is
// the uncompressed size; a CRC of zero skips the CRC comparison.
func ExtractOne(ctx context.Context, filesystem fsys.FS, progress transfer.ProgressSink, entry io.Reader, target string, expectedSize int64, expectedCRC32 uint32) error {
	output, err := filesystem.OpenFile(target, fsys.ModeWrite)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	defer output.Close()

	checksum := crc32.NewIEEE()
	source := io.TeeReader(entry, checksum)
	err = transfer.Transfer(ctx, progress, expectedSize, transfer.ReadSequential(source), transfer.WriteAt(output), extractOptions())
	if err != nil {
		if corruptEntry(err) {
			return fault.New(fault.ChecksumMismatch, "extracting %s: %w", target, err)
		}
		return fmt.Errorf("extracting %s: %w", target, err)
	}

	// Reading past the declared size lets the zip reader reach end of
	// entry and run its own CRC check.
	extra, err := source.Read(make([]byte, 1))
	switch {
	case corruptEntry(err):
		return fault.New(fault.ChecksumMismatch, "extracting %s: %w", target, err)
	case extra > 0:
		return fault.New(fault.IO, "extracting %s: entry is longer than %d bytes", target, expectedSize)
	case err != nil && !errors.Is(err, io.EOF):
		return fault.Wrap(fault.IO, fmt.Errorf("extracting %s: %w", target, err))
	}

	written, err := output.GetSize()
	if err != nil {
		return err
	}
	if expectedSize >= 0 && written != expectedSize {
		return fault.New(fault.IO, "extracting %s: entry ended after %d of %d bytes", target, written, expectedSize)
	}
	if expectedCRC32 != 0 && checksum.Sum32() != expectedCRC32 {
		return fault.New(fault.ChecksumMismatch, "extracting %s: crc32 %08x, expected %08x", target, checksum.Sum32(), expectedCRC32)
	}
	return nil
}

// corruptEntry reports whether err is the entry reader rejecting the
// archive bytes. Undecodable deflate data counts, as does a stream
// whose CRC or length disagrees with the central directory.
func corruptEntry(err error) bool {
	var corrupt flate.CorruptInputError
	return errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &corrupt)
}

// ExtractFile extracts one archive member to target, verifying it
// against the CRC-32 recorded in the archive.
func ExtractFile(ctx context.Context, filesystem fsys.FS, progress transfer.ProgressSink, file *zip.File, target string) error {
	entry, err := file.Open()
	if err != nil {
		return fault.Wrap(fault.IO, fmt.Errorf("opening entry %s: %w", file.Name, err))
	}
	defer entry.Close()
	return ExtractOne(ctx, filesystem, progress, entry, target, int64(file.UncompressedSize64), file.CRC32)
}

// ExtractAll extracts every entry under base. Names ending in '/'
// create directories only. filter, when set, may skip or redirect
// entries. Entries that would land outside base are rejected.
func ExtractAll(ctx context.Context, filesystem fsys.FS, progress transfer.ProgressSink, reader *zip.Reader, base string, filter Filter) error {
	if err := filesystem.CreateDirectoryRecursively(base); err != nil {
		return fmt.Errorf("creating %s: %w", base, err)
	}
	for _, file := range reader.File {
		destination, err := entryPath(base, file.Name)
		if err != nil {
			return err
		}
		if strings.HasSuffix(file.Name, "/") {
			if err := filesystem.CreateDirectoryRecursively(destination); err != nil {
				return fmt.Errorf("creating %s: %w", destination, err)
			}
			continue
		}
		if filter != nil {
			var extract bool
			destination, extract = filter(file.Name, destination)
			if !extract {
				continue
			}
		}
		if err := filesystem.CreateDirectoryRecursively(filepath.Dir(destination)); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(destination), err)
		}
		if err := ExtractFile(ctx, filesystem, progress, file, destination); err != nil {
			return err
		}
	}
	return nil
}

// entryPath joins an entry name to base, refusing names that escape
// it.
func entryPath(base, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSuffix(name, "/")))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fault.New(fault.InvalidArgument, "zip entry %q escapes the extraction directory", name)
	}
	return filepath.Join(base, clean), nil
}
