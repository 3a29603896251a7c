// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package fsys

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nxpack/nxpack/lib/fault"
)

// Mode selects how OpenFile opens a path.
type Mode int

const (
	// ModeRead opens an existing file read-only.
	ModeRead Mode = iota

	// ModeWrite creates the file, truncating any existing content.
	ModeWrite

	// ModeReadWrite opens an existing file for update, creating it
	// when absent.
	ModeReadWrite
)

// File is an open file addressed by absolute offsets.
type File interface {
	io.ReaderAt
	io.WriterAt

	// SetSize grows or shrinks the file. Growing zero-fills.
	SetSize(size int64) error

	// GetSize returns the current file size.
	GetSize() (int64, error)

	Close() error
}

// FS is the set of filesystem operations the core consumes.
type FS interface {
	OpenFile(path string, mode Mode) (File, error)
	CreateDirectoryRecursively(path string) error
	DeleteFile(path string) error
	RenameFile(from, to string) error
	FileExists(path string) bool

	// FreeSpace returns the bytes available to unprivileged writers on
	// the filesystem holding path.
	FreeSpace(path string) (int64, error)
}

// ErrNoSpace is returned (wrapped) by space checks when a write would
// not fit.
var ErrNoSpace = errors.New("not enough free space")

// CheckSpace fails with ErrNoSpace when fewer than needed bytes are
// free on the filesystem holding path. A filesystem that cannot report
// its free space passes.
func CheckSpace(filesystem FS, path string, needed int64) error {
	free, err := filesystem.FreeSpace(path)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			return nil
		}
		return err
	}
	if free < needed {
		return fault.Wrap(fault.IO, fmt.Errorf("%s: need %d bytes, %d free: %w", path, needed, free, ErrNoSpace))
	}
	return nil
}

// OS is the host filesystem.
type OS struct{}

var _ FS = OS{}

// OpenFile opens path on the host filesystem.
func (OS) OpenFile(path string, mode Mode) (File, error) {
	var flags int
	switch mode {
	case ModeRead:
		flags = os.O_RDONLY
	case ModeWrite:
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	case ModeReadWrite:
		flags = os.O_RDWR | os.O_CREATE
	default:
		return nil, fault.New(fault.InvalidArgument, "open %s: unknown mode %d", path, mode)
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fault.Wrap(fault.IO, err)
	}
	return &osFile{file: file}, nil
}

// CreateDirectoryRecursively creates path and any missing parents. An
// existing directory is not an error.
func (OS) CreateDirectoryRecursively(path string) error {
	return fault.Wrap(fault.IO, os.MkdirAll(path, 0o755))
}

// DeleteFile removes path. A path that does not exist is not an error.
func (OS) DeleteFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fault.Wrap(fault.IO, err)
}

// RenameFile moves from to to, replacing any existing file at to.
func (OS) RenameFile(from, to string) error {
	return fault.Wrap(fault.IO, os.Rename(from, to))
}

// FileExists reports whether path names an existing file or directory.
func (OS) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FreeSpace reports available bytes on the filesystem holding path.
// The nearest existing ancestor is queried when path does not exist
// yet.
func (OS) FreeSpace(path string) (int64, error) {
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}
	free, err := freeSpace(path)
	if err != nil {
		return 0, fault.Wrap(fault.IO, fmt.Errorf("free space of %s: %w", path, err))
	}
	return free, nil
}

type osFile struct {
	file *os.File
}

func (f *osFile) ReadAt(p []byte, offset int64) (int, error) {
	n, err := f.file.ReadAt(p, offset)
	if err != nil && err != io.EOF {
		err = fault.Wrap(fault.IO, err)
	}
	return n, err
}

func (f *osFile) WriteAt(p []byte, offset int64) (int, error) {
	n, err := f.file.WriteAt(p, offset)
	return n, fault.Wrap(fault.IO, err)
}

func (f *osFile) SetSize(size int64) error {
	current, err := f.GetSize()
	if err != nil {
		return err
	}
	if size > current {
		if err := preallocate(f.file, size); err == nil {
			return nil
		}
	}
	return fault.Wrap(fault.IO, f.file.Truncate(size))
}

func (f *osFile) GetSize() (int64, error) {
	info, err := f.file.Stat()
	if err != nil {
		return 0, fault.Wrap(fault.IO, err)
	}
	return info.Size(), nil
}

func (f *osFile) Close() error {
	return fault.Wrap(fault.IO, f.file.Close())
}
