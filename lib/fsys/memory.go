// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package fsys

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/nxpack/nxpack/lib/fault"
)

// Memory is an in-memory FS. Paths are slash-separated and cleaned;
// directories exist implicitly once created. The zero value is not
// usable; call [NewMemory].
//
// Memory is safe for concurrent use.
type Memory struct {
	mu          sync.Mutex
	files       map[string]*memoryData
	directories map[string]struct{}

	// Capacity bounds the total bytes stored, reported through
	// FreeSpace. Zero means unbounded.
	Capacity int64
}

type memoryData struct {
	mu   sync.Mutex
	data []byte
}

var _ FS = (*Memory)(nil)

// NewMemory returns an empty in-memory filesystem.
func NewMemory() *Memory {
	return &Memory{
		files:       make(map[string]*memoryData),
		directories: map[string]struct{}{"/": {}},
	}
}

func memoryPath(name string) string {
	return path.Clean("/" + name)
}

// OpenFile opens name. The parent directory must exist for ModeWrite
// and ModeReadWrite.
func (m *Memory) OpenFile(name string, mode Mode) (File, error) {
	name = memoryPath(name)
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.files[name]
	switch mode {
	case ModeRead:
		if !ok {
			return nil, fault.Wrap(fault.IO, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist})
		}
		return &memoryFile{data: existing, readOnly: true}, nil
	case ModeWrite, ModeReadWrite:
		if _, parent := m.directories[path.Dir(name)]; !parent {
			return nil, fault.Wrap(fault.IO, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist})
		}
		if !ok {
			existing = &memoryData{}
			m.files[name] = existing
		}
		if mode == ModeWrite {
			existing.mu.Lock()
			existing.data = nil
			existing.mu.Unlock()
		}
		return &memoryFile{data: existing}, nil
	default:
		return nil, fault.New(fault.InvalidArgument, "open %s: unknown mode %d", name, mode)
	}
}

// CreateDirectoryRecursively records name and all its parents.
func (m *Memory) CreateDirectoryRecursively(name string) error {
	name = memoryPath(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	for directory := name; ; directory = path.Dir(directory) {
		if _, isFile := m.files[directory]; isFile {
			return fault.Wrap(fault.IO, &fs.PathError{Op: "mkdir", Path: directory, Err: fs.ErrExist})
		}
		m.directories[directory] = struct{}{}
		if directory == "/" {
			return nil
		}
	}
}

// DeleteFile removes name. Missing files are not an error.
func (m *Memory) DeleteFile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, memoryPath(name))
	return nil
}

// RenameFile moves a file, replacing the destination.
func (m *Memory) RenameFile(from, to string) error {
	from, to = memoryPath(from), memoryPath(to)
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[from]
	if !ok {
		return fault.Wrap(fault.IO, &fs.PathError{Op: "rename", Path: from, Err: fs.ErrNotExist})
	}
	if _, parent := m.directories[path.Dir(to)]; !parent {
		return fault.Wrap(fault.IO, &fs.PathError{Op: "rename", Path: to, Err: fs.ErrNotExist})
	}
	delete(m.files, from)
	m.files[to] = data
	return nil
}

// FileExists reports whether name is a file or directory.
func (m *Memory) FileExists(name string) bool {
	name = memoryPath(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, isFile := m.files[name]
	_, isDirectory := m.directories[name]
	return isFile || isDirectory
}

// FreeSpace returns Capacity minus the bytes stored, or a very large
// value when Capacity is zero.
func (m *Memory) FreeSpace(string) (int64, error) {
	if m.Capacity == 0 {
		return 1 << 62, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var used int64
	for _, file := range m.files {
		file.mu.Lock()
		used += int64(len(file.data))
		file.mu.Unlock()
	}
	return m.Capacity - used, nil
}

// ReadFile returns a copy of a file's contents.
func (m *Memory) ReadFile(name string) ([]byte, error) {
	name = memoryPath(name)
	m.mu.Lock()
	file, ok := m.files[name]
	m.mu.Unlock()
	if !ok {
		return nil, fault.Wrap(fault.IO, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist})
	}
	file.mu.Lock()
	defer file.mu.Unlock()
	return slices.Clone(file.data), nil
}

// WriteFile creates or replaces a file, creating parent directories.
func (m *Memory) WriteFile(name string, content []byte) error {
	name = memoryPath(name)
	if err := m.CreateDirectoryRecursively(path.Dir(name)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = &memoryData{data: slices.Clone(content)}
	return nil
}

// Files lists file paths under prefix in sorted order.
func (m *Memory) Files(prefix string) []string {
	prefix = memoryPath(prefix)
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.files {
		if prefix == "/" || name == prefix || strings.HasPrefix(name, prefix+"/") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

type memoryFile struct {
	data     *memoryData
	readOnly bool
	closed   bool
}

func (f *memoryFile) ReadAt(p []byte, offset int64) (int, error) {
	if f.closed {
		return 0, fault.Wrap(fault.IO, fs.ErrClosed)
	}
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	if offset >= int64(len(f.data.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data.data[offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memoryFile) WriteAt(p []byte, offset int64) (int, error) {
	if f.closed {
		return 0, fault.Wrap(fault.IO, fs.ErrClosed)
	}
	if f.readOnly {
		return 0, fault.Wrap(fault.IO, fmt.Errorf("write to read-only file: %w", fs.ErrPermission))
	}
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	end := offset + int64(len(p))
	if end > int64(len(f.data.data)) {
		f.data.data = append(f.data.data, make([]byte, end-int64(len(f.data.data)))...)
	}
	return copy(f.data.data[offset:], p), nil
}

func (f *memoryFile) SetSize(size int64) error {
	if f.readOnly {
		return fault.Wrap(fault.IO, fmt.Errorf("resize read-only file: %w", fs.ErrPermission))
	}
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	if size <= int64(len(f.data.data)) {
		f.data.data = f.data.data[:size]
		return nil
	}
	f.data.data = append(f.data.data, make([]byte, size-int64(len(f.data.data)))...)
	return nil
}

func (f *memoryFile) GetSize() (int64, error) {
	f.data.mu.Lock()
	defer f.data.mu.Unlock()
	return int64(len(f.data.data)), nil
}

func (f *memoryFile) Close() error {
	f.closed = true
	return nil
}
