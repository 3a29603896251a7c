// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package fsys

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/nxpack/nxpack/lib/fault"
)

// exercise runs the same contract checks against any FS rooted at base.
func exercise(t *testing.T, filesystem FS, base string) {
	t.Helper()
	directory := filepath.Join(base, "a", "b", "c")
	if err := filesystem.CreateDirectoryRecursively(directory); err != nil {
		t.Fatalf("CreateDirectoryRecursively: %v", err)
	}
	if err := filesystem.CreateDirectoryRecursively(directory); err != nil {
		t.Fatalf("CreateDirectoryRecursively on existing directory: %v", err)
	}

	path := filepath.Join(directory, "file.bin")
	file, err := filesystem.OpenFile(path, ModeWrite)
	if err != nil {
		t.Fatalf("OpenFile(write): %v", err)
	}
	if err := file.SetSize(4096); err != nil {
		t.Fatalf("SetSize grow: %v", err)
	}
	if _, err := file.WriteAt([]byte("tail"), 4092); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if _, err := file.WriteAt([]byte("head"), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	size, err := file.GetSize()
	if err != nil || size != 4096 {
		t.Fatalf("GetSize = %d, %v; want 4096", size, err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !filesystem.FileExists(path) {
		t.Fatal("FileExists = false after write")
	}
	renamed := filepath.Join(base, "a", "renamed.bin")
	if err := filesystem.RenameFile(path, renamed); err != nil {
		t.Fatalf("RenameFile: %v", err)
	}
	if filesystem.FileExists(path) {
		t.Fatal("source still exists after rename")
	}

	file, err = filesystem.OpenFile(renamed, ModeRead)
	if err != nil {
		t.Fatalf("OpenFile(read): %v", err)
	}
	content := make([]byte, 4096)
	if _, err := file.ReadAt(content, 0); err != nil && err != io.EOF {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(content[:4], []byte("head")) || !bytes.Equal(content[4092:], []byte("tail")) {
		t.Fatal("content mismatch after rename")
	}
	if !bytes.Equal(content[4:4092], make([]byte, 4088)) {
		t.Fatal("grown region is not zero-filled")
	}
	if n, err := file.ReadAt(make([]byte, 8), 4096); n != 0 || err != io.EOF {
		t.Fatalf("ReadAt past end = %d, %v; want 0, EOF", n, err)
	}
	file.Close()

	if _, err := filesystem.OpenFile(filepath.Join(base, "missing"), ModeRead); !errors.Is(err, fs.ErrNotExist) || !errors.Is(err, fault.IO) {
		t.Fatalf("OpenFile missing error = %v, want IO wrapping ErrNotExist", err)
	}

	if err := filesystem.DeleteFile(renamed); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := filesystem.DeleteFile(renamed); err != nil {
		t.Fatalf("DeleteFile on missing file: %v", err)
	}
	if filesystem.FileExists(renamed) {
		t.Fatal("file exists after delete")
	}
}

func TestOS(t *testing.T) {
	exercise(t, OS{}, t.TempDir())
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory(), "/root")
}

func TestOSSetSizeShrinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shrink.bin")
	file, err := OS{}.OpenFile(path, ModeWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if _, err := file.WriteAt(make([]byte, 1000), 0); err != nil {
		t.Fatal(err)
	}
	if err := file.SetSize(10); err != nil {
		t.Fatalf("SetSize: %v", err)
	}
	if size, _ := file.GetSize(); size != 10 {
		t.Fatalf("size = %d after shrink, want 10", size)
	}
}

func TestOSFreeSpaceOfMissingPath(t *testing.T) {
	free, err := OS{}.FreeSpace(filepath.Join(t.TempDir(), "not", "yet", "created"))
	if errors.Is(err, errors.ErrUnsupported) {
		t.Skip("free space not reported on this platform")
	}
	if err != nil {
		t.Fatalf("FreeSpace: %v", err)
	}
	if free <= 0 {
		t.Fatalf("FreeSpace = %d, want positive", free)
	}
}

func TestCheckSpace(t *testing.T) {
	memory := NewMemory()
	memory.Capacity = 100
	if err := memory.WriteFile("/store/blob", make([]byte, 60)); err != nil {
		t.Fatal(err)
	}
	if err := CheckSpace(memory, "/store", 40); err != nil {
		t.Fatalf("CheckSpace(40): %v", err)
	}
	err := CheckSpace(memory, "/store", 41)
	if !errors.Is(err, ErrNoSpace) || !errors.Is(err, fault.IO) {
		t.Fatalf("CheckSpace(41) error = %v, want IO wrapping ErrNoSpace", err)
	}
}

func TestMemoryWriteRequiresParent(t *testing.T) {
	memory := NewMemory()
	if _, err := memory.OpenFile("/absent/file", ModeWrite); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("OpenFile error = %v, want ErrNotExist", err)
	}
	file, err := memory.OpenFile("/file", ModeWrite)
	if err != nil {
		t.Fatal(err)
	}
	file.Close()
	if _, err := file.WriteAt([]byte{1}, 0); !errors.Is(err, fs.ErrClosed) {
		t.Fatalf("WriteAt after Close error = %v, want ErrClosed", err)
	}
	if got := memory.Files("/"); len(got) != 1 || got[0] != "/file" {
		t.Fatalf("Files = %v", got)
	}
}
