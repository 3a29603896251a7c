// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package romfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
)

func forwarderFiles() []File {
	return []File{
		{Path: "/nextArgv", Data: []byte("sdmc:/switch/app.nro --raw")},
		{Path: "/nextNroPath", Data: []byte("sdmc:/switch/app.nro")},
	}
}

func TestBuildPadsToBlockAndReportsRawSize(t *testing.T) {
	image, rawSize := Build(forwarderFiles())
	if len(image)%BlockSize != 0 {
		t.Errorf("image length %#x not a multiple of %#x", len(image), BlockSize)
	}
	if rawSize <= FilePartitionOffset || rawSize > int64(len(image)) {
		t.Errorf("rawSize = %#x outside (0x200, %#x]", rawSize, len(image))
	}
	if !bytes.Equal(image[rawSize:], make([]byte, int64(len(image))-rawSize)) {
		t.Error("padding after rawSize is not zero")
	}

	var h header
	binary.Read(bytes.NewReader(image), binary.LittleEndian, &h)
	if h.FileTableOffset+h.FileTableSize != uint64(rawSize) {
		t.Errorf("file table ends at %#x, rawSize %#x", h.FileTableOffset+h.FileTableSize, rawSize)
	}
	if h.FilePartitionOffset != FilePartitionOffset {
		t.Errorf("file partition offset = %#x", h.FilePartitionOffset)
	}
	if h.DirectoryHashTableOffset%4 != 0 {
		t.Errorf("directory hash table offset %#x not 4-byte aligned", h.DirectoryHashTableOffset)
	}
}

func TestParseStripsLeadingSlashAndAlignsData(t *testing.T) {
	files := []File{
		{Path: "/a", Data: []byte("123")},
		{Path: "/bb", Data: bytes.Repeat([]byte{9}, 33)},
		{Path: "ccc", Data: []byte("x")},
	}
	image, _ := Build(files)
	entries, err := Parse(image)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wantNames := []string{"a", "bb", "ccc"}
	wantOffsets := []int64{0x200, 0x210, 0x240}
	if len(entries) != len(wantNames) {
		t.Fatalf("parsed %d files, want %d", len(entries), len(wantNames))
	}
	for i, entry := range entries {
		if entry.Name != wantNames[i] {
			t.Errorf("file %d name = %q, want %q", i, entry.Name, wantNames[i])
		}
		if entry.Offset != wantOffsets[i] {
			t.Errorf("file %d offset = %#x, want %#x", i, entry.Offset, wantOffsets[i])
		}
		if !bytes.Equal(image[entry.Offset:entry.Offset+entry.Size], files[i].Data) {
			t.Errorf("file %d content mismatch", i)
		}
	}
}

func TestLookupFollowsHashChains(t *testing.T) {
	// Enough files that several share a bucket.
	var files []File
	for i := range 40 {
		files = append(files, File{Path: fmt.Sprintf("/file-%02d", i), Data: []byte(fmt.Sprintf("content %d", i))})
	}
	image, _ := Build(files)

	for i, file := range files {
		got, err := Lookup(image, file.Path)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", file.Path, err)
		}
		if string(got) != fmt.Sprintf("content %d", i) {
			t.Errorf("Lookup(%s) = %q", file.Path, got)
		}
	}
	if _, err := Lookup(image, "/missing"); err == nil {
		t.Error("Lookup found a missing file")
	}
}

func TestBuildWithoutFiles(t *testing.T) {
	image, rawSize := Build(nil)
	entries, err := Parse(image)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("parsed %d files from an empty image", len(entries))
	}

	var h header
	binary.Read(bytes.NewReader(image), binary.LittleEndian, &h)
	if h.DirectoryTableSize != directoryEntrySize {
		t.Errorf("directory table size = %#x, want root entry only", h.DirectoryTableSize)
	}
	if h.FileTableSize != 0 {
		t.Errorf("file table size = %#x, want 0", h.FileTableSize)
	}
	if uint64(rawSize) != h.FileTableOffset {
		t.Errorf("rawSize = %#x, want %#x", rawSize, h.FileTableOffset)
	}

	var root directoryEntry
	binary.Read(bytes.NewReader(image[h.DirectoryTableOffset:]), binary.LittleEndian, &root)
	if root.File != empty || root.Child != empty || root.Sibling != empty {
		t.Errorf("root links = %+v, want all empty", root)
	}
}

func TestBucketCount(t *testing.T) {
	cases := []struct{ entries, want int }{
		{0, 3},
		{2, 3},
		{3, 3},
		{4, 5},
		{18, 19},
		{19, 19},
		{20, 23},
		{24, 29},
		{32, 37},
		{361, 361},
	}
	for _, c := range cases {
		if got := BucketCount(c.entries); got != c.want {
			t.Errorf("BucketCount(%d) = %d, want %d", c.entries, got, c.want)
		}
	}
}

func TestPathHashFoldsName(t *testing.T) {
	if pathHash(0, "") != hashSeed {
		t.Errorf("pathHash(0, \"\") = %#x, want seed", pathHash(0, ""))
	}
	if pathHash(0, "nextArgv") == pathHash(0, "nextNroPath") {
		t.Error("distinct names hash equal")
	}
	if pathHash(0, "a") == pathHash(0x18, "a") {
		t.Error("parent offset not folded into hash")
	}
}
