// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package pfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"testing"
)

func TestBuildParseKeepsOrderAndContent(t *testing.T) {
	files := []File{
		{Name: "main", Data: bytes.Repeat([]byte{0xAA}, 9000)},
		{Name: "main.npdm", Data: bytes.Repeat([]byte{0x55}, 1000)},
		{Name: "a", Data: nil},
	}
	image := Build(files)

	entries, err := Parse(image)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != len(files) {
		t.Fatalf("parsed %d entries, want %d", len(entries), len(files))
	}
	for i, entry := range entries {
		if entry.Name != files[i].Name {
			t.Errorf("entry %d name = %q, want %q (order must be preserved)", i, entry.Name, files[i].Name)
		}
		got := image[entry.Offset : entry.Offset+entry.Size]
		if !bytes.Equal(got, files[i].Data) {
			t.Errorf("entry %d (%s): content mismatch", i, entry.Name)
		}
	}
}

func TestDataOffsetsAreRunningSums(t *testing.T) {
	random := rand.New(rand.NewPCG(1, 2))
	for trial := range 20 {
		count := 1 + random.IntN(12)
		files := make([]File, count)
		for i := range files {
			data := make([]byte, random.IntN(5000))
			for j := range data {
				data[j] = byte(random.Uint32())
			}
			files[i] = File{Name: fmt.Sprintf("file-%d-%d", trial, i), Data: data}
		}
		image := Build(files)

		var expected uint64
		for i := range files {
			entryOffset := headerSize + entrySize*i
			dataOffset := binary.LittleEndian.Uint64(image[entryOffset:])
			dataSize := binary.LittleEndian.Uint64(image[entryOffset+8:])
			if dataOffset != expected {
				t.Fatalf("trial %d file %d: data_offset = %d, want %d", trial, i, dataOffset, expected)
			}
			if dataSize != uint64(len(files[i].Data)) {
				t.Fatalf("trial %d file %d: data_size = %d, want %d", trial, i, dataSize, len(files[i].Data))
			}
			expected += dataSize
		}

		content, err := Lookup(image, files[count-1].Name)
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if !bytes.Equal(content, files[count-1].Data) {
			t.Fatalf("trial %d: last file content mismatch", trial)
		}
	}
}

func TestStringTableAlignment(t *testing.T) {
	image := Build([]File{{Name: "x", Data: []byte{1}}})
	stringTableSize := binary.LittleEndian.Uint32(image[8:])
	if stringTableSize != 0x20 {
		t.Errorf("string table size = %#x, want 0x20", stringTableSize)
	}
	if len(image) != headerSize+entrySize+0x20+1 {
		t.Errorf("image length = %d", len(image))
	}
}

func TestBuildEmpty(t *testing.T) {
	image := Build(nil)
	if len(image) != headerSize {
		t.Errorf("empty image is %d bytes, want %d", len(image), headerSize)
	}
	entries, err := Parse(image)
	if err != nil || len(entries) != 0 {
		t.Errorf("Parse(empty) = %v, %v", entries, err)
	}
}

func TestParseRejectsCorruptImages(t *testing.T) {
	image := Build([]File{{Name: "main", Data: make([]byte, 64)}})

	badMagic := bytes.Clone(image)
	copy(badMagic, "HFS0")
	if _, err := Parse(badMagic); err == nil {
		t.Error("Parse accepted bad magic")
	}

	if _, err := Parse(image[:len(image)-1]); err == nil {
		t.Error("Parse accepted truncated data")
	}

	if _, err := Lookup(image, "missing"); err == nil {
		t.Error("Lookup found a missing file")
	}
}
