// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package pfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/nxpack/nxpack/lib/binbuf"
)

// Format constants.
const (
	// Magic is the four-byte PFS0 signature.
	Magic = "PFS0"

	// headerSize is the fixed header: magic, file count, string table
	// size and a reserved word.
	headerSize = 0x10

	// entrySize is the size of one file table entry: data offset u64,
	// data size u64, name offset u32, reserved u32.
	entrySize = 0x18

	// stringTableAlignment is the boundary the string table length is
	// rounded up to.
	stringTableAlignment = 0x20
)

// File is one named blob to place in a partition.
type File struct {
	Name string
	Data []byte
}

// Entry describes a file found by [Parse]. Offset is absolute within
// the parsed image.
type Entry struct {
	Name   string
	Offset int64
	Size   int64
}

type header struct {
	Magic           [4]byte
	FileCount       uint32
	StringTableSize uint32
	Reserved        uint32
}

type fileEntry struct {
	DataOffset uint64
	DataSize   uint64
	NameOffset uint32
	Reserved   uint32
}

// Build serializes files as a PFS0 image. Build does not validate
// names; duplicate or empty names are written as given.
func Build(files []File) []byte {
	var stringTable bytes.Buffer
	nameOffsets := make([]uint32, len(files))
	for i, file := range files {
		nameOffsets[i] = uint32(stringTable.Len())
		stringTable.WriteString(file.Name)
		stringTable.WriteByte(0)
	}
	stringTableSize := binbuf.AlignUp(int64(stringTable.Len()), stringTableAlignment)

	var dataSize int64
	for _, file := range files {
		dataSize += int64(len(file.Data))
	}
	tablesSize := headerSize + entrySize*int64(len(files)) + stringTableSize

	buffer := binbuf.New(int(tablesSize + dataSize))
	buffer.WriteStruct(header{
		Magic:           [4]byte{'P', 'F', 'S', '0'},
		FileCount:       uint32(len(files)),
		StringTableSize: uint32(stringTableSize),
	})

	var dataOffset uint64
	for i, file := range files {
		buffer.WriteStruct(fileEntry{
			DataOffset: dataOffset,
			DataSize:   uint64(len(file.Data)),
			NameOffset: nameOffsets[i],
		})
		dataOffset += uint64(len(file.Data))
	}

	paddedNames := make([]byte, stringTableSize)
	copy(paddedNames, stringTable.Bytes())
	buffer.Write(paddedNames)

	for _, file := range files {
		buffer.Write(file.Data)
	}
	return buffer.Bytes()
}

// Parse reads the file table of a PFS0 image. Entry offsets are
// absolute within data and bounds-checked.
func Parse(data []byte) ([]Entry, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("pfs0 image is %d bytes, shorter than its header", len(data))
	}
	var fixed header
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("reading pfs0 header: %w", err)
	}
	if string(fixed.Magic[:]) != Magic {
		return nil, fmt.Errorf("bad pfs0 magic %q", fixed.Magic[:])
	}

	tableEnd := int64(headerSize) + entrySize*int64(fixed.FileCount)
	dataStart := tableEnd + int64(fixed.StringTableSize)
	if dataStart > int64(len(data)) {
		return nil, fmt.Errorf("pfs0 tables for %d files overrun %d-byte image", fixed.FileCount, len(data))
	}
	stringTable := data[tableEnd:dataStart]

	entries := make([]Entry, 0, fixed.FileCount)
	reader := bytes.NewReader(data[headerSize:tableEnd])
	for i := range fixed.FileCount {
		var raw fileEntry
		if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
			return nil, fmt.Errorf("reading pfs0 entry %d: %w", i, err)
		}
		if int64(raw.NameOffset) >= int64(len(stringTable)) {
			return nil, fmt.Errorf("pfs0 entry %d name offset %#x outside string table", i, raw.NameOffset)
		}
		name := stringTable[raw.NameOffset:]
		if end := bytes.IndexByte(name, 0); end >= 0 {
			name = name[:end]
		}
		offset := dataStart + int64(raw.DataOffset)
		size := int64(raw.DataSize)
		if offset+size > int64(len(data)) {
			return nil, fmt.Errorf("pfs0 entry %q [%#x, %#x) outside %d-byte image", name, offset, offset+size, len(data))
		}
		entries = append(entries, Entry{Name: string(name), Offset: offset, Size: size})
	}
	return entries, nil
}

// Lookup returns the contents of the named file in a PFS0 image.
func Lookup(data []byte, name string) ([]byte, error) {
	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Name == name {
			return data[entry.Offset : entry.Offset+entry.Size], nil
		}
	}
	return nil, fmt.Errorf("pfs0 has no file %q", name)
}
