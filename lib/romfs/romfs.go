// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package romfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/nxpack/nxpack/lib/binbuf"
)

// Layout constants.
const (
	// empty marks an absent link or an empty hash bucket.
	empty uint32 = 0xFFFFFFFF

	headerSize = 0x50

	// FilePartitionOffset is where file data begins in the image.
	FilePartitionOffset = 0x200

	// fileDataAlignment aligns each file's data offset.
	fileDataAlignment = 0x10

	// hashSeed is XORed with the parent offset to seed the path hash.
	hashSeed uint32 = 0x75BCD15

	directoryEntrySize = 0x18
	fileEntrySize      = 0x20
)

// File is one file placed under the root directory. A leading '/' on
// Path is stripped.
type File struct {
	Path string
	Data []byte
}

// Entry is a file found by [Parse]. Offset is absolute in the image.
type Entry struct {
	Name   string
	Offset int64
	Size   int64
}

type header struct {
	HeaderSize               uint64
	DirectoryHashTableOffset uint64
	DirectoryHashTableSize   uint64
	DirectoryTableOffset     uint64
	DirectoryTableSize       uint64
	FileHashTableOffset      uint64
	FileHashTableSize        uint64
	FileTableOffset          uint64
	FileTableSize            uint64
	FilePartitionOffset      uint64
}

type directoryEntry struct {
	Parent   uint32
	Sibling  uint32
	Child    uint32
	File     uint32
	Hash     uint32
	NameSize uint32
}

type fileEntry struct {
	Parent     uint32
	Sibling    uint32
	DataOffset uint64
	DataSize   uint64
	Hash       uint32
	NameSize   uint32
}

// index into an arena; none marks an absent link.
type index int

const none index = -1

type directoryNode struct {
	name        string
	parent      index
	sibling     index
	child       index
	file        index
	hashNext    index
	entryOffset uint32
}

type fileNode struct {
	name        string
	data        []byte
	parent      index
	sibling     index
	hashNext    index
	dataOffset  uint64
	entryOffset uint32
}

// tree is the arena pair built from the input files.
type tree struct {
	directories []directoryNode
	files       []fileNode

	directoryBuckets []index
	fileBuckets      []index

	directoryTableSize uint32
	fileTableSize      uint32
	partitionSize      uint64
}

// Build serializes files into a RomFS image padded to [BlockSize] and
// returns it with its length before padding. The unpadded length sizes
// the data level of the integrity tree.
func Build(files []File) (image []byte, rawSize int64) {
	t := newTree(files)

	directoryHashOffset := binbuf.AlignUp(FilePartitionOffset+int64(t.partitionSize), 4)
	directoryHashSize := int64(4 * len(t.directoryBuckets))
	directoryTableOffset := directoryHashOffset + directoryHashSize
	fileHashOffset := directoryTableOffset + int64(t.directoryTableSize)
	fileHashSize := int64(4 * len(t.fileBuckets))
	fileTableOffset := fileHashOffset + fileHashSize
	rawSize = fileTableOffset + int64(t.fileTableSize)

	buffer := binbuf.New(int(binbuf.AlignUp(rawSize, BlockSize)))
	buffer.WriteStruct(header{
		HeaderSize:               headerSize,
		DirectoryHashTableOffset: uint64(directoryHashOffset),
		DirectoryHashTableSize:   uint64(directoryHashSize),
		DirectoryTableOffset:     uint64(directoryTableOffset),
		DirectoryTableSize:       uint64(t.directoryTableSize),
		FileHashTableOffset:      uint64(fileHashOffset),
		FileHashTableSize:        uint64(fileHashSize),
		FileTableOffset:          uint64(fileTableOffset),
		FileTableSize:            uint64(t.fileTableSize),
		FilePartitionOffset:      FilePartitionOffset,
	})

	for _, file := range t.files {
		buffer.WriteAt(file.data, FilePartitionOffset+int64(file.dataOffset))
	}

	buffer.Seek(directoryHashOffset, io.SeekStart)
	for _, head := range t.directoryBuckets {
		writeUint32(buffer, t.directoryOffset(head))
	}
	for _, directory := range t.directories {
		buffer.WriteStruct(directoryEntry{
			Parent:   t.directoryOffset(directory.parent),
			Sibling:  t.directoryOffset(directory.sibling),
			Child:    t.directoryOffset(directory.child),
			File:     t.fileOffset(directory.file),
			Hash:     t.directoryOffset(directory.hashNext),
			NameSize: uint32(len(directory.name)),
		})
		writeName(buffer, directory.name)
	}
	for _, head := range t.fileBuckets {
		writeUint32(buffer, t.fileOffset(head))
	}
	for _, file := range t.files {
		buffer.WriteStruct(fileEntry{
			Parent:     t.directoryOffset(file.parent),
			Sibling:    t.fileOffset(file.sibling),
			DataOffset: file.dataOffset,
			DataSize:   uint64(len(file.data)),
			Hash:       t.fileOffset(file.hashNext),
			NameSize:   uint32(len(file.name)),
		})
		writeName(buffer, file.name)
	}

	buffer.Pad(BlockSize)
	return buffer.Bytes(), rawSize
}

// newTree lays out the root directory and its files: table offsets,
// data offsets, sibling chains and hash buckets.
func newTree(files []File) *tree {
	t := &tree{}

	root := directoryNode{parent: 0, sibling: none, child: none, file: none, hashNext: none}
	t.directories = append(t.directories, root)
	t.directoryTableSize = directoryEntrySize

	var partitionCursor uint64
	var tableCursor uint32
	for i, input := range files {
		partitionCursor = uint64(binbuf.AlignUp(int64(partitionCursor), fileDataAlignment))
		node := fileNode{
			name:        strings.TrimPrefix(input.Path, "/"),
			data:        input.Data,
			parent:      0,
			sibling:     none,
			hashNext:    none,
			dataOffset:  partitionCursor,
			entryOffset: tableCursor,
		}
		partitionCursor += uint64(len(input.Data))
		tableCursor += fileEntrySize + uint32(binbuf.AlignUp(int64(len(node.name)), 4))

		if i > 0 {
			t.files[i-1].sibling = index(i)
		} else {
			t.directories[0].file = 0
		}
		t.files = append(t.files, node)
	}
	t.fileTableSize = tableCursor
	t.partitionSize = partitionCursor

	t.directoryBuckets = newBuckets(len(t.directories))
	for i := range t.directories {
		directory := &t.directories[i]
		parentOffset := t.directories[directory.parent].entryOffset
		bucket := pathHash(parentOffset, directory.name) % uint32(len(t.directoryBuckets))
		directory.hashNext = t.directoryBuckets[bucket]
		t.directoryBuckets[bucket] = index(i)
	}

	t.fileBuckets = newBuckets(len(t.files))
	for i := range t.files {
		file := &t.files[i]
		parentOffset := t.directories[file.parent].entryOffset
		bucket := pathHash(parentOffset, file.name) % uint32(len(t.fileBuckets))
		file.hashNext = t.fileBuckets[bucket]
		t.fileBuckets[bucket] = index(i)
	}
	return t
}

func (t *tree) directoryOffset(i index) uint32 {
	if i == none {
		return empty
	}
	return t.directories[i].entryOffset
}

func (t *tree) fileOffset(i index) uint32 {
	if i == none {
		return empty
	}
	return t.files[i].entryOffset
}

func newBuckets(entries int) []index {
	buckets := make([]index, BucketCount(entries))
	for i := range buckets {
		buckets[i] = none
	}
	return buckets
}

// BucketCount returns the hash table size for a table of entries:
// 3 below three entries, the next odd number below 19, and otherwise
// the first count not divisible by any prime up to 17.
func BucketCount(entries int) int {
	switch {
	case entries < 3:
		return 3
	case entries < 19:
		return entries | 1
	}
	count := entries
	for hasSmallFactor(count) {
		count++
	}
	return count
}

func hasSmallFactor(n int) bool {
	for _, prime := range []int{2, 3, 5, 7, 11, 13, 17} {
		if n%prime == 0 {
			return true
		}
	}
	return false
}

// pathHash is the bucket hash of name within the directory whose entry
// sits at parentOffset. It folds in the name bytes as the platform's
// reader does, not only the parent offset.
func pathHash(parentOffset uint32, name string) uint32 {
	hash := parentOffset ^ hashSeed
	for i := 0; i < len(name); i++ {
		hash = (hash>>5 | hash<<27) ^ uint32(name[i])
	}
	return hash
}

func writeUint32(buffer *binbuf.Buffer, v uint32) {
	var encoded [4]byte
	binary.LittleEndian.PutUint32(encoded[:], v)
	buffer.Write(encoded[:])
}

// writeName writes name zero-padded to four bytes.
func writeName(buffer *binbuf.Buffer, name string) {
	padded := make([]byte, binbuf.AlignUp(int64(len(name)), 4))
	copy(padded, name)
	buffer.Write(padded)
}

// Parse lists the files under the root directory of image, following
// the root's file chain.
func Parse(image []byte) ([]Entry, error) {
	h, err := readHeader(image)
	if err != nil {
		return nil, err
	}
	directories := image[h.DirectoryTableOffset : h.DirectoryTableOffset+h.DirectoryTableSize]
	if len(directories) < directoryEntrySize {
		return nil, fmt.Errorf("romfs directory table is %d bytes, missing root", len(directories))
	}
	var root directoryEntry
	binary.Read(bytes.NewReader(directories), binary.LittleEndian, &root)

	var entries []Entry
	seen := map[uint32]bool{}
	for offset := root.File; offset != empty; {
		if seen[offset] {
			return nil, fmt.Errorf("romfs file chain loops at %#x", offset)
		}
		seen[offset] = true
		entry, next, err := readFileEntry(image, h, offset)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		offset = next
	}
	return entries, nil
}

// Lookup finds name under the root directory through the file hash
// table, the way the platform's filesystem driver resolves paths.
func Lookup(image []byte, name string) ([]byte, error) {
	h, err := readHeader(image)
	if err != nil {
		return nil, err
	}
	name = strings.TrimPrefix(name, "/")
	bucketCount := uint32(h.FileHashTableSize / 4)
	if bucketCount == 0 {
		return nil, fmt.Errorf("romfs has no file %q", name)
	}
	bucket := pathHash(0, name) % bucketCount
	offset := binary.LittleEndian.Uint32(image[h.FileHashTableOffset+uint64(bucket)*4:])
	for steps := 0; offset != empty; steps++ {
		if uint64(steps) > h.FileTableSize/fileEntrySize {
			return nil, fmt.Errorf("romfs hash chain for %q does not terminate", name)
		}
		entry, _, err := readFileEntry(image, h, offset)
		if err != nil {
			return nil, err
		}
		if entry.Name == name {
			return image[entry.Offset : entry.Offset+entry.Size], nil
		}
		base := h.FileTableOffset + uint64(offset)
		offset = binary.LittleEndian.Uint32(image[base+0x18:])
	}
	return nil, fmt.Errorf("romfs has no file %q", name)
}

func readHeader(image []byte) (header, error) {
	var h header
	if len(image) < headerSize {
		return h, fmt.Errorf("romfs image is %d bytes, shorter than its header", len(image))
	}
	binary.Read(bytes.NewReader(image[:headerSize]), binary.LittleEndian, &h)
	if h.HeaderSize != headerSize {
		return h, fmt.Errorf("romfs header size %#x, want %#x", h.HeaderSize, headerSize)
	}
	for _, table := range [][2]uint64{
		{h.DirectoryHashTableOffset, h.DirectoryHashTableSize},
		{h.DirectoryTableOffset, h.DirectoryTableSize},
		{h.FileHashTableOffset, h.FileHashTableSize},
		{h.FileTableOffset, h.FileTableSize},
	} {
		if table[0]+table[1] > uint64(len(image)) {
			return h, fmt.Errorf("romfs table [%#x, %#x) outside %d-byte image", table[0], table[0]+table[1], len(image))
		}
	}
	return h, nil
}

func readFileEntry(image []byte, h header, offset uint32) (Entry, uint32, error) {
	if uint64(offset)+fileEntrySize > h.FileTableSize {
		return Entry{}, 0, fmt.Errorf("romfs file entry %#x outside file table", offset)
	}
	base := h.FileTableOffset + uint64(offset)
	var raw fileEntry
	binary.Read(bytes.NewReader(image[base:base+fileEntrySize]), binary.LittleEndian, &raw)
	nameStart := base + fileEntrySize
	if nameStart+uint64(raw.NameSize) > h.FileTableOffset+h.FileTableSize {
		return Entry{}, 0, fmt.Errorf("romfs file entry %#x name overruns table", offset)
	}
	dataStart := h.FilePartitionOffset + raw.DataOffset
	if dataStart+raw.DataSize > uint64(len(image)) {
		return Entry{}, 0, fmt.Errorf("romfs file entry %#x data outside image", offset)
	}
	return Entry{
		Name:   string(image[nameStart : nameStart+uint64(raw.NameSize)]),
		Offset: int64(dataStart),
		Size:   int64(raw.DataSize),
	}, raw.Sibling, nil
}
