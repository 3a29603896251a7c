// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package pfs

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/nxpack/nxpack/lib/binbuf"
	"github.com/nxpack/nxpack/lib/fault"
)

// Hash block sizes used by the forwarder package sections.
const (
	ExeFSBlockSize = 0x10000
	LogoBlockSize  = 0x1000
	MetaBlockSize  = 0x1000
)

// regionAlignment pads the hash table and the partition inside the
// section. It equals the content archive media unit.
const regionAlignment = 0x200

// Region is a byte range inside a section.
type Region struct {
	Offset int64
	Size   int64
}

// HashedSection is a PFS0 wrapped in a HierarchicalSha256 layout,
// ready to be placed into a content archive.
type HashedSection struct {
	// Data is the full section payload: hash table, padding, PFS0,
	// padding to the media unit.
	Data []byte

	// MasterHash is the SHA-256 of the hash table region.
	MasterHash [sha256.Size]byte

	// BlockSize is the number of PFS0 bytes covered by each table entry.
	BlockSize uint32

	// HashTable and Partition locate the two layers within Data.
	HashTable Region
	Partition Region
}

// BuildHashed builds a PFS0 from files and wraps it for a content
// archive section with the given hash block size.
func BuildHashed(files []File, blockSize int) *HashedSection {
	partition := Build(files)

	blockCount := binbuf.DivCeil(int64(len(partition)), int64(blockSize))
	hashTable := make([]byte, 0, blockCount*sha256.Size)
	for start := 0; start < len(partition); start += blockSize {
		end := min(start+blockSize, len(partition))
		digest := sha256.Sum256(partition[start:end])
		hashTable = append(hashTable, digest[:]...)
	}

	buffer := binbuf.New(len(hashTable) + len(partition) + 2*regionAlignment)
	buffer.Write(hashTable)
	partitionOffset := buffer.Pad(regionAlignment)
	buffer.Write(partition)
	buffer.Pad(regionAlignment)

	return &HashedSection{
		Data:       buffer.Bytes(),
		MasterHash: sha256.Sum256(hashTable),
		BlockSize:  uint32(blockSize),
		HashTable:  Region{Offset: 0, Size: int64(len(hashTable))},
		Partition:  Region{Offset: partitionOffset, Size: int64(len(partition))},
	}
}

// Sha256Header is the HierarchicalSha256 hash-info block stored in the
// section's filesystem header.
type Sha256Header struct {
	MasterHash [sha256.Size]byte
	BlockSize  uint32
	LayerCount uint32
	Regions    [5]Region
}

// Header returns the hash-info block describing the section.
func (s *HashedSection) Header() Sha256Header {
	return Sha256Header{
		MasterHash: s.MasterHash,
		BlockSize:  s.BlockSize,
		LayerCount: 2,
		Regions:    [5]Region{s.HashTable, s.Partition},
	}
}

// MarshalBinary encodes the header in its little-endian on-disk form.
func (h Sha256Header) MarshalBinary() ([]byte, error) {
	var encoded bytes.Buffer
	if err := binary.Write(&encoded, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

// UnmarshalSha256Header decodes a hash-info block.
func UnmarshalSha256Header(data []byte) (Sha256Header, error) {
	var header Sha256Header
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("decoding sha256 hash header: %w", err)
	}
	return header, nil
}

// VerifyHashed recomputes every block digest of the partition layer
// and the master hash over the table, comparing against header. data
// is the section payload as placed in the archive.
func VerifyHashed(data []byte, header Sha256Header) error {
	table, partition := header.Regions[0], header.Regions[1]
	if header.LayerCount != 2 || header.BlockSize == 0 {
		return fmt.Errorf("unsupported sha256 layout: %d layers, block size %d", header.LayerCount, header.BlockSize)
	}
	if table.Offset+table.Size > int64(len(data)) || partition.Offset+partition.Size > int64(len(data)) {
		return fmt.Errorf("sha256 regions exceed %d-byte section", len(data))
	}

	tableBytes := data[table.Offset : table.Offset+table.Size]
	if sha256.Sum256(tableBytes) != header.MasterHash {
		return fault.New(fault.ChecksumMismatch, "master hash mismatch")
	}

	partitionBytes := data[partition.Offset : partition.Offset+partition.Size]
	blockSize := int64(header.BlockSize)
	for block := int64(0); block*blockSize < partition.Size; block++ {
		start := block * blockSize
		end := min(start+blockSize, partition.Size)
		digest := sha256.Sum256(partitionBytes[start:end])
		tableOffset := block * sha256.Size
		if tableOffset+sha256.Size > table.Size {
			return fmt.Errorf("hash table too short for block %d", block)
		}
		if !bytes.Equal(digest[:], tableBytes[tableOffset:tableOffset+sha256.Size]) {
			return fault.New(fault.ChecksumMismatch, "block %d hash mismatch", block)
		}
	}
	return nil
}
