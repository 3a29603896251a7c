// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package romfs

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/nxpack/nxpack/lib/binbuf"
	"github.com/nxpack/nxpack/lib/fault"
)

// IVFC constants.
const (
	// BlockSize is the integrity hash block size and the padding
	// boundary of a RomFS image.
	BlockSize = 0x4000

	blockSizeLog2 = 14

	// LevelCount is the number of level headers: five hash levels and
	// the data level.
	LevelCount = 6

	// DataLevel indexes the RomFS image in the level headers.
	DataLevel = LevelCount - 1

	ivfcMagic   = "IVFC"
	ivfcVersion = 0x20000

	// ivfcNumLevels counts the master hash as a level.
	ivfcNumLevels = LevelCount + 1
)

// Level locates one layer of the tree within the section.
type Level struct {
	LogicalOffset uint64
	HashDataSize  uint64
	BlockSizeLog2 uint32
	Reserved      uint32
}

// IVFCHeader is the hash-info block stored in the section's
// filesystem header.
type IVFCHeader struct {
	Magic          [4]byte
	Version        uint32
	MasterHashSize uint32
	NumLevels      uint32
	Levels         [LevelCount]Level
	SignatureSalt  [0x20]byte
	MasterHash     [sha256.Size]byte
}

// MarshalBinary encodes the header in its little-endian on-disk form.
func (h IVFCHeader) MarshalBinary() ([]byte, error) {
	var encoded bytes.Buffer
	if err := binary.Write(&encoded, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

// UnmarshalIVFCHeader decodes and validates a hash-info block.
func UnmarshalIVFCHeader(data []byte) (IVFCHeader, error) {
	var header IVFCHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return header, fmt.Errorf("decoding ivfc header: %w", err)
	}
	if string(header.Magic[:]) != ivfcMagic {
		return header, fmt.Errorf("bad ivfc magic %q", header.Magic[:])
	}
	if header.NumLevels != ivfcNumLevels {
		return header, fmt.Errorf("ivfc has %d levels, want %d", header.NumLevels, ivfcNumLevels)
	}
	return header, nil
}

// IntegritySection is a RomFS image with its hash levels, laid out as
// a content archive section.
type IntegritySection struct {
	Data   []byte
	Header IVFCHeader
}

// BuildIntegrity derives the hash levels for a RomFS image. rawSize is
// the image length before block padding, as returned by [Build].
func BuildIntegrity(image []byte, rawSize int64) *IntegritySection {
	var sizes [LevelCount]int64
	sizes[DataLevel] = rawSize
	for level := DataLevel - 1; level >= 0; level-- {
		sizes[level] = binbuf.DivCeil(sizes[level+1], BlockSize) * sha256.Size
	}

	var offsets [LevelCount]int64
	for level := 1; level < LevelCount; level++ {
		offsets[level] = binbuf.AlignUp(offsets[level-1]+sizes[level-1], BlockSize)
	}

	buffer := binbuf.New(int(offsets[DataLevel] + binbuf.AlignUp(rawSize, BlockSize)))
	buffer.WriteAt(image[:min(int64(len(image)), binbuf.AlignUp(rawSize, BlockSize))], offsets[DataLevel])
	buffer.Pad(BlockSize)
	data := buffer.Bytes()

	for level := DataLevel - 1; level >= 0; level-- {
		source := paddedLevel(data, offsets[level+1], sizes[level+1])
		copy(data[offsets[level]:], hashBlocks(source))
	}

	header := IVFCHeader{
		Magic:          [4]byte{'I', 'V', 'F', 'C'},
		Version:        ivfcVersion,
		MasterHashSize: sha256.Size,
		NumLevels:      ivfcNumLevels,
		MasterHash:     sha256.Sum256(data[offsets[0] : offsets[0]+sizes[0]]),
	}
	for level := range LevelCount {
		header.Levels[level] = Level{
			LogicalOffset: uint64(offsets[level]),
			HashDataSize:  uint64(sizes[level]),
			BlockSizeLog2: blockSizeLog2,
		}
	}
	return &IntegritySection{Data: data, Header: header}
}

// VerifyIntegrity recomputes every hash level of section from the level
// above it and checks the master hash. The first mismatching level is
// reported.
func VerifyIntegrity(section []byte, header IVFCHeader) error {
	for level := range LevelCount {
		l := header.Levels[level]
		if l.BlockSizeLog2 != blockSizeLog2 {
			return fmt.Errorf("ivfc level %d block size 2^%d, want 2^%d", level, l.BlockSizeLog2, blockSizeLog2)
		}
		end := int64(l.LogicalOffset + l.HashDataSize)
		if end > int64(len(section)) {
			return fmt.Errorf("ivfc level %d ends at %#x beyond %d-byte section", level, end, len(section))
		}
	}

	for level := DataLevel - 1; level >= 0; level-- {
		source := paddedLevel(section, int64(header.Levels[level+1].LogicalOffset), int64(header.Levels[level+1].HashDataSize))
		expected := hashBlocks(source)
		stored := section[header.Levels[level].LogicalOffset : header.Levels[level].LogicalOffset+header.Levels[level].HashDataSize]
		if !bytes.Equal(expected, stored) {
			return fault.New(fault.ChecksumMismatch, "ivfc level %d does not match hashes of level %d", level, level+1)
		}
	}

	level0 := header.Levels[0]
	if sha256.Sum256(section[level0.LogicalOffset:level0.LogicalOffset+level0.HashDataSize]) != header.MasterHash {
		return fault.New(fault.ChecksumMismatch, "ivfc master hash mismatch")
	}
	return nil
}

// paddedLevel returns a level's bytes extended with zeros to whole
// blocks. Hash blocks past the level's size are hashed as zeros.
func paddedLevel(section []byte, offset, size int64) []byte {
	padded := make([]byte, binbuf.AlignUp(size, BlockSize))
	copy(padded, section[offset:offset+size])
	return padded
}

// hashBlocks returns the concatenated SHA-256 digests of each block.
func hashBlocks(data []byte) []byte {
	digests := make([]byte, 0, len(data)/BlockSize*sha256.Size)
	for start := 0; start < len(data); start += BlockSize {
		digest := sha256.Sum256(data[start : start+BlockSize])
		digests = append(digests, digest[:]...)
	}
	return digests
}
