// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package nca

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Format constants.
const (
	// HeaderSize is the encrypted region at the start of every archive.
	HeaderSize = 0xC00

	// MediaUnit is the granularity of section offsets.
	MediaUnit = 0x200

	// SectorSize is the XTS sector size of the header.
	SectorSize = 0x200

	// MaxSections is the number of section slots in the header.
	MaxSections = 4

	// BuildSlots is the number of slots Build fills. The fourth header
	// slot is only read, never written.
	BuildSlots = 3

	// fsHeaderSize is the size of one filesystem header.
	fsHeaderSize = 0x200

	// hashDataSize is the room for a hash-info block in a filesystem
	// header.
	hashDataSize = 0xF8

	magic = "NCA3"
)

// ContentType is the archive's role within a package.
type ContentType uint8

const (
	ContentProgram    ContentType = 0
	ContentMeta       ContentType = 1
	ContentControl    ContentType = 2
	ContentManual     ContentType = 3
	ContentData       ContentType = 4
	ContentPublicData ContentType = 5
)

func (c ContentType) String() string {
	switch c {
	case ContentProgram:
		return "program"
	case ContentMeta:
		return "meta"
	case ContentControl:
		return "control"
	case ContentManual:
		return "manual"
	case ContentData:
		return "data"
	case ContentPublicData:
		return "public_data"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// FsType identifies the filesystem stored in a section.
type FsType uint8

const (
	FsRomFS       FsType = 0
	FsPartitionFS FsType = 1
)

func (t FsType) String() string {
	switch t {
	case FsRomFS:
		return "romfs"
	case FsPartitionFS:
		return "pfs0"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// HashType identifies the integrity scheme of a section.
type HashType uint8

const (
	HashAuto                  HashType = 0
	HashNone                  HashType = 1
	HashHierarchicalSha256    HashType = 2
	HashHierarchicalIntegrity HashType = 3
)

func (t HashType) String() string {
	switch t {
	case HashAuto:
		return "auto"
	case HashNone:
		return "none"
	case HashHierarchicalSha256:
		return "hierarchical_sha256"
	case HashHierarchicalIntegrity:
		return "hierarchical_integrity"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// EncryptionType identifies the section cipher.
type EncryptionType uint8

const (
	EncryptionAuto   EncryptionType = 0
	EncryptionNone   EncryptionType = 1
	EncryptionAesXts EncryptionType = 2
	EncryptionAesCtr EncryptionType = 3
)

// DistributionType is where the archive is distributed from.
type DistributionType uint8

const (
	DistributionDownload DistributionType = 0
	DistributionGameCard DistributionType = 1
)

// SectionEntry is one row of the section table. Offsets are in media
// units; Enabled is 1 for a present section.
type SectionEntry struct {
	MediaStart uint32
	MediaEnd   uint32
	Enabled    uint8
	Reserved   [7]byte
}

// Start returns the section's byte offset in the archive.
func (e SectionEntry) Start() int64 { return int64(e.MediaStart) * MediaUnit }

// End returns the byte offset one past the section.
func (e SectionEntry) End() int64 { return int64(e.MediaEnd) * MediaUnit }

// FsHeader describes one section.
type FsHeader struct {
	Version          uint16
	FsType           FsType
	HashType         HashType
	EncryptionType   EncryptionType
	MetaDataHashType uint8
	Reserved0        [2]byte
	HashData         [hashDataSize]byte
	PatchInfo        [0x40]byte
	Generation       uint32
	SecureValue      uint32
	SparseInfo       [0x30]byte
	CompressionInfo  [0x28]byte
	MetaDataHashInfo [0x30]byte
	Reserved1        [0x30]byte
}

// Header is the plaintext archive header.
type Header struct {
	FixedKeySignature      [0x100]byte
	NPDMSignature          [0x100]byte
	Magic                  [4]byte
	DistributionType       DistributionType
	ContentType            ContentType
	KeyGenerationOld       uint8
	KeyAreaIndex           uint8
	ContentSize            uint64
	ProgramID              uint64
	ContentIndex           uint32
	SDKAddonVersion        uint32
	KeyGeneration          uint8
	SignatureKeyGeneration uint8
	Reserved0              [0xE]byte
	RightsID               [0x10]byte
	Sections               [MaxSections]SectionEntry
	FsHeaderHashes         [MaxSections][0x20]byte
	KeyArea                [4][0x10]byte
	Reserved1              [0xC0]byte
	FsHeaders              [MaxSections]FsHeader
}

// MarshalBinary encodes the header as its 0xC00 plaintext bytes.
func (h *Header) MarshalBinary() ([]byte, error) {
	var encoded bytes.Buffer
	encoded.Grow(HeaderSize)
	if err := binary.Write(&encoded, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("encoding archive header: %w", err)
	}
	return encoded.Bytes(), nil
}

// MarshalBinary encodes the filesystem header as its 0x200 bytes.
func (h *FsHeader) MarshalBinary() ([]byte, error) {
	var encoded bytes.Buffer
	if err := binary.Write(&encoded, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("encoding fs header: %w", err)
	}
	return encoded.Bytes(), nil
}

// ParseHeader decodes a plaintext header and checks its magic.
func ParseHeader(plain []byte) (*Header, error) {
	if len(plain) < HeaderSize {
		return nil, fmt.Errorf("archive header is %d bytes, want %d", len(plain), HeaderSize)
	}
	header := &Header{}
	if err := binary.Read(bytes.NewReader(plain[:HeaderSize]), binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("decoding archive header: %w", err)
	}
	if string(header.Magic[:]) != magic {
		return nil, fmt.Errorf("bad archive magic %q (wrong header key?)", header.Magic[:])
	}
	return header, nil
}

// SplitKeyGeneration returns the (old, new) header fields for a key
// generation. Generations up to 2 live in the old field only.
func SplitKeyGeneration(generation uint8) (old, current uint8) {
	if generation > 2 {
		return 2, generation
	}
	return generation, 0
}

// EffectiveKeyGeneration returns the key generation of a header, as the
// platform computes it from the two fields.
func (h *Header) EffectiveKeyGeneration() uint8 {
	return max(h.KeyGenerationOld, h.KeyGeneration)
}
