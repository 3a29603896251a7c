// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package nca

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/nxpack/nxpack/lib/binbuf"
	"github.com/nxpack/nxpack/lib/pfs"
	"github.com/nxpack/nxpack/lib/romfs"
)

// DefaultSDKAddonVersion is stamped when a Builder leaves
// SDKAddonVersion zero.
const DefaultSDKAddonVersion = 0x000C1100

// fsHeaderVersion is the only filesystem header version written.
const fsHeaderVersion = 2

// Section is one hashed payload to place in an archive slot.
type Section struct {
	// Slot is the header slot, 0 to BuildSlots-1. The archive lays
	// sections out in slot order.
	Slot int

	FsType   FsType
	HashType HashType

	// HashData is the encoded hash-info block for the filesystem
	// header, at most 0xF8 bytes.
	HashData []byte

	// Data is the section payload, stored in clear.
	Data []byte
}

// PartitionSection wraps a HierarchicalSha256 PFS0 section.
func PartitionSection(slot int, section *pfs.HashedSection) (Section, error) {
	hashData, err := section.Header().MarshalBinary()
	if err != nil {
		return Section{}, fmt.Errorf("encoding partition hash header: %w", err)
	}
	return Section{
		Slot:     slot,
		FsType:   FsPartitionFS,
		HashType: HashHierarchicalSha256,
		HashData: hashData,
		Data:     section.Data,
	}, nil
}

// RomFSSection wraps an IVFC-protected RomFS section.
func RomFSSection(slot int, section *romfs.IntegritySection) (Section, error) {
	hashData, err := section.Header.MarshalBinary()
	if err != nil {
		return Section{}, fmt.Errorf("encoding ivfc header: %w", err)
	}
	return Section{
		Slot:     slot,
		FsType:   FsRomFS,
		HashType: HashHierarchicalIntegrity,
		HashData: hashData,
		Data:     section.Data,
	}, nil
}

// Keys is the key material an archive is sealed with.
type Keys struct {
	// Header is the AES-128-XTS header key.
	Header [HeaderKeySize]byte

	// KeyArea is the key-area encryption key for the builder's key
	// generation.
	KeyArea [0x10]byte
}

// Builder assembles content archives. The zero value with Keys set
// builds download archives at key generation 0.
type Builder struct {
	Keys Keys

	// KeyGeneration selects the master key revision recorded in the
	// header. It must match the generation of Keys.KeyArea.
	KeyGeneration uint8

	// SDKAddonVersion is stamped into the header. Zero means
	// DefaultSDKAddonVersion.
	SDKAddonVersion uint32

	Distribution DistributionType
}

// Build lays out sections after the header, fills the header and
// returns the archive with its header encrypted. Sections may be given
// in any order; each slot may be used once.
func (b *Builder) Build(kind ContentType, programID uint64, sections []Section) ([]byte, error) {
	if len(sections) == 0 || len(sections) > BuildSlots {
		return nil, fmt.Errorf("archive needs 1 to %d sections, got %d", BuildSlots, len(sections))
	}
	ordered := slices.Clone(sections)
	slices.SortFunc(ordered, func(a, b Section) int { return cmp.Compare(a.Slot, b.Slot) })

	header := &Header{
		Magic:            [4]byte{'N', 'C', 'A', '3'},
		DistributionType: b.Distribution,
		ContentType:      kind,
		ProgramID:        programID,
		SDKAddonVersion:  cmp.Or(b.SDKAddonVersion, DefaultSDKAddonVersion),
	}
	header.KeyGenerationOld, header.KeyGeneration = SplitKeyGeneration(b.KeyGeneration)

	total := int64(HeaderSize)
	for _, section := range ordered {
		total += binbuf.AlignUp(int64(len(section.Data)), MediaUnit)
	}
	buffer := binbuf.New(int(total))
	buffer.Write(make([]byte, HeaderSize))

	for i, section := range ordered {
		if section.Slot < 0 || section.Slot >= BuildSlots {
			return nil, fmt.Errorf("section slot %d out of range", section.Slot)
		}
		if i > 0 && ordered[i-1].Slot == section.Slot {
			return nil, fmt.Errorf("section slot %d used twice", section.Slot)
		}
		if len(section.HashData) > hashDataSize {
			return nil, fmt.Errorf("slot %d hash data is %d bytes, limit %d", section.Slot, len(section.HashData), hashDataSize)
		}

		start := buffer.Len()
		buffer.Write(section.Data)
		end := buffer.Pad(MediaUnit)
		header.Sections[section.Slot] = SectionEntry{
			MediaStart: uint32(start / MediaUnit),
			MediaEnd:   uint32(end / MediaUnit),
			Enabled:    1,
		}

		fsHeader := &header.FsHeaders[section.Slot]
		fsHeader.Version = fsHeaderVersion
		fsHeader.FsType = section.FsType
		fsHeader.HashType = section.HashType
		fsHeader.EncryptionType = EncryptionNone
		copy(fsHeader.HashData[:], section.HashData)
		encoded, err := fsHeader.MarshalBinary()
		if err != nil {
			return nil, err
		}
		header.FsHeaderHashes[section.Slot] = sha256.Sum256(encoded)
	}
	header.ContentSize = uint64(buffer.Len())

	if err := encryptKeyArea(&header.KeyArea, b.Keys.KeyArea); err != nil {
		return nil, err
	}
	plain, err := header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	encrypted, err := EncryptHeader(plain, b.Keys.Header)
	if err != nil {
		return nil, err
	}

	archive := buffer.Bytes()
	copy(archive, encrypted)
	return archive, nil
}

// Digest returns the SHA-256 of a complete archive, which content
// metadata records use as the content hash.
func Digest(archive []byte) [sha256.Size]byte {
	return sha256.Sum256(archive)
}

// ContentID is the first half of an archive digest. It names the
// archive in content storage.
type ContentID [0x10]byte

// ContentIDOf derives the content id from an archive digest.
func ContentIDOf(digest [sha256.Size]byte) ContentID {
	var id ContentID
	copy(id[:], digest[:])
	return id
}

// String returns the lowercase hex form used in file names.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText encodes the id as lowercase hex.
func (id ContentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes a 32-digit hex id.
func (id *ContentID) UnmarshalText(text []byte) error {
	parsed, err := ParseContentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseContentID parses the hex form produced by String.
func ParseContentID(text string) (ContentID, error) {
	var id ContentID
	if len(text) != 2*len(id) {
		return id, fmt.Errorf("content id %q: want %d hex digits", text, 2*len(id))
	}
	if _, err := hex.Decode(id[:], []byte(text)); err != nil {
		return id, fmt.Errorf("content id %q: %w", text, err)
	}
	return id, nil
}
