// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package nca

import (
	"crypto/sha256"
	"fmt"

	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/pfs"
	"github.com/nxpack/nxpack/lib/romfs"
)

// Archive is a parsed content archive. The payload is referenced, not
// copied.
type Archive struct {
	Header *Header
	data   []byte
}

// SectionInfo summarises one populated slot.
type SectionInfo struct {
	Slot     int
	Start    int64
	End      int64
	FsType   FsType
	HashType HashType
}

// FileEntry is a file stored in a section, with its offset relative to
// the section's inner filesystem.
type FileEntry struct {
	Name   string
	Offset int64
	Size   int64
}

// Open decrypts the header of data and validates its section table:
// every populated section must start on a media unit, sections must be
// contiguous in slot order starting at the header end, and the last one
// must end within the content size.
func Open(data []byte, headerKey [HeaderKeySize]byte) (*Archive, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("archive is %d bytes, shorter than its header", len(data))
	}
	plain, err := DecryptHeader(data[:HeaderSize], headerKey)
	if err != nil {
		return nil, err
	}
	header, err := ParseHeader(plain)
	if err != nil {
		return nil, err
	}
	if header.ContentSize != uint64(len(data)) {
		return nil, fmt.Errorf("header content size %d does not match %d-byte archive", header.ContentSize, len(data))
	}

	expected := int64(HeaderSize)
	for slot, entry := range header.Sections {
		if entry.Enabled == 0 {
			continue
		}
		if entry.Start() != expected {
			return nil, fmt.Errorf("slot %d starts at %#x, want %#x", slot, entry.Start(), expected)
		}
		if entry.End() < entry.Start() || entry.End() > int64(len(data)) {
			return nil, fmt.Errorf("slot %d ends at %#x outside the archive", slot, entry.End())
		}
		expected = entry.End()
	}
	return &Archive{Header: header, data: data}, nil
}

// Sections lists the populated slots in order.
func (a *Archive) Sections() []SectionInfo {
	var sections []SectionInfo
	for slot, entry := range a.Header.Sections {
		if entry.Enabled == 0 {
			continue
		}
		fsHeader := a.Header.FsHeaders[slot]
		sections = append(sections, SectionInfo{
			Slot:     slot,
			Start:    entry.Start(),
			End:      entry.End(),
			FsType:   fsHeader.FsType,
			HashType: fsHeader.HashType,
		})
	}
	return sections
}

// Section returns the payload of slot, including its hash layers.
func (a *Archive) Section(slot int) ([]byte, error) {
	if slot < 0 || slot >= MaxSections || a.Header.Sections[slot].Enabled == 0 {
		return nil, fmt.Errorf("slot %d is not populated", slot)
	}
	entry := a.Header.Sections[slot]
	return a.data[entry.Start():entry.End()], nil
}

// Verify checks every populated section: the filesystem header hash in
// the main header, then the section's own hash tree.
func (a *Archive) Verify() error {
	for _, info := range a.Sections() {
		if err := a.verifySection(info.Slot); err != nil {
			return fmt.Errorf("slot %d: %w", info.Slot, err)
		}
	}
	return nil
}

func (a *Archive) verifySection(slot int) error {
	fsHeader := a.Header.FsHeaders[slot]
	encoded, err := fsHeader.MarshalBinary()
	if err != nil {
		return err
	}
	if sha256.Sum256(encoded) != a.Header.FsHeaderHashes[slot] {
		return fault.New(fault.ChecksumMismatch, "fs header hash mismatch")
	}
	payload, err := a.Section(slot)
	if err != nil {
		return err
	}
	switch fsHeader.HashType {
	case HashHierarchicalSha256:
		hashHeader, err := pfs.UnmarshalSha256Header(fsHeader.HashData[:])
		if err != nil {
			return err
		}
		return pfs.VerifyHashed(payload, hashHeader)
	case HashHierarchicalIntegrity:
		hashHeader, err := romfs.UnmarshalIVFCHeader(fsHeader.HashData[:])
		if err != nil {
			return err
		}
		return romfs.VerifyIntegrity(payload, hashHeader)
	default:
		return fmt.Errorf("unsupported hash type %d", fsHeader.HashType)
	}
}

// filesystem returns the inner PFS0 or RomFS image of slot, without
// hash layers.
func (a *Archive) filesystem(slot int) ([]byte, error) {
	payload, err := a.Section(slot)
	if err != nil {
		return nil, err
	}
	fsHeader := a.Header.FsHeaders[slot]
	var offset, size int64
	switch fsHeader.HashType {
	case HashHierarchicalSha256:
		hashHeader, err := pfs.UnmarshalSha256Header(fsHeader.HashData[:])
		if err != nil {
			return nil, err
		}
		offset, size = hashHeader.Regions[1].Offset, hashHeader.Regions[1].Size
	case HashHierarchicalIntegrity:
		hashHeader, err := romfs.UnmarshalIVFCHeader(fsHeader.HashData[:])
		if err != nil {
			return nil, err
		}
		data := hashHeader.Levels[romfs.DataLevel]
		offset, size = int64(data.LogicalOffset), int64(data.HashDataSize)
	default:
		return nil, fmt.Errorf("unsupported hash type %d", fsHeader.HashType)
	}
	if offset < 0 || size < 0 || offset+size > int64(len(payload)) {
		return nil, fmt.Errorf("filesystem region [%#x, %#x) exceeds %d-byte section", offset, offset+size, len(payload))
	}
	return payload[offset : offset+size], nil
}

// Files lists the files of the filesystem in slot.
func (a *Archive) Files(slot int) ([]FileEntry, error) {
	image, err := a.filesystem(slot)
	if err != nil {
		return nil, err
	}
	var files []FileEntry
	switch a.Header.FsHeaders[slot].FsType {
	case FsPartitionFS:
		entries, err := pfs.Parse(image)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			files = append(files, FileEntry{Name: entry.Name, Offset: entry.Offset, Size: entry.Size})
		}
	case FsRomFS:
		entries, err := romfs.Parse(image)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			files = append(files, FileEntry{Name: entry.Name, Offset: entry.Offset, Size: entry.Size})
		}
	default:
		return nil, fmt.Errorf("unsupported fs type %d", a.Header.FsHeaders[slot].FsType)
	}
	return files, nil
}

// File returns the contents of one named file in slot.
func (a *Archive) File(slot int, name string) ([]byte, error) {
	image, err := a.filesystem(slot)
	if err != nil {
		return nil, err
	}
	if a.Header.FsHeaders[slot].FsType == FsRomFS {
		return romfs.Lookup(image, name)
	}
	return pfs.Lookup(image, name)
}
