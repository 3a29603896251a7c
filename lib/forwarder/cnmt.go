// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"encoding/binary"
	"fmt"

	"github.com/nxpack/nxpack/lib/binbuf"
	"github.com/nxpack/nxpack/lib/fault"
	"github.com/nxpack/nxpack/lib/nca"
)

// MetaType is the kind of title a content meta describes.
type MetaType uint8

const (
	MetaApplication MetaType = 0x80
	MetaPatch       MetaType = 0x81
	MetaAddOn       MetaType = 0x82
)

func (t MetaType) String() string {
	switch t {
	case MetaApplication:
		return "application"
	case MetaPatch:
		return "patch"
	case MetaAddOn:
		return "add_on_content"
	default:
		return fmt.Sprintf("meta_type(0x%02x)", uint8(t))
	}
}

// RecordType is the content type of a record in a content meta. The
// numbering differs from [nca.ContentType].
type RecordType uint8

const (
	RecordMeta    RecordType = 0
	RecordProgram RecordType = 1
	RecordData    RecordType = 2
	RecordControl RecordType = 3
)

func (t RecordType) String() string {
	switch t {
	case RecordMeta:
		return "meta"
	case RecordProgram:
		return "program"
	case RecordData:
		return "data"
	case RecordControl:
		return "control"
	default:
		return fmt.Sprintf("record_type(%d)", uint8(t))
	}
}

// RecordTypeOf maps an archive content type to its record type.
func RecordTypeOf(kind nca.ContentType) RecordType {
	switch kind {
	case nca.ContentMeta:
		return RecordMeta
	case nca.ContentProgram:
		return RecordProgram
	case nca.ContentControl:
		return RecordControl
	default:
		return RecordData
	}
}

// ContentInfo describes one archive of a package.
type ContentInfo struct {
	ID     nca.ContentID `cbor:"id"`
	Size   int64         `cbor:"size"`
	Type   RecordType    `cbor:"type"`
	Digest [32]byte      `cbor:"digest"`
}

// InfoOf describes an archive.
func InfoOf(kind nca.ContentType, archive []byte) ContentInfo {
	digest := nca.Digest(archive)
	return ContentInfo{
		ID:     nca.ContentIDOf(digest),
		Size:   int64(len(archive)),
		Type:   RecordTypeOf(kind),
		Digest: digest,
	}
}

// ContentMeta is the decoded form of a .cnmt file.
type ContentMeta struct {
	TitleID                       uint64
	Version                       uint32
	Type                          MetaType
	RequiredDownloadSystemVersion uint32

	// Extended application header.
	PatchID                    uint64
	RequiredSystemVersion      uint32
	RequiredApplicationVersion uint32

	Contents []ContentInfo
}

const (
	cnmtHeaderSize         = 0x20
	cnmtExtendedHeaderSize = 0x10
	cnmtRecordSize         = 0x38
	cnmtDigestSize         = 0x20
	maxContentSize         = 1<<48 - 1
)

type cnmtHeader struct {
	TitleID                       uint64
	Version                       uint32
	Type                          MetaType
	Reserved0                     uint8
	ExtendedHeaderSize            uint16
	ContentCount                  uint16
	ContentMetaCount              uint16
	Attributes                    uint8
	Reserved1                     [3]byte
	RequiredDownloadSystemVersion uint32
	Reserved2                     [4]byte
}

type applicationHeader struct {
	PatchID                    uint64
	RequiredSystemVersion      uint32
	RequiredApplicationVersion uint32
}

// MarshalBinary encodes the content meta: header, application extended
// header, one 0x38-byte record per content, and a zero digest.
func (m *ContentMeta) MarshalBinary() ([]byte, error) {
	buffer := binbuf.New(cnmtHeaderSize + cnmtExtendedHeaderSize + len(m.Contents)*cnmtRecordSize + cnmtDigestSize)
	if err := buffer.WriteStruct(cnmtHeader{
		TitleID:                       m.TitleID,
		Version:                       m.Version,
		Type:                          m.Type,
		ExtendedHeaderSize:            cnmtExtendedHeaderSize,
		ContentCount:                  uint16(len(m.Contents)),
		RequiredDownloadSystemVersion: m.RequiredDownloadSystemVersion,
	}); err != nil {
		return nil, err
	}
	if err := buffer.WriteStruct(applicationHeader{
		PatchID:                    m.PatchID,
		RequiredSystemVersion:      m.RequiredSystemVersion,
		RequiredApplicationVersion: m.RequiredApplicationVersion,
	}); err != nil {
		return nil, err
	}
	for _, content := range m.Contents {
		if content.Size < 0 || content.Size > maxContentSize {
			return nil, fault.New(fault.InvalidArgument, "content %s size %d does not fit 48 bits", content.ID, content.Size)
		}
		var record [cnmtRecordSize]byte
		copy(record[:0x20], content.Digest[:])
		copy(record[0x20:0x30], content.ID[:])
		var size [8]byte
		binary.LittleEndian.PutUint64(size[:], uint64(content.Size))
		copy(record[0x30:0x36], size[:6])
		record[0x36] = uint8(content.Type)
		buffer.Write(record[:])
	}
	buffer.Write(make([]byte, cnmtDigestSize))
	return buffer.Bytes(), nil
}

// ParseContentMeta decodes a .cnmt file.
func ParseContentMeta(data []byte) (*ContentMeta, error) {
	if len(data) < cnmtHeaderSize {
		return nil, fault.New(fault.InvalidArgument, "content meta is %d bytes", len(data))
	}
	meta := &ContentMeta{
		TitleID:                       binary.LittleEndian.Uint64(data[0:]),
		Version:                       binary.LittleEndian.Uint32(data[8:]),
		Type:                          MetaType(data[0x0C]),
		RequiredDownloadSystemVersion: binary.LittleEndian.Uint32(data[0x18:]),
	}
	extended := int(binary.LittleEndian.Uint16(data[0x0E:]))
	count := int(binary.LittleEndian.Uint16(data[0x10:]))
	recordsAt := cnmtHeaderSize + extended
	if len(data) < recordsAt+count*cnmtRecordSize {
		return nil, fault.New(fault.InvalidArgument, "content meta with %d records is truncated at %d bytes", count, len(data))
	}
	if meta.Type == MetaApplication && extended >= cnmtExtendedHeaderSize {
		header := data[cnmtHeaderSize:]
		meta.PatchID = binary.LittleEndian.Uint64(header[0:])
		meta.RequiredSystemVersion = binary.LittleEndian.Uint32(header[8:])
		meta.RequiredApplicationVersion = binary.LittleEndian.Uint32(header[12:])
	}
	for i := range count {
		record := data[recordsAt+i*cnmtRecordSize:]
		var content ContentInfo
		copy(content.Digest[:], record[:0x20])
		copy(content.ID[:], record[0x20:0x30])
		var size [8]byte
		copy(size[:6], record[0x30:0x36])
		content.Size = int64(binary.LittleEndian.Uint64(size[:]))
		content.Type = RecordType(record[0x36])
		meta.Contents = append(meta.Contents, content)
	}
	return meta, nil
}

// FileName is the name of the .cnmt file inside the meta archive.
func (m *ContentMeta) FileName() string {
	prefix := "Application"
	switch m.Type {
	case MetaPatch:
		prefix = "Patch"
	case MetaAddOn:
		prefix = "AddOnContent"
	}
	return fmt.Sprintf("%s_%s.cnmt", prefix, FormatTitleID(m.TitleID))
}
