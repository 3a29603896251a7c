// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nxpack/nxpack/lib/fault"
)

// NPDM field offsets. The META header is 0x80 bytes; ACI0 and ACID
// blobs are located through its offset/size pairs.
const (
	npdmHeaderSize      = 0x80
	npdmNameOffset      = 0x20
	npdmNameSize        = 0x10
	npdmProductOffset   = 0x30
	npdmProductSize     = 0x10
	npdmACIOffsetField  = 0x70
	npdmACIDOffsetField = 0x78
	aciProgramIDOffset  = 0x10
	aciMinimumSize      = 0x20
	acidMagicOffset     = 0x200
	acidFlagsOffset     = 0x20C
	acidMinimumSize     = 0x210
	acidUnqualifiedFlag = 1 << 1
)

const (
	npdmMagic = "META"
	aciMagic  = "ACI0"
	acidMagic = "ACID"
)

// SystemVersion is a packed platform firmware version: major in bits
// 26-31, minor in 20-25, micro in 16-19.
type SystemVersion uint32

// MakeSystemVersion packs a firmware version.
func MakeSystemVersion(major, minor, micro uint32) SystemVersion {
	return SystemVersion((major&0x3F)<<26 | (minor&0x3F)<<20 | (micro&0xF)<<16)
}

// ParseSystemVersion parses "major.minor.micro"; minor and micro may
// be omitted.
func ParseSystemVersion(text string) (SystemVersion, error) {
	parts := strings.Split(text, ".")
	if len(parts) > 3 {
		return 0, fault.New(fault.InvalidArgument, "system version %q has more than three parts", text)
	}
	var numbers [3]uint32
	limits := [3]uint64{0x3F, 0x3F, 0xF}
	for i, part := range parts {
		value, err := strconv.ParseUint(part, 10, 32)
		if err != nil || value > limits[i] {
			return 0, fault.New(fault.InvalidArgument, "system version %q: bad component %q", text, part)
		}
		numbers[i] = uint32(value)
	}
	return MakeSystemVersion(numbers[0], numbers[1], numbers[2]), nil
}

func (v SystemVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v>>26, (v>>20)&0x3F, (v>>16)&0xF)
}

// AcidPatchThreshold is the first firmware that refuses the loader's
// ACID without the unqualified-approval flag.
var AcidPatchThreshold = MakeSystemVersion(10, 0, 0)

// PatchNPDM returns a copy of npdm with the title name, product code
// and ACI0 program id replaced. When systemVersion is at or above
// AcidPatchThreshold the ACID unqualified-approval flag is set as
// well. Only the named fields change.
func PatchNPDM(npdm []byte, name string, programID uint64, systemVersion SystemVersion) ([]byte, error) {
	if len(npdm) < npdmHeaderSize || string(npdm[:4]) != npdmMagic {
		return nil, fault.New(fault.InvalidArgument, "loader metadata is not an NPDM (%d bytes)", len(npdm))
	}
	aci, err := npdmBlob(npdm, npdmACIOffsetField, aciMinimumSize, 0, aciMagic)
	if err != nil {
		return nil, err
	}
	acid, err := npdmBlob(npdm, npdmACIDOffsetField, acidMinimumSize, acidMagicOffset, acidMagic)
	if err != nil {
		return nil, err
	}

	patched := slices.Clone(npdm)
	putFixedString(patched[npdmNameOffset:npdmNameOffset+npdmNameSize], name)
	clear(patched[npdmProductOffset : npdmProductOffset+npdmProductSize])
	binary.LittleEndian.PutUint64(patched[aci+aciProgramIDOffset:], programID)
	if systemVersion >= AcidPatchThreshold {
		flags := binary.LittleEndian.Uint32(patched[acid+acidFlagsOffset:])
		binary.LittleEndian.PutUint32(patched[acid+acidFlagsOffset:], flags|acidUnqualifiedFlag)
	}
	return patched, nil
}

// npdmBlob validates the blob whose offset/size pair starts at field
// and returns its offset.
func npdmBlob(npdm []byte, field, minimum, magicAt int, magic string) (int, error) {
	offset := int64(binary.LittleEndian.Uint32(npdm[field:]))
	size := int64(binary.LittleEndian.Uint32(npdm[field+4:]))
	if size < int64(minimum) || offset < npdmHeaderSize || offset+size > int64(len(npdm)) {
		return 0, fault.New(fault.InvalidArgument, "NPDM %s blob at 0x%x size 0x%x is outside the %d-byte file", magic, offset, size, len(npdm))
	}
	at := int(offset) + magicAt
	if string(npdm[at:at+4]) != magic {
		return 0, fault.New(fault.InvalidArgument, "NPDM %s blob has magic %q", magic, npdm[at:at+4])
	}
	return int(offset), nil
}

// NPDMProgramID reads the ACI0 program id of an NPDM.
func NPDMProgramID(npdm []byte) (uint64, error) {
	if len(npdm) < npdmHeaderSize || string(npdm[:4]) != npdmMagic {
		return 0, fault.New(fault.InvalidArgument, "not an NPDM")
	}
	aci, err := npdmBlob(npdm, npdmACIOffsetField, aciMinimumSize, 0, aciMagic)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(npdm[aci+aciProgramIDOffset:]), nil
}

// putFixedString writes s into a zero-filled fixed field, truncating
// at a UTF-8 boundary so at least one terminating NUL remains when the
// field is larger than the text.
func putFixedString(field []byte, s string) {
	clear(field)
	limit := len(field) - 1
	if len(s) > limit {
		s = truncateUTF8(s, limit)
	}
	copy(field, s)
}

func truncateUTF8(s string, limit int) string {
	for limit > 0 && limit < len(s) && s[limit]&0xC0 == 0x80 {
		limit--
	}
	return s[:limit]
}
