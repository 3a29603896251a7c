// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package forwarder

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

const (
	// titleIDMask keeps bits 12-47 of the hashed id. The low 12 bits
	// are left zero for the platform's per-title sub-ids.
	titleIDMask = 0x0000_FFFF_FFFF_F000

	applicationIDPrefix = uint64(0x05) << 56
	updateIDPrefix      = uint64(0x01) << 56
)

// IDs are the identifiers of one forwarder.
type IDs struct {
	// Application is the application (and program) id.
	Application uint64

	// Update is the update-variant id sharing the same low bits.
	Update uint64
}

// TitleIDs derives forwarder ids from the target path and arguments:
// SHA-256 over path, a NUL byte and args; the first eight bytes read
// little-endian and masked supply the low 48 bits.
func TitleIDs(nroPath, args string) IDs {
	hash := sha256.New()
	hash.Write([]byte(nroPath))
	hash.Write([]byte{0})
	hash.Write([]byte(args))
	low := binary.LittleEndian.Uint64(hash.Sum(nil)) & titleIDMask
	return IDs{
		Application: applicationIDPrefix | low,
		Update:      updateIDPrefix | low,
	}
}

// String returns the application id as 16 hex digits.
func (ids IDs) String() string {
	return FormatTitleID(ids.Application)
}

// FormatTitleID formats a title id the way content metadata file
// names spell it.
func FormatTitleID(id uint64) string {
	return fmt.Sprintf("%016x", id)
}
