// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package binbuf provides [Buffer], a growable byte buffer with a
// movable cursor used to assemble on-disk structures in memory.
//
// Unlike bytes.Buffer, a Buffer supports seeking and writing at
// arbitrary offsets: the archive builders reserve a fixed header,
// append sections after it, and come back to fill the header once the
// section table is known. Writes past the current end zero-fill the
// gap, which is how alignment padding is produced.
package binbuf
