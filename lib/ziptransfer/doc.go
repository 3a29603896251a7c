// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package ziptransfer binds the transfer pipeline to zip archives:
// extracting one entry or a whole archive onto an [fsys.FS], and
// streaming files into deflated entries.
//
// Extraction uses [transfer.SmallChunkSize] chunks. Every extracted
// entry is checked twice: a running CRC-32 over the bytes read is
// compared with the expected value, and the entry reader is drained
// past its declared size so the zip reader's own checksum verification
// runs. Either disagreement is [fault.ChecksumMismatch]; the bytes have
// already been written by then and the caller decides whether to
// delete them.
package ziptransfer
