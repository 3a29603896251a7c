// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package contentstore is a host-side content storage and metadata
// database for installed packages. It implements [Registrar], the
// sink the installer streams archives into, on top of a directory:
//
//	<root>/placeholder/<content id>.nca   archives being written
//	<root>/registered/<content id>.nca    registered archives
//	<root>/registered/<content id>.cbor   blob record with BLAKE3 digest
//	<root>/meta/<content meta key>.cbor   content meta records
//	<root>/apps/<application id>.cbor     application records
//
// Placeholders are written through [fsys.FS] handles. [Store.Register]
// checks the SHA-256 of a finished placeholder against the content
// info, then moves it into registered/ and records its keyed BLAKE3
// digest so [Store.Verify] can detect later on-disk corruption.
//
// Content meta records are staged by SetContentMeta and written by
// Commit. Application records are written immediately. All records are
// deterministic CBOR via lib/codec, written to a temporary file and
// renamed so readers never see a partial record.
//
// A Store is safe for concurrent use by one installer at a time per
// content id; metadata writes are serialized internally.
package contentstore
