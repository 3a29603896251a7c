// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides nxpack's CBOR encoding configuration for
// on-disk records: the content store's blob, content meta and
// application records.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same record always produces identical bytes, so record files can be
// compared and hashed directly.
//
//	data, err := codec.Marshal(record)
//	err = codec.Unmarshal(data, &record)
//
// Types implementing encoding.TextMarshaler, such as content ids,
// encode as CBOR text strings rather than byte arrays, which keeps
// [Diagnose] output readable.
//
// Record types carry `cbor` struct tags. Decoding ignores unknown
// fields so older binaries can read records written by newer ones.
package codec
