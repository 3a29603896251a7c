// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package pfs builds and reads PFS0 partitions, the flat named-blob
// archive used for executable, logo and metadata sections of a content
// archive and for NSP package files.
//
// A PFS0 image is laid out as:
//
//	[header 0x10][file table 0x18*N][string table][file data ...]
//
// File order is the caller's order. File N's data offset (relative to
// the start of the data region) is the sum of the sizes of files
// 0..N-1; there is no per-file alignment.
//
// When a PFS0 is embedded in a content archive it is wrapped by
// [BuildHashed] in a HierarchicalSha256 region: a table of SHA-256
// digests, one per fixed-size block of the PFS0, followed by the PFS0
// itself. The SHA-256 of the table is the section master hash recorded
// in the archive's section header.
package pfs
