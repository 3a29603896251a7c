// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package romfs builds RomFS images, the hierarchical read-only
// filesystem embedded in data and control sections of a content
// archive, and the IVFC integrity tree that protects them.
//
// # Image layout
//
//	0x000  header (0x50 bytes)
//	0x200  file partition: file data, each file 16-byte aligned
//	       directory hash table   (4-byte aligned after the data)
//	       directory table
//	       file hash table
//	       file table
//
// Directory and file entries link to each other by byte offset into
// their table (parent, sibling, first child, first file). Each hash
// table is an array of bucket heads; an entry's hash field continues
// the bucket chain. New entries are prepended to their bucket.
//
// The builder supports a single directory, the root, holding any number
// of files. Nodes live in index arenas; offsets are assigned in one pass
// over the arena and links are translated at serialization time.
//
// # Integrity tree
//
// [BuildIntegrity] derives the IVFC layers bottom up. The header holds
// six levels: level 5 is the RomFS image, levels 4 down to 0 each hold
// one SHA-256 digest per 0x4000-byte block of the level above them,
// and the master hash is the SHA-256 of level 0. Levels are stored in
// the section in index order, each starting on a block boundary.
package romfs
