// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package nca builds content archives: the container format the
// platform installs, holding up to four hashed sections behind a
// 0xC00-byte encrypted header.
//
// # Layout
//
//	0x000  header (0x400): signatures, magic "NCA3", content type,
//	       program id, sizes, section table, fs header hashes, key area
//	0x400  four filesystem headers, 0x200 each
//	0xC00  section 0, then section 1 ... each padded to 0x200
//
// Offsets in the section table are expressed in 0x200-byte media
// units. Section 0 always starts at 0xC00 and each following section
// starts where the previous one ended.
//
// Each filesystem header describes one section: its filesystem type
// (PFS0 or RomFS), its hash type (HierarchicalSha256 or IVFC) and the
// hash-info block carrying the section master hash. The SHA-256 of each
// filesystem header is stored in the main header, so the header chain
// authenticates every section.
//
// # Encryption
//
// Only the header is encrypted. Sections are stored in clear with
// encryption type None. [EncryptHeader] applies AES-128-XTS over the
// 0xC00 bytes in 0x200-byte sectors numbered from zero, with the sector
// number encoded big-endian across the 16-byte tweak. The key area
// (four zero keys) is encrypted with the key-area key of the archive's
// key generation using AES-128-ECB.
//
// The builder is a pure transform over caller-validated sections; it
// keeps no state between calls and is safe to use from one goroutine at
// a time.
package nca
