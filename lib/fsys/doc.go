// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package fsys is the filesystem collaborator consumed by the transfer
// pipeline, the zip adapter and the content store. The core never
// touches the host filesystem directly; it opens [File] values through
// an [FS] and moves bytes with ReadAt and WriteAt at explicit offsets.
//
// [OS] is the host implementation. On Linux, growing a file with
// SetSize preallocates blocks with fallocate so a long transfer fails
// early on a full disk rather than midway, and FreeSpace reads statfs.
// [Memory] is an in-memory implementation for tests and for staging
// small archives.
//
// Every error returned by [OS] is classified as [fault.IO].
package fsys
