// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package fsys

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves blocks up to size and extends the file. Callers
// fall back to truncate when the filesystem does not support it.
func preallocate(file *os.File, size int64) error {
	return unix.Fallocate(int(file.Fd()), 0, 0, size)
}
