// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package fsys

import "golang.org/x/sys/unix"

func freeSpace(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return int64(uint64(stat.Bavail) * uint64(stat.Bsize)), nil
}
