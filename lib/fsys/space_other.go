// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !(darwin || linux)

package fsys

import "errors"

func freeSpace(string) (int64, error) {
	return 0, errors.ErrUnsupported
}
