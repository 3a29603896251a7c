// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package fsys

import (
	"errors"
	"os"
)

func preallocate(*os.File, int64) error {
	return errors.ErrUnsupported
}
