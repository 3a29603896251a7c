// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault classifies errors produced by the packaging and
// transfer subsystems so callers can make decisions (delete a partial
// temp file, show a key-setup hint, retry) without parsing message
// text.
//
// Every classified error is an [*Error] carrying a [Kind] and the
// underlying error chain. The kinds themselves implement error, so the
// usual check is:
//
//	if errors.Is(err, fault.Cancelled) {
//	    fsys.DeleteFile(tempPath)
//	}
//
// Only the first failure of a multi-stage operation is reported;
// errors caused by unwinding the remaining stages are dropped by the
// producer before they reach this package.
//
// This package depends on no other nxpack packages.
package fault
