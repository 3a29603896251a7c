// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for nxpack packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Pipeline
// tests use them to assert that a stage is blocked, or that it
// unblocks, without hanging the suite when it does not.
//
// [RequireGoroutinesAtMost] checks that a transfer joined every worker
// it started.
//
// [PatternBytes] and [FirstPatternMismatch] produce and check an
// offset-indexed byte pattern for order-preservation tests.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no nxpack-internal dependencies.
package testutil
