// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"runtime"
	"time"
)

// RequireGoroutinesAtMost waits until at most limit goroutines are
// running, or fails the test after timeout. Goroutines that have
// signalled a WaitGroup may still be counted for a moment while they
// unwind, hence the wait.
//
//	baseline := runtime.NumGoroutine()
//	// ... run a transfer ...
//	testutil.RequireGoroutinesAtMost(t, baseline, 5*time.Second)
func RequireGoroutinesAtMost(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, limit int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		count := runtime.NumGoroutine()
		if count <= limit {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%d goroutines still running after %v, want at most %d", count, timeout, limit)
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}
