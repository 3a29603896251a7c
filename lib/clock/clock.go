// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the current time for testability. Production code
// injects Real(); tests inject Fake() and move time explicitly.
//
// Code that stamps records or throttles output should hold a Clock
// instead of calling time.Now directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
