// Copyright 2026 The Nxpack Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Production code holds a [Clock] instead of calling time.Now
// directly. In production, [Real] provides the standard library
// behavior. In tests, [Fake] provides a clock that moves only when
// [FakeClock.Advance] or [FakeClock.Set] is called.
//
// Add a Clock field to structs that use time:
//
//	type Store struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	s := &Store{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	s.clock = c
//	c.Advance(5 * time.Second)
//
// The content store stamps registrations with its clock, and the CLI
// progress line throttles redraws by it.
package clock
