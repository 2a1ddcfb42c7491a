// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-driven code run against a controllable clock
// in tests.
//
// The flush loop takes a Clock instead of calling time.NewTicker
// directly. A test drives it like this:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go queue.Run(ctx)          // registers its ticker on c
//	c.WaitForTimers(1)         // wait for the registration
//	c.Advance(30 * time.Second) // fire the tick
//
// WaitForTimers closes the race between a goroutine creating its
// ticker and the test advancing time, so tests never sleep.
package clock
