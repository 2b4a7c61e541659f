// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for hopper's retry loops, latency
// measurements, and periodic reports.
//
// Components hold a Clock instead of calling the time package, so
// tests can drive them with a FakeClock:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go connect(ctx, c)
//	c.WaitForTimers(1)         // connect is now sleeping
//	c.Advance(2 * time.Second) // and wakes deterministically
//
// WaitForTimers closes the race between a goroutine registering a
// sleep and the test advancing past it.
package clock
