// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the subset of the time package hopper depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker delivers ticks every d on the returned Ticker's C.
	// Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Since returns the time elapsed since start according to c.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}

// Ticker delivers periodic ticks on C, which has capacity 1. Ticks
// are dropped while the consumer is behind.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stop() }
