// Copyright 2026 The Hopper Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only when Advance is called.
// Pending After and ticker deadlines fire during Advance in
// deadline order. It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	channel  chan time.Time
	// interval is zero for one-shot timers.
	interval time.Duration
	stopped  bool
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a one-shot timer. d <= 0 fires immediately without
// registering.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.addLocked(&fakeTimer{deadline: c.current.Add(d), channel: channel})
	return channel
}

// NewTicker registers a repeating timer.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{deadline: c.current.Add(d), channel: make(chan time.Time, 1), interval: d}
	c.addLocked(timer)
	return &Ticker{
		C: timer.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			timer.stopped = true
		},
	}
}

func (c *FakeClock) addLocked(timer *fakeTimer) {
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
}

// Advance moves the clock forward by d and fires every timer whose
// deadline is at or before the new time. A ticker spanning several
// intervals fires once per interval; ticks that find the channel full
// are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current

	var due []firing
	var remaining []*fakeTimer
	for _, timer := range c.pending {
		if timer.stopped {
			continue
		}
		for !timer.deadline.After(now) {
			due = append(due, firing{deadline: timer.deadline, channel: timer.channel})
			if timer.interval == 0 {
				break
			}
			timer.deadline = timer.deadline.Add(timer.interval)
		}
		if timer.deadline.After(now) {
			remaining = append(remaining, timer)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, event := range due {
		select {
		case event.channel <- now:
		default:
		}
	}
}

type firing struct {
	deadline time.Time
	channel  chan time.Time
}

// WaitForTimers blocks until at least n timers are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of registered timers that have not
// fired or been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, timer := range c.pending {
		if !timer.stopped {
			count++
		}
	}
	return count
}
