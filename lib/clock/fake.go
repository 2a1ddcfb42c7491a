// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock reading initial. Time moves only when
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a Clock for tests. It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

type fakeTicker struct {
	deadline time.Time
	interval time.Duration
	channel  chan time.Time
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewTicker registers a periodic ticker. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &fakeTicker{
		deadline: c.current.Add(d),
		interval: d,
		channel:  make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, ticker)
	c.changed.Broadcast()

	return &Ticker{
		C: ticker.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.tickers = slices.DeleteFunc(c.tickers, func(candidate *fakeTicker) bool {
				return candidate == ticker
			})
		},
	}
}

// Advance moves the clock forward by d and fires every ticker whose
// deadline is reached, in deadline order. A ticker spanning several
// intervals fires once per interval; ticks that find the channel full
// are dropped, as with time.Ticker.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		due := c.collectDue(target)
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool {
			return due[i].deadline.Before(due[j].deadline)
		})
		for _, tick := range due {
			select {
			case tick.channel <- target:
			default:
			}
		}
	}
}

// collectDue moves every due ticker one interval forward and returns
// snapshots carrying the deadlines that fired.
func (c *FakeClock) collectDue(target time.Time) []fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due []fakeTicker
	for _, ticker := range c.tickers {
		if ticker.deadline.After(target) {
			continue
		}
		due = append(due, *ticker)
		ticker.deadline = ticker.deadline.Add(ticker.interval)
	}
	return due
}

// WaitForTimers blocks until at least n tickers are registered.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.tickers) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of running tickers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}
