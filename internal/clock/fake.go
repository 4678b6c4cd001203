// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when Advance is called.
// AfterFunc callbacks run synchronously inside Advance in deadline order,
// so a callback must not call Advance itself.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
	changed *sync.Cond
	seq     uint64
}

type waiter struct {
	deadline time.Time
	seq      uint64
	fn       func()
	ch       chan time.Time
	interval time.Duration
	done     bool
}

// Fake returns a FakeClock set to start.
func Fake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the clock has advanced by d. A
// non-positive d runs f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}
	w := c.add(&waiter{fn: f}, d)
	return &Timer{stop: func() bool { return c.cancel(w) }}
}

// NewTicker registers a periodic waiter.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	ch := make(chan time.Time, 1)
	w := c.add(&waiter{ch: ch, interval: d}, d)
	return &Ticker{C: ch, stop: func() { c.cancel(w) }}
}

func (c *FakeClock) add(w *waiter, d time.Duration) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	w.deadline = c.now.Add(d)
	w.seq = c.seq
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()
	return w
}

func (c *FakeClock) cancel(w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w.done {
		return false
	}
	w.done = true
	c.removeLocked(w)
	c.changed.Broadcast()
	return true
}

func (c *FakeClock) removeLocked(w *waiter) {
	for i, other := range c.waiters {
		if other == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d and fires every waiter whose deadline
// is reached, earliest first. Waiters registered by a callback fire in the
// same call if their deadline falls within the window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		w := c.nextDue(target)
		if w == nil {
			break
		}
		if w.fn != nil {
			w.fn()
		} else {
			select {
			case w.ch <- w.deadline:
			default:
			}
		}
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// nextDue pops the earliest waiter due at or before target, moving the clock
// to its deadline. Tickers are rescheduled rather than removed.
func (c *FakeClock) nextDue(target time.Time) *waiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.waiters, func(i, j int) bool {
		a, b := c.waiters[i], c.waiters[j]
		if !a.deadline.Equal(b.deadline) {
			return a.deadline.Before(b.deadline)
		}
		return a.seq < b.seq
	})
	if len(c.waiters) == 0 || c.waiters[0].deadline.After(target) {
		return nil
	}

	w := c.waiters[0]
	if w.deadline.After(c.now) {
		c.now = w.deadline
	}
	if w.interval > 0 {
		fired := *w
		w.deadline = w.deadline.Add(w.interval)
		return &fired
	}
	w.done = true
	c.waiters = c.waiters[1:]
	c.changed.Broadcast()
	return w
}

// WaitForTimers blocks until at least n waiters are pending. It closes the
// race between a goroutine arming a timer and the test advancing time.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of armed waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
