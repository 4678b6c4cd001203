// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package clock abstracts the time operations used by the reconnect loop,
// the keepalive ticker and the session creation timer.
//
// # Key Types
//
//   - Clock: Interface over Now, AfterFunc and NewTicker
//   - Timer: Handle returned by AfterFunc, supports Stop
//   - Ticker: Periodic tick source with a buffered channel
//   - FakeClock: Deterministic clock advanced manually in tests
//
// # Usage
//
// Production code takes a Clock and is given Real():
//
//	mgr := conn.NewManager(url, conn.WithClock(clock.Real()))
//
// Tests use a fake clock and advance it explicitly:
//
//	fc := clock.Fake(time.Unix(0, 0))
//	fc.AfterFunc(30*time.Second, fire)
//	fc.Advance(30 * time.Second) // fire runs before Advance returns
package clock

import "time"

// Clock is the subset of the time package this module depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f in its own goroutine (real) or synchronously
	// during Advance (fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a ticker firing every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the call. It reports false if the call already ran or the
// timer was already stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Ticker delivers ticks on C. C has capacity 1; late ticks are dropped.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() {
	if t != nil && t.stop != nil {
		t.stop()
	}
}

// =============================================================================
// REAL CLOCK
// =============================================================================

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
