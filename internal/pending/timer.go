// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pending guards requests the orchestrator may never answer.
//
// # Key Types
//
//   - Timer: One cancellable deadline at a time, identified by an attempt
//     number so a late expiry of a superseded attempt is ignored
//
// # Usage
//
//	t := pending.NewTimer(clock.Real(), 30*time.Second, func(attempt uint64) {
//	    events <- creationTimedOut{attempt}
//	})
//	attempt := t.Start()
//	...
//	t.Cancel() // session_created or error arrived
package pending

import (
	"sync"
	"time"

	"github.com/jeranaias/agentdesk/internal/clock"
)

// DefaultTimeout bounds a session creation request.
const DefaultTimeout = 30 * time.Second

// Timer runs at most one deadline. Starting a new attempt cancels the
// previous one.
type Timer struct {
	clock    clock.Clock
	timeout  time.Duration
	onExpire func(attempt uint64)

	mu      sync.Mutex
	seq     uint64
	current uint64 // 0 when nothing is pending
	timer   *clock.Timer
}

// NewTimer creates a Timer. onExpire is called from the clock's goroutine
// with the expired attempt number. A non-positive timeout uses
// DefaultTimeout.
func NewTimer(c clock.Clock, timeout time.Duration, onExpire func(attempt uint64)) *Timer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Timer{clock: c, timeout: timeout, onExpire: onExpire}
}

// Start arms a new attempt and returns its number. Numbers start at 1 and
// never repeat.
func (t *Timer) Start() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.seq++
	attempt := t.seq
	t.current = attempt
	t.timer = t.clock.AfterFunc(t.timeout, func() { t.expire(attempt) })
	return attempt
}

// Cancel stops the pending attempt. It reports whether one was pending.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopLocked()
}

// Pending returns the pending attempt number, if any.
func (t *Timer) Pending() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.current != 0
}

// Timeout returns the configured deadline.
func (t *Timer) Timeout() time.Duration {
	return t.timeout
}

func (t *Timer) stopLocked() bool {
	if t.current == 0 {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	t.current = 0
	return true
}

func (t *Timer) expire(attempt uint64) {
	t.mu.Lock()
	if t.current != attempt {
		t.mu.Unlock()
		return
	}
	t.current = 0
	t.timer = nil
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire(attempt)
	}
}
