// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestFake_AfterFuncFiresAtDeadline(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(3*time.Second, func() { fired++ })

	c.Advance(2 * time.Second)
	assert.Equal(t, 0, fired)

	c.Advance(time.Second)
	assert.Equal(t, 1, fired)

	c.Advance(10 * time.Second)
	assert.Equal(t, 1, fired, "one-shot timer fired twice")
	assert.Equal(t, epoch.Add(13*time.Second), c.Now())
}

func TestFake_StopPreventsFire(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second Stop should report false")
	c.Advance(time.Minute)
	assert.False(t, fired)
	assert.Equal(t, 0, c.PendingCount())
}

func TestFake_StopAfterFire(t *testing.T) {
	c := Fake(epoch)
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestFake_DeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []string
	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b2") })

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "b2", "c"}, order)
}

func TestFake_CallbackSeesDeadlineTime(t *testing.T) {
	c := Fake(epoch)
	var seen time.Time
	c.AfterFunc(2*time.Second, func() { seen = c.Now() })
	c.Advance(5 * time.Second)
	assert.Equal(t, epoch.Add(2*time.Second), seen)
}

func TestFake_ChainedTimersWithinWindow(t *testing.T) {
	c := Fake(epoch)
	count := 0
	var arm func()
	arm = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, arm)
		}
	}
	c.AfterFunc(time.Second, arm)

	c.Advance(10 * time.Second)
	assert.Equal(t, 3, count)
}

func TestFake_ZeroDurationRunsImmediately(t *testing.T) {
	c := Fake(epoch)
	ran := false
	timer := c.AfterFunc(0, func() { ran = true })
	assert.True(t, ran)
	assert.False(t, timer.Stop())
}

func TestFake_Ticker(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)

	c.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("expected a tick")
	}

	// Buffer holds one tick; the rest are dropped.
	c.Advance(5 * time.Second)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("unexpected second buffered tick")
	default:
	}

	ticker.Stop()
	assert.Equal(t, 0, c.PendingCount())
}

func TestFake_WaitForTimers(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		c.AfterFunc(time.Second, func() {})
		close(done)
	}()
	c.WaitForTimers(1)
	<-done
	assert.Equal(t, 1, c.PendingCount())
}

func TestReal_AfterFunc(t *testing.T) {
	c := Real()
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real AfterFunc did not fire")
	}
}
