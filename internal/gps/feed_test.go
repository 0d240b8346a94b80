// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestFeed() (*Feed, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := NewFeed()
	f.now = clk.Now
	return f, clk
}

type collected struct {
	mu   sync.Mutex
	fixes []Fix
	errs  []error
}

func (c *collected) onFix(f Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixes = append(c.fixes, f)
}

func (c *collected) onErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *collected) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fixes)
}

func TestFeedPushStampsZeroTimestamp(t *testing.T) {
	f, clk := newTestFeed()
	f.Push(Fix{Latitude: 1, Longitude: 2})

	fix, received, ok := f.Latest()
	require.True(t, ok)
	assert.Equal(t, clk.Now(), fix.Timestamp)
	assert.Equal(t, clk.Now(), received)
}

func TestFeedWatchThrottle(t *testing.T) {
	f, clk := newTestFeed()
	var got collected
	sub, err := f.Watch(WatchOptions{MinInterval: 500 * time.Millisecond, MinDistanceM: 1}, got.onFix, got.onErr)
	require.NoError(t, err)
	defer sub.Cancel()

	f.Push(Fix{Latitude: 40, Longitude: -73.9})
	assert.Equal(t, 1, got.count(), "first fix always passes")

	clk.Advance(100 * time.Millisecond)
	f.Push(Fix{Latitude: 40.001, Longitude: -73.9})
	assert.Equal(t, 1, got.count(), "too soon")

	clk.Advance(time.Second)
	f.Push(Fix{Latitude: 40.0000001, Longitude: -73.9})
	assert.Equal(t, 1, got.count(), "moved less than a metre from last delivered")

	f.Push(Fix{Latitude: 40.001, Longitude: -73.9})
	assert.Equal(t, 2, got.count())
}

func TestFeedWatchCancelIdempotent(t *testing.T) {
	f, _ := newTestFeed()
	var got collected
	sub, err := f.Watch(WatchOptions{}, got.onFix, got.onErr)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Watchers())

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, f.Watchers())

	f.Push(Fix{Latitude: 1, Longitude: 1})
	assert.Equal(t, 0, got.count())
}

func TestFeedCurrentFixMaxAge(t *testing.T) {
	f, clk := newTestFeed()
	f.Push(Fix{Latitude: 39.9042, Longitude: 116.4074})

	fix, err := f.CurrentFix(context.Background(), FixOptions{MaxAge: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 39.9042, fix.Latitude)

	// stale: waits for the next push
	clk.Advance(10 * time.Second)
	done := make(chan Fix, 1)
	go func() {
		fix, err := f.CurrentFix(context.Background(), FixOptions{MaxAge: 5 * time.Second})
		if err == nil {
			done <- fix
		}
	}()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.waiters) == 1
	}, time.Second, time.Millisecond)

	f.Push(Fix{Latitude: 31.2304, Longitude: 121.4737})
	select {
	case fix := <-done:
		assert.Equal(t, 31.2304, fix.Latitude)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestFeedCurrentFixContext(t *testing.T) {
	f, _ := newTestFeed()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.CurrentFix(ctx, FixOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	f.mu.Lock()
	assert.Empty(t, f.waiters)
	f.mu.Unlock()
}

func TestFeedFailAndClose(t *testing.T) {
	f, _ := newTestFeed()
	var got collected
	_, err := f.Watch(WatchOptions{}, got.onFix, got.onErr)
	require.NoError(t, err)

	boom := errors.New("boom")
	f.Fail(boom)
	require.Len(t, got.errs, 1)
	assert.ErrorIs(t, got.errs[0], boom)
	assert.Equal(t, 0, f.Watchers())

	f.Close()
	f.Close()
	_, err = f.CurrentFix(context.Background(), FixOptions{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.Watch(WatchOptions{}, got.onFix, got.onErr)
	assert.ErrorIs(t, err, ErrClosed)
}
