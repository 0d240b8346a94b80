// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"context"
	"sync"
	"time"

	"github.com/relabs-tech/geotrack/internal/geo"
)

// Feed fans decoded fixes out to watchers and answers one-shot requests
// from the most recent fix. It is shared by the serial and MQTT providers.
type Feed struct {
	mu       sync.Mutex
	latest   Fix
	have     bool
	received time.Time
	closed   bool
	nextID   int
	watchers map[int]*watcher
	waiters  []chan Fix

	now func() time.Time
}

type watcher struct {
	opts      WatchOptions
	onFix     func(Fix)
	onError   func(error)
	last      Fix
	delivered bool
	lastAt    time.Time
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		watchers: make(map[int]*watcher),
		now:      time.Now,
	}
}

// Push records fix as the latest one and delivers it to waiters and to
// every watcher whose throttle allows it.
func (f *Feed) Push(fix Fix) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	now := f.now()
	if fix.Timestamp.IsZero() {
		fix.Timestamp = now
	}
	f.latest = fix
	f.have = true
	f.received = now

	waiters := f.waiters
	f.waiters = nil

	var deliver []func(Fix)
	for _, w := range f.watchers {
		if !w.allow(fix, now) {
			continue
		}
		w.last = fix
		w.lastAt = now
		w.delivered = true
		deliver = append(deliver, w.onFix)
	}
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- fix
	}
	for _, fn := range deliver {
		fn(fix)
	}
}

// allow reports whether both the time and distance throttles are met.
// The first fix always passes.
func (w *watcher) allow(fix Fix, now time.Time) bool {
	if !w.delivered {
		return true
	}
	if now.Sub(w.lastAt) < w.opts.MinInterval {
		return false
	}
	if w.opts.MinDistanceM > 0 {
		d := geo.Distance(w.last.Latitude, w.last.Longitude, fix.Latitude, fix.Longitude)
		if d < w.opts.MinDistanceM {
			return false
		}
	}
	return true
}

// Latest returns the most recent fix and when it was received.
func (f *Feed) Latest() (Fix, time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.received, f.have
}

// CurrentFix returns the latest fix if it is younger than opts.MaxAge,
// otherwise it waits for the next pushed fix or until ctx is done.
func (f *Feed) CurrentFix(ctx context.Context, opts FixOptions) (Fix, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return Fix{}, ErrClosed
	}
	if f.have && opts.MaxAge > 0 && f.now().Sub(f.received) <= opts.MaxAge {
		fix := f.latest
		f.mu.Unlock()
		return fix, nil
	}
	ch := make(chan Fix, 1)
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()

	select {
	case fix, ok := <-ch:
		if !ok {
			return Fix{}, ErrClosed
		}
		return fix, nil
	case <-ctx.Done():
		f.dropWaiter(ch)
		return Fix{}, ctx.Err()
	}
}

func (f *Feed) dropWaiter(ch chan Fix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// Watch registers a throttled watcher. The returned subscription is safe
// to cancel more than once.
func (f *Feed) Watch(opts WatchOptions, onFix func(Fix), onError func(error)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	id := f.nextID
	f.nextID++
	f.watchers[id] = &watcher{opts: opts, onFix: onFix, onError: onError}

	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}), nil
}

// Watchers returns the number of active watchers.
func (f *Feed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// Fail reports err to every watcher and drops them. Pending CurrentFix
// calls keep waiting.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	watchers := f.watchers
	f.watchers = make(map[int]*watcher)
	f.mu.Unlock()

	for _, w := range watchers {
		if w.onError != nil {
			w.onError(err)
		}
	}
}

// Close stops the feed. Waiters get ErrClosed; watchers are dropped
// without an error callback.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.waiters {
		close(ch)
	}
	f.waiters = nil
	f.watchers = make(map[int]*watcher)
}
