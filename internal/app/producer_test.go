// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/imu"
	"github.com/relabs-tech/geotrack/internal/location"
	"github.com/relabs-tech/geotrack/internal/sim"
)

type recordingPublisher struct {
	mu     sync.Mutex
	fixes  []gps.Fix
	imu    []imu.IMURaw
	topics []string
	err    error
}

func (p *recordingPublisher) PublishFix(topic string, fix gps.Fix) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.fixes = append(p.fixes, fix)
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) PublishIMU(topic string, raw imu.IMURaw) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imu = append(p.imu, raw)
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) counts() (fixes, samples int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fixes), len(p.imu)
}

type feedSource struct{ *gps.Feed }

func (f feedSource) WatchFix(opts gps.WatchOptions, onFix func(gps.Fix), onError func(error)) (gps.Subscription, error) {
	return f.Watch(opts, onFix, onError)
}

func TestForwardFixes(t *testing.T) {
	feed := gps.NewFeed()
	pub := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- forwardFixes(ctx, feedSource{feed}, pub, "geotrack/gps/fix") }()

	require.Eventually(t, func() bool { return feed.Watchers() == 1 }, time.Second, 5*time.Millisecond)
	feed.Push(gps.Fix{Latitude: 39.9, Longitude: 116.4, Timestamp: time.Now()})
	require.Eventually(t, func() bool { n, _ := pub.counts(); return n == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"geotrack/gps/fix"}, pub.topics)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, feed.Watchers(), "watch is cancelled on return")
}

func TestForwardFixesKeepsGoingOnPublishError(t *testing.T) {
	feed := gps.NewFeed()
	pub := &recordingPublisher{err: errors.New("broker gone")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- forwardFixes(ctx, feedSource{feed}, pub, "t") }()
	require.Eventually(t, func() bool { return feed.Watchers() == 1 }, time.Second, 5*time.Millisecond)

	feed.Push(gps.Fix{Latitude: 1, Longitude: 1, Timestamp: time.Now()})
	select {
	case err := <-done:
		t.Fatalf("forwarding stopped: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestForwardFixesStreamFailure(t *testing.T) {
	feed := gps.NewFeed()
	done := make(chan error, 1)
	go func() { done <- forwardFixes(context.Background(), feedSource{feed}, &recordingPublisher{}, "t") }()
	require.Eventually(t, func() bool { return feed.Watchers() == 1 }, time.Second, 5*time.Millisecond)

	feed.Fail(errors.New("serial unplugged"))
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "serial unplugged")
	case <-time.After(time.Second):
		t.Fatal("stream failure not reported")
	}
}

func TestSimulate(t *testing.T) {
	track := sim.NewTrack(sim.Config{CenterLat: 39.9042, CenterLon: 116.4074, RadiusM: 100, SpeedMps: 1.4, AccuracyM: 8, Seed: 7}, time.Now())
	pub := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- simulate(ctx, track, pub, simTopics{fix: "fix", imu: "imu"}, 8*time.Millisecond) }()

	require.Eventually(t, func() bool { n, _ := pub.counts(); return n >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	fixes, samples := pub.counts()
	assert.GreaterOrEqual(t, samples, imuPerFix*fixes)
	assert.InDelta(t, 39.9042, pub.fixes[0].Latitude, 0.01)
}

func TestFormatLines(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 30, 5, 0, time.UTC)

	line := formatFix(gps.Fix{Latitude: 39.9042, Longitude: 116.4074, Accuracy: gps.Float(8), Timestamp: at})
	assert.True(t, strings.HasPrefix(line, "[GPS ]"))
	assert.Contains(t, line, "time=08:30:05")
	assert.Contains(t, line, "lat=39.904200 lon=116.407400")
	assert.Contains(t, line, "acc=8.0m speed=- course=-")

	line = formatSnapshot(location.Snapshot{Latitude: 1, Longitude: 2, Heading: 350, SmoothedHeading: 355.5, SignalStrength: location.StrengthPoor, IsMoving: true, Timestamp: at})
	assert.True(t, strings.HasPrefix(line, "[LOC ]"))
	assert.Contains(t, line, "hdg=350.0°")
	assert.Contains(t, line, "smooth=355.5°")
	assert.Contains(t, line, "acc=-")
	assert.Contains(t, line, "signal=poor")
	assert.Contains(t, line, "moving=true")
}
