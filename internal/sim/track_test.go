// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geotrack/internal/geo"
	"github.com/relabs-tech/geotrack/internal/location"
	"github.com/relabs-tech/geotrack/internal/orientation"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func walk() Config {
	return Config{
		CenterLat: 39.9042,
		CenterLon: 116.4074,
		RadiusM:   100,
		SpeedMps:  1.5,
		NoiseM:    2,
		AccuracyM: 6,
		Seed:      42,
	}
}

func TestPositionStaysOnCircle(t *testing.T) {
	tr := NewTrack(walk(), t0)

	lat, lon, course := tr.Position(t0)
	assert.InDelta(t, 100, geo.Distance(39.9042, 116.4074, lat, lon), 0.5)
	assert.Greater(t, lat, 39.9042, "starts due north")
	assert.InDelta(t, 90, course, 1e-9)

	// a quarter lap later the walker is due east heading south
	secs := 100 * math.Pi / 2 / 1.5
	quarter := time.Duration(secs * float64(time.Second))
	lat, lon, course = tr.Position(t0.Add(quarter))
	assert.InDelta(t, 100, geo.Distance(39.9042, 116.4074, lat, lon), 0.5)
	assert.InDelta(t, 39.9042, lat, 1e-5)
	assert.Greater(t, lon, 116.4074)
	assert.InDelta(t, 180, course, 0.01)
}

func TestNoisyFixesAreAccepted(t *testing.T) {
	tr := NewTrack(walk(), t0)
	v := location.NewValidator(location.DefaultThresholds())
	st := location.NewValidationState()

	for i := 0; i < 30; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		fix := tr.NextFix(at)
		require.NotNil(t, fix.Accuracy)
		require.NotNil(t, fix.Speed)

		lat, lon, _ := tr.Position(at)
		assert.Less(t, geo.Distance(lat, lon, fix.Latitude, fix.Longitude), 15.0)

		c := location.Candidate{Lat: fix.Latitude, Lng: fix.Longitude, Accuracy: fix.Accuracy, Timestamp: fix.Timestamp}
		verdict := v.Validate(c, st)
		require.True(t, verdict.Accepted, "fix %d rejected: %s", i, verdict.Reason)
		st.SetLast(location.Snapshot{Latitude: fix.Latitude, Longitude: fix.Longitude, Timestamp: at, IsMoving: true, IsValid: true})
	}
}

func TestGarbageEvery(t *testing.T) {
	cfg := walk()
	cfg.GarbageEvery = 4
	tr := NewTrack(cfg, t0)
	v := location.NewValidator(location.DefaultThresholds())

	var reasons []location.Reason
	for i := 1; i <= 12; i++ {
		fix := tr.NextFix(t0.Add(time.Duration(i) * time.Second))
		verdict := v.Check(location.Candidate{Lat: fix.Latitude, Lng: fix.Longitude, Accuracy: fix.Accuracy}, location.NewValidationState())
		if i%4 == 0 {
			require.False(t, verdict.Accepted, "fix %d", i)
			reasons = append(reasons, verdict.Reason)
		} else {
			assert.True(t, verdict.Accepted, "fix %d", i)
		}
	}
	assert.Equal(t, []location.Reason{location.ReasonOutOfRange, location.ReasonAccuracy, location.ReasonZero}, reasons)
}

func TestSeedIsDeterministic(t *testing.T) {
	a, b := NewTrack(walk(), t0), NewTrack(walk(), t0)
	for i := 0; i < 5; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		assert.Equal(t, a.NextFix(at), b.NextFix(at))
	}
}

func TestIMUFollowsCourse(t *testing.T) {
	tr := NewTrack(walk(), t0)
	for _, d := range []time.Duration{0, 20 * time.Second, 70 * time.Second, 150 * time.Second} {
		at := t0.Add(d)
		_, _, course := tr.Position(at)
		h, ok := orientation.CompassHeading(tr.IMU(at))
		require.True(t, ok)
		diff := h - course
		if diff > 180 {
			diff -= 360
		} else if diff < -180 {
			diff += 360
		}
		assert.InDelta(t, 0, diff, 0.5, "at %s", d)
	}
}
