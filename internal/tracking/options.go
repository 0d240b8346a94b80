// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"time"

	"github.com/relabs-tech/geotrack/internal/heading"
	"github.com/relabs-tech/geotrack/internal/location"
)

// Options configure a Session.
type Options struct {
	EnableHighAccuracy bool
	DistanceIntervalM  float64       // minimum movement between pushed fixes
	TimeInterval       time.Duration // minimum time between pushed fixes
	// MinAccuracyM turns accepted fixes coarser than this into rejections
	// while tracking.
	MinAccuracyM   float64
	HeadingSamples int

	InitialFixAttempts int
	InitialFixDelay    time.Duration // wait after a failed attempt
	InitialFixMaxAge   time.Duration // oldest cached fix accepted at start
	InitialFixTimeout  time.Duration // bound on a single attempt

	MovingSpeedMps float64

	Thresholds location.Thresholds
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		EnableHighAccuracy: true,
		DistanceIntervalM:  1,
		TimeInterval:       500 * time.Millisecond,
		MinAccuracyM:       30,
		HeadingSamples:     heading.DefaultSamples,
		InitialFixAttempts: 10,
		InitialFixDelay:    1500 * time.Millisecond,
		InitialFixMaxAge:   5 * time.Second,
		InitialFixTimeout:  10 * time.Second,
		MovingSpeedMps:     0.5,
		Thresholds:         location.DefaultThresholds(),
	}
}

// withDefaults fills zero counts and limits. Durations other than the
// attempt timeout are taken as given so tests can run acquisition without
// delays.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinAccuracyM <= 0 {
		o.MinAccuracyM = d.MinAccuracyM
	}
	if o.HeadingSamples <= 0 {
		o.HeadingSamples = d.HeadingSamples
	}
	if o.InitialFixAttempts <= 0 {
		o.InitialFixAttempts = d.InitialFixAttempts
	}
	if o.InitialFixTimeout <= 0 {
		o.InitialFixTimeout = d.InitialFixTimeout
	}
	if o.MovingSpeedMps <= 0 {
		o.MovingSpeedMps = d.MovingSpeedMps
	}
	if o.Thresholds == (location.Thresholds{}) {
		o.Thresholds = d.Thresholds
	}
	return o
}
