// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"time"

	"github.com/paulmach/orb"
)

// Strength is the coarse signal-quality tier shown to map consumers.
type Strength string

const (
	StrengthExcellent Strength = "excellent"
	StrengthGood      Strength = "good"
	StrengthPoor      Strength = "poor"
	StrengthLost      Strength = "lost"
)

// Snapshot is the published location signal. It is a value: every update
// produces a new Snapshot, and published ones are never modified.
type Snapshot struct {
	Latitude        float64   `json:"lat"`
	Longitude       float64   `json:"lon"`
	Heading         float64   `json:"heading"`          // raw, degrees
	SmoothedHeading float64   `json:"smoothed_heading"` // [0, 360)
	Accuracy        *float64  `json:"accuracy_m,omitempty"`
	Speed           *float64  `json:"speed_mps,omitempty"`
	Timestamp       time.Time `json:"time"`
	IsMoving        bool      `json:"is_moving"`
	IsValid         bool      `json:"is_valid"`
	SignalStrength  Strength  `json:"signal_strength"`
}

// Degraded returns a copy of s carrying only a new signal tier and
// timestamp. Position and heading are left untouched.
func (s Snapshot) Degraded(strength Strength, at time.Time) Snapshot {
	s.SignalStrength = strength
	s.Timestamp = at
	return s
}

// WithHeading returns a copy of s with new raw and smoothed heading.
func (s Snapshot) WithHeading(raw, smoothed float64) Snapshot {
	s.Heading = raw
	s.SmoothedHeading = smoothed
	return s
}

// Point returns the position as an orb point (lon, lat).
func (s Snapshot) Point() orb.Point {
	return orb.Point{s.Longitude, s.Latitude}
}
