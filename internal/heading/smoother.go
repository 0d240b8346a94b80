// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package heading smooths compass and course readings with a bounded
// circular mean, so that 359° and 1° average to 0° instead of 180°.
package heading

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultSamples is the default smoothing window.
const DefaultSamples = 5

// Smoother keeps the last N headings (in radians) and their circular mean.
// It is not safe for concurrent use.
type Smoother struct {
	window  int
	samples []float64
	value   float64
}

// NewSmoother returns a smoother over the last window samples. A window
// below 1 falls back to DefaultSamples.
func NewSmoother(window int) *Smoother {
	if window < 1 {
		window = DefaultSamples
	}
	return &Smoother{window: window, samples: make([]float64, 0, window)}
}

// Smooth pushes raw (degrees) and returns the smoothed heading in [0, 360).
// A NaN or infinite reading is dropped and the previous value returned.
func (s *Smoother) Smooth(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return s.value
	}
	if len(s.samples) == s.window {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:s.window-1]
	}
	s.samples = append(s.samples, Normalize(raw)*math.Pi/180)

	mean := stat.CircularMean(s.samples, nil)
	s.value = Normalize(mean * 180 / math.Pi)
	return s.value
}

// Value is the current smoothed heading, 0 before any sample.
func (s *Smoother) Value() float64 { return s.value }

// Len is the number of samples in the window.
func (s *Smoother) Len() int { return len(s.samples) }

// Window is the configured window size.
func (s *Smoother) Window() int { return s.window }

// Reset drops all samples.
func (s *Smoother) Reset() {
	s.samples = s.samples[:0]
	s.value = 0
}

// Normalize wraps deg into [0, 360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -1e-15 + 360 rounds to 360
	if deg >= 360 {
		deg = 0
	}
	return deg
}
