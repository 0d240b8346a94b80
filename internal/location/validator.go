// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/geotrack/internal/geo"
)

// Reason names the rule that rejected a candidate.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonZero           Reason = "zero-coordinate"
	ReasonNonFinite      Reason = "non-finite"
	ReasonOutOfRange     Reason = "out-of-range"
	ReasonNearOrigin     Reason = "near-origin"
	ReasonAccuracy       Reason = "accuracy"
	ReasonTeleport       Reason = "teleport"
	ReasonRoundJump      Reason = "round-jump"
	ReasonStuck          Reason = "stuck"
	ReasonOverPrecise    Reason = "over-precise"
	ReasonMovingJump     Reason = "moving-jump"
	ReasonCoarseAccuracy Reason = "coarse-accuracy"
)

const (
	nearOriginNorm = 0.1
	roundTolerance = 0.001
	stuckTolerance = 1e-6
	stuckRun       = 3
	teleportMinDt  = 1.0
	teleportMaxDt  = 60.0
)

// Candidate is the part of a raw fix the validator looks at.
type Candidate struct {
	Lat       float64
	Lng       float64
	Accuracy  *float64
	Timestamp time.Time
}

// Verdict is the outcome of validating one candidate.
type Verdict struct {
	Accepted bool
	Reason   Reason
	// Distance from the last accepted fix in metres, 0 without one.
	Distance float64
}

func accept(distance float64) Verdict { return Verdict{Accepted: true, Distance: distance} }

func reject(r Reason, distance float64) Verdict { return Verdict{Reason: r, Distance: distance} }

// Reject builds a rejection verdict for callers applying extra filters.
func Reject(r Reason) Verdict { return reject(r, 0) }

// Thresholds are the tunable limits of the heuristic rules.
type Thresholds struct {
	MaxSpeedMps     float64 // implied speed above which a jump is a teleport
	SuspiciousJumpM float64 // jump while moving rejected once
	RoundJumpM      float64 // jump to a near-integer coordinate
	MaxAccuracyM    float64 // catastrophic accuracy
}

// DefaultThresholds returns the stock limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSpeedMps:     50,
		SuspiciousJumpM: 1000,
		RoundJumpM:      10000,
		MaxAccuracyM:    1000,
	}
}

// Validator applies the ordered hard-reject rules.
type Validator struct {
	th Thresholds
}

// NewValidator returns a validator with th.
func NewValidator(th Thresholds) *Validator {
	return &Validator{th: th}
}

// Thresholds returns the limits in use.
func (v *Validator) Thresholds() Thresholds { return v.th }

// Validate checks c and records the verdict in st.
func (v *Validator) Validate(c Candidate, st *ValidationState) Verdict {
	verdict := v.Check(c, st)
	st.Record(c, verdict)
	return verdict
}

// Check evaluates c against st without modifying it. Rules run in a fixed
// order and the first match wins.
func (v *Validator) Check(c Candidate, st *ValidationState) Verdict {
	lat, lng := c.Lat, c.Lng

	if lat == 0 || lng == 0 {
		return reject(ReasonZero, 0)
	}
	if !finite(lat) || !finite(lng) {
		return reject(ReasonNonFinite, 0)
	}
	if math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return reject(ReasonOutOfRange, 0)
	}
	if math.Hypot(lat, lng) < nearOriginNorm {
		return reject(ReasonNearOrigin, 0)
	}
	if c.Accuracy != nil && *c.Accuracy > v.th.MaxAccuracyM {
		return reject(ReasonAccuracy, 0)
	}

	last, haveLast := st.Last()
	var distance float64
	if haveLast {
		distance = geo.Distance(last.Latitude, last.Longitude, lat, lng)
		dt := c.Timestamp.Sub(last.Timestamp).Seconds()
		if dt > teleportMinDt && dt < teleportMaxDt && distance > v.th.MaxSpeedMps*dt {
			return reject(ReasonTeleport, distance)
		}
		if distance > v.th.RoundJumpM && (nearInteger(lat) || nearInteger(lng)) {
			return reject(ReasonRoundJump, distance)
		}
	}

	if stuck(st.history, lat, lng) {
		return reject(ReasonStuck, distance)
	}
	if overPrecise(lat) || overPrecise(lng) {
		return reject(ReasonOverPrecise, distance)
	}
	if haveLast && last.IsMoving && distance > v.th.SuspiciousJumpM && st.rejections == 0 {
		return reject(ReasonMovingJump, distance)
	}
	return accept(distance)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nearInteger(v float64) bool {
	return math.Abs(v-math.Round(v)) < roundTolerance
}

func same(a, b Position) bool {
	return math.Abs(a.Lat-b.Lat) < stuckTolerance && math.Abs(a.Lng-b.Lng) < stuckTolerance
}

// stuck reports a provider echoing one fix: the last stuckRun history
// entries agree with each other and with the candidate.
func stuck(history []Position, lat, lng float64) bool {
	if len(history) < stuckRun {
		return false
	}
	tail := history[len(history)-stuckRun:]
	for _, p := range tail[1:] {
		if !same(tail[0], p) {
			return false
		}
	}
	return same(tail[0], Position{Lat: lat, Lng: lng})
}

// overPrecise flags literals such as 12.0000001 whose shortest decimal
// rendering has six zero fractional digits, typical of synthetic values.
func overPrecise(v float64) bool {
	return strings.Contains(strconv.FormatFloat(v, 'f', -1, 64), ".000000")
}
