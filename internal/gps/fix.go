// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "time"

// Source identifies where a fix came from.
type Source string

const (
	SourceFix     Source = "gps-fix"
	SourceCompass Source = "compass-heading"
)

// knotsToMps converts speed over ground from knots to metres per second.
const knotsToMps = 0.514444

// Fix represents a single raw position fix suitable for JSON and MQTT.
// Accuracy, Heading and Speed are optional; nil means the receiver did not
// report them.
type Fix struct {
	Latitude  float64   `json:"lat"`                   // decimal degrees
	Longitude float64   `json:"lon"`                   // decimal degrees
	Accuracy  *float64  `json:"accuracy_m,omitempty"`  // horizontal, metres
	Heading   *float64  `json:"heading_deg,omitempty"` // course or compass, degrees
	Speed     *float64  `json:"speed_mps,omitempty"`   // speed over ground, m/s
	Timestamp time.Time `json:"time"`
	Source    Source    `json:"source"`
}

// Float returns a pointer to v, for filling the optional Fix fields.
func Float(v float64) *float64 {
	return &v
}
