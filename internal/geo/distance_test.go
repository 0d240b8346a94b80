// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.Zero(t, Distance(39.9042, 116.4074, 39.9042, 116.4074))

	// one degree of latitude on a 6371 km sphere
	assert.InDelta(t, 111194.9, Distance(40, -73.9, 41, -73.9), 0.5)

	// Beijing to Shanghai is roughly 1067 km
	assert.InDelta(t, 1067000, Distance(39.9042, 116.4074, 31.2304, 121.4737), 5000)
}

func TestDistanceSymmetric(t *testing.T) {
	a := Distance(52.52, 13.405, 48.8566, 2.3522)
	b := Distance(48.8566, 2.3522, 52.52, 13.405)
	assert.InDelta(t, a, b, 1e-6)
}

func TestPointDistance(t *testing.T) {
	p := orb.Point{-73.9, 40}
	q := orb.Point{-73.9, 41}
	assert.InDelta(t, Distance(40, -73.9, 41, -73.9), PointDistance(p, q), 1e-9)
}
