// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geotrack/internal/imu"
)

const g = 16384 // 1 g at +-2 g range

func TestComputePoseFromAccelLevel(t *testing.T) {
	p := ComputePoseFromAccel(0, 0, g)
	assert.InDelta(t, 0, p.Roll, 1e-9)
	assert.InDelta(t, 0, p.Pitch, 1e-9)
	assert.Zero(t, p.Yaw)
}

func TestComputePoseFromAccelTilted(t *testing.T) {
	p := ComputePoseFromAccel(0, g, g)
	assert.InDelta(t, 45, p.Roll, 1e-9)

	p = ComputePoseFromAccel(-g, 0, g)
	assert.InDelta(t, 45, p.Pitch, 1e-9)
}

func TestCompassHeadingLevel(t *testing.T) {
	cases := []struct {
		name   string
		mx, my int16
		want   float64
	}{
		{"north", 300, 0, 0},
		{"east", 0, -300, 90},
		{"south", -300, 0, 180},
		{"west", 0, 300, 270},
		{"north-east", 300, -300, 45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, ok := CompassHeading(imu.IMURaw{Az: g, Mx: tc.mx, My: tc.my, Mz: 400})
			require.True(t, ok)
			assert.InDelta(t, tc.want, h, 1e-6)
			assert.GreaterOrEqual(t, h, 0.0)
			assert.Less(t, h, 360.0)
		})
	}
}

func TestCompassHeadingTiltCompensated(t *testing.T) {
	// board pitched nose-up 30° while facing north: the horizontal field is
	// (300, 0, 400) in the world frame, rotated into the body frame
	pitch := 30 * math.Pi / 180
	sp, cp := math.Sincos(pitch)
	mx := 300*cp - 400*sp
	mz := 300*sp + 400*cp
	raw := imu.IMURaw{
		Ax: int16(-g * sp),
		Az: int16(g * cp),
		Mx: int16(math.Round(mx)),
		Mz: int16(math.Round(mz)),
	}

	h, ok := CompassHeading(raw)
	require.True(t, ok)
	gap := math.Min(h, 360-h)
	assert.Less(t, gap, 0.5, "heading %.3f should stay north", h)
}

func TestCompassHeadingWithoutMag(t *testing.T) {
	_, ok := CompassHeading(imu.IMURaw{Az: g})
	assert.False(t, ok)
}

func TestCompassHeadingAssumesLevelWithoutAccel(t *testing.T) {
	h, ok := CompassHeading(imu.IMURaw{Mx: 0, My: -200})
	require.True(t, ok)
	assert.InDelta(t, 90, h, 1e-6)
}

func TestPoseFromIMU(t *testing.T) {
	p := PoseFromIMU(imu.IMURaw{Az: g, Mx: 0, My: 300})
	assert.InDelta(t, 270, p.Yaw, 1e-6)
	assert.InDelta(t, 0, p.Roll, 1e-9)

	p = PoseFromIMU(imu.IMURaw{Az: g})
	assert.Zero(t, p.Yaw)
}
