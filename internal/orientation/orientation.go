// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation derives attitude and compass heading from raw IMU
// samples.
package orientation

import (
	"math"

	"github.com/relabs-tech/geotrack/internal/heading"
	"github.com/relabs-tech/geotrack/internal/imu"
)

const radToDeg = 180.0 / math.Pi

// Pose is roll, pitch and yaw in degrees. Yaw is the tilt-compensated
// magnetic heading in [0, 360).
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is left at 0.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	roll, pitch := tilt(ax, ay, az)
	return Pose{Roll: roll * radToDeg, Pitch: pitch * radToDeg}
}

func tilt(ax, ay, az float64) (roll, pitch float64) {
	return math.Atan2(ay, az), math.Atan2(-ax, math.Sqrt(ay*ay+az*az))
}

// CompassHeading returns the tilt-compensated magnetic heading of raw in
// degrees, 0 = magnetic north, clockwise. ok is false when the sample has
// no magnetometer reading. Without an accelerometer reading the board is
// assumed level.
func CompassHeading(raw imu.IMURaw) (deg float64, ok bool) {
	if !raw.HasMag() {
		return 0, false
	}
	var roll, pitch float64
	if raw.HasAccel() {
		roll, pitch = tilt(raw.Accel())
	}
	mx, my, mz := raw.Mag()

	// rotate the field back into the horizontal plane
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)
	xh := mx*cp + my*sr*sp + mz*cr*sp
	yh := my*cr - mz*sr

	return heading.Normalize(math.Atan2(-yh, xh) * radToDeg), true
}

// PoseFromIMU combines accelerometer tilt and compass heading.
func PoseFromIMU(raw imu.IMURaw) Pose {
	p := ComputePoseFromAccel(raw.Accel())
	if h, ok := CompassHeading(raw); ok {
		p.Yaw = h
	}
	return p
}
