// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "time"

// IMURaw represents a single raw IMU+mag sample as published on the IMU
// topic. Axes follow the board frame: x forward, y right, z down.
type IMURaw struct {
	Source string    `json:"source"` // board side or sensor name
	Time   time.Time `json:"time,omitempty"`

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Mx int16 `json:"mx"` // magnetometer
	My int16 `json:"my"`
	Mz int16 `json:"mz"`
}

// Accel returns the accelerometer axes as floats.
func (r IMURaw) Accel() (x, y, z float64) {
	return float64(r.Ax), float64(r.Ay), float64(r.Az)
}

// Mag returns the magnetometer axes as floats.
func (r IMURaw) Mag() (x, y, z float64) {
	return float64(r.Mx), float64(r.My), float64(r.Mz)
}

// HasMag reports whether the sample carries a magnetometer reading.
func (r IMURaw) HasMag() bool {
	return r.Mx != 0 || r.My != 0 || r.Mz != 0
}

// HasAccel reports whether the sample carries an accelerometer reading.
func (r IMURaw) HasAccel() bool {
	return r.Ax != 0 || r.Ay != 0 || r.Az != 0
}
