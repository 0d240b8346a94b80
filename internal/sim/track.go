// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim generates a synthetic walk around a circle, with receiver
// noise and the occasional garbage fix, for running the tracker without
// hardware.
package sim

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/relabs-tech/geotrack/internal/geo"
	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/heading"
	"github.com/relabs-tech/geotrack/internal/imu"
)

const (
	gravityLSB = 16384 // 1 g at ±2 g full scale
	fieldLSB   = 400   // horizontal magnetic field
	fieldDown  = 300
)

// Config describes the simulated walk.
type Config struct {
	CenterLat    float64
	CenterLon    float64
	RadiusM      float64
	SpeedMps     float64
	NoiseM       float64 // 1-sigma position noise
	AccuracyM    float64 // reported accuracy of good fixes
	GarbageEvery int     // every Nth fix is invalid; 0 disables
	Seed         uint64
}

// Track yields fixes and IMU samples along the circle.
type Track struct {
	cfg   Config
	start time.Time
	noise distuv.Normal
	n     int
}

// NewTrack starts a walk at start. The walker begins due north of the
// centre heading east.
func NewTrack(cfg Config, start time.Time) *Track {
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	return &Track{
		cfg:   cfg,
		start: start,
		noise: distuv.Normal{Mu: 0, Sigma: cfg.NoiseM, Src: src},
	}
}

// angle is the bearing from the centre to the walker, radians.
func (t *Track) angle(at time.Time) float64 {
	if t.cfg.RadiusM <= 0 {
		return 0
	}
	return t.cfg.SpeedMps * at.Sub(t.start).Seconds() / t.cfg.RadiusM
}

// Position returns the noiseless position and course at at.
func (t *Track) Position(at time.Time) (lat, lon, course float64) {
	theta := t.angle(at)
	north := t.cfg.RadiusM * math.Cos(theta)
	east := t.cfg.RadiusM * math.Sin(theta)
	lat, lon = offset(t.cfg.CenterLat, t.cfg.CenterLon, north, east)
	// clockwise walk: course is the bearing plus a quarter turn
	course = heading.Normalize(theta*180/math.Pi + 90)
	return lat, lon, course
}

// offset moves (lat, lon) by north and east metres on the sphere.
func offset(lat, lon, north, east float64) (float64, float64) {
	dLat := north / geo.EarthRadius * 180 / math.Pi
	dLon := east / (geo.EarthRadius * math.Cos(lat*math.Pi/180)) * 180 / math.Pi
	return lat + dLat, lon + dLon
}

// NextFix returns the next fix at at. Every GarbageEvery-th fix is one of
// the invalid shapes a real receiver produces.
func (t *Track) NextFix(at time.Time) gps.Fix {
	t.n++
	if g := t.cfg.GarbageEvery; g > 0 && t.n%g == 0 {
		return t.garbage(at, t.n/g)
	}

	lat, lon, course := t.Position(at)
	if t.cfg.NoiseM > 0 {
		lat, lon = offset(lat, lon, t.noise.Rand(), t.noise.Rand())
	}
	return gps.Fix{
		Latitude:  lat,
		Longitude: lon,
		Accuracy:  gps.Float(t.cfg.AccuracyM),
		Heading:   gps.Float(course),
		Speed:     gps.Float(t.cfg.SpeedMps),
		Timestamp: at,
		Source:    gps.SourceFix,
	}
}

func (t *Track) garbage(at time.Time, k int) gps.Fix {
	fix := gps.Fix{Timestamp: at, Source: gps.SourceFix}
	switch k % 3 {
	case 0:
		// null island
	case 1:
		fix.Latitude, fix.Longitude = 91, t.cfg.CenterLon
	case 2:
		fix.Latitude, fix.Longitude, _ = t.Position(at)
		fix.Accuracy = gps.Float(5000)
	}
	return fix
}

// IMU returns a level board sample whose magnetometer points along the
// current course.
func (t *Track) IMU(at time.Time) imu.IMURaw {
	_, _, course := t.Position(at)
	s, c := math.Sincos(course * math.Pi / 180)
	return imu.IMURaw{
		Source: "sim",
		Time:   at,
		Az:     gravityLSB,
		Mx:     int16(math.Round(fieldLSB * c)),
		My:     int16(math.Round(-fieldLSB * s)),
		Mz:     fieldDown,
	}
}
