// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// hdopUERE is the user equivalent range error (metres) used to turn HDOP
// into a horizontal accuracy estimate when the receiver sends no GST.
const hdopUERE = 5.0

// TypeGST is the GNSS pseudorange error statistics sentence. go-nmea has no
// built-in parser for it, so one is registered at init.
const TypeGST = "GST"

// GST carries the 1-sigma position errors (metres) in fields 5 and 6.
type GST struct {
	nmea.BaseSentence
	SigmaLat float64
	SigmaLon float64
}

func init() {
	nmea.MustRegisterParser(TypeGST, parseGST)
}

func parseGST(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	m := GST{
		BaseSentence: s,
		SigmaLat:     p.Float64(5, "latitude sigma"),
		SigmaLon:     p.Float64(6, "longitude sigma"),
	}
	return m, p.Err()
}

// Decoder turns NMEA sentences into fixes. RMC carries position, speed,
// course and time; GGA and GST only refine the accuracy estimate used for
// the next RMC.
type Decoder struct {
	hdop     float64 // 0 = unknown
	gstSigma float64 // 0 = unknown
}

// NewDecoder returns a decoder with no accuracy history.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses one line. It returns ok=true only for a valid RMC.
// Lines that are not NMEA sentences are skipped without error.
func (d *Decoder) Decode(line string) (Fix, bool, error) {
	line = strings.TrimSpace(line)

	// NMEA sentences usually start with '$'
	if line == "" || !strings.HasPrefix(line, "$") {
		return Fix{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false, err
	}

	switch sentence.DataType() {
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		if m.FixQuality == nmea.Invalid {
			d.hdop = 0
		} else {
			d.hdop = m.HDOP
		}
	case TypeGST:
		m := sentence.(GST)
		d.gstSigma = math.Hypot(m.SigmaLat, m.SigmaLon)
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			return Fix{}, false, nil
		}
		return d.fromRMC(m), true, nil
	default:
		// ignore other sentence types (GSA, GSV, VTG, ...)
	}
	return Fix{}, false, nil
}

func (d *Decoder) fromRMC(m nmea.RMC) Fix {
	fix := Fix{
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Speed:     Float(m.Speed * knotsToMps),
		Timestamp: rmcTime(m.Date, m.Time),
		Source:    SourceFix,
	}
	// course is meaningless while standing still; receivers often send 0
	if m.Speed > 0 {
		fix.Heading = Float(m.Course)
	}
	switch {
	case d.gstSigma > 0:
		fix.Accuracy = Float(d.gstSigma)
	case d.hdop > 0:
		fix.Accuracy = Float(d.hdop * hdopUERE)
	}
	return fix
}

// rmcTime combines RMC date and time in UTC. A missing date or time yields
// the zero time, which the feed replaces with the receive time.
func rmcTime(date nmea.Date, t nmea.Time) time.Time {
	if !date.Valid || !t.Valid {
		return time.Time{}
	}
	year := 2000 + date.YY
	if date.YY >= 80 {
		year = 1900 + date.YY
	}
	return time.Date(year, time.Month(date.MM), date.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
