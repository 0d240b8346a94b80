// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentence wraps body with '$' and its XOR checksum.
func sentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, sum)
}

func TestDecodeRMC(t *testing.T) {
	dec := NewDecoder()
	fix, ok, err := dec.Decode(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230324,003.1,W"))
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 48.1173, fix.Latitude, 1e-6)
	assert.InDelta(t, 11.516667, fix.Longitude, 1e-6)
	require.NotNil(t, fix.Speed)
	assert.InDelta(t, 22.4*knotsToMps, *fix.Speed, 1e-9)
	require.NotNil(t, fix.Heading)
	assert.InDelta(t, 84.4, *fix.Heading, 1e-9)
	assert.Nil(t, fix.Accuracy, "no GGA/GST seen yet")
	assert.Equal(t, SourceFix, fix.Source)
	assert.Equal(t, time.Date(2024, time.March, 23, 12, 35, 19, 0, time.UTC), fix.Timestamp)
}

func TestDecodeAccuracyFromHDOP(t *testing.T) {
	dec := NewDecoder()
	_, ok, err := dec.Decode(sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	require.NoError(t, err)
	assert.False(t, ok, "GGA alone does not emit a fix")

	fix, ok, err := dec.Decode(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230324,003.1,W"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, fix.Accuracy)
	assert.InDelta(t, 0.9*hdopUERE, *fix.Accuracy, 1e-9)
}

func TestDecodeAccuracyPrefersGST(t *testing.T) {
	dec := NewDecoder()
	for _, body := range []string{
		"GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,",
		"GPGST,123519.0,2.1,3.0,2.0,45.0,3.0,4.0,5.0",
	} {
		_, _, err := dec.Decode(sentence(body))
		require.NoError(t, err)
	}

	fix, ok, err := dec.Decode(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230324,003.1,W"))
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, fix.Accuracy)
	assert.InDelta(t, 5.0, *fix.Accuracy, 1e-9)
}

func TestDecodeStationaryHasNoHeading(t *testing.T) {
	dec := NewDecoder()
	fix, ok, err := dec.Decode(sentence("GPRMC,123519,A,4807.038,N,01131.000,E,0.0,0.0,230324,,"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, fix.Heading)
	require.NotNil(t, fix.Speed)
	assert.Zero(t, *fix.Speed)
}

func TestDecodeSkipsNoise(t *testing.T) {
	dec := NewDecoder()

	for _, line := range []string{"", "   ", "garbage", "\r\n"} {
		_, ok, err := dec.Decode(line)
		assert.NoError(t, err, line)
		assert.False(t, ok, line)
	}

	_, ok, err := dec.Decode("$GPRMC,123519,A,4807.038,N*00")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDecodeVoidRMC(t *testing.T) {
	dec := NewDecoder()
	_, ok, _ := dec.Decode(sentence("GPRMC,123519,V,4807.038,N,01131.000,E,0.0,0.0,230324,,"))
	assert.False(t, ok)
}

func TestDecodeInvalidGGAClearsHDOP(t *testing.T) {
	dec := NewDecoder()
	_, _, err := dec.Decode(sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	require.NoError(t, err)
	_, _, err = dec.Decode(sentence("GPGGA,123520,4807.038,N,01131.000,E,0,00,99.9,545.4,M,46.9,M,,"))
	require.NoError(t, err)

	fix, ok, err := dec.Decode(sentence("GPRMC,123520,A,4807.038,N,01131.000,E,022.4,084.4,230324,003.1,W"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, fix.Accuracy)
}

func TestDecodeGST(t *testing.T) {
	dec := NewDecoder()
	_, ok, err := dec.Decode(sentence("GNGST,123519.0,2.1,3.0,2.0,45.0,6.0,8.0,5.0"))
	require.NoError(t, err)
	assert.False(t, ok, "GST alone yields no fix")
	assert.InDelta(t, 10.0, dec.gstSigma, 1e-9)

	_, _, err = dec.Decode(sentence("GNGST,123520.0,2.1,3.0"))
	assert.Error(t, err, "truncated GST")
	_, _, err = dec.Decode(sentence("GNGST,123520.0,2.1,3.0,2.0,45.0,x,8.0,5.0"))
	assert.Error(t, err, "non-numeric sigma")
	assert.InDelta(t, 10.0, dec.gstSigma, 1e-9, "bad GST keeps the previous estimate")
}
