// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geotrack/internal/tracking"
)

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader("# nothing set\n\n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	opts := cfg.TrackingOptions()
	assert.Equal(t, tracking.DefaultOptions(), opts)
}

func TestParseOverrides(t *testing.T) {
	in := `
# broker
MQTT_BROKER = tcp://broker.local:1883
GPS_SOURCE=Serial
GPS_SERIAL_PORT=/dev/ttyUSB0
GPS_BAUD_RATE=38400
ENABLE_HIGH_ACCURACY=false
TIME_INTERVAL_MS=1000
INITIAL_FIX_ATTEMPTS=3
INITIAL_FIX_DELAY_MS=250
INITIAL_FIX_TIMEOUT_MS=4000
MIN_ACCURACY_M=25.5
MAX_SPEED_MPS=70
LOG_LEVEL=DEBUG
LOG_FORMAT=json
POI_FILE=pois.yaml
`
	cfg, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTTBroker)
	assert.Equal(t, SourceSerial, cfg.GPSSource)
	assert.Equal(t, "/dev/ttyUSB0", cfg.GPSSerialPort)
	assert.Equal(t, 38400, cfg.GPSBaudRate)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "pois.yaml", cfg.POIFile)

	opts := cfg.TrackingOptions()
	assert.False(t, opts.EnableHighAccuracy)
	assert.Equal(t, time.Second, opts.TimeInterval)
	assert.Equal(t, 3, opts.InitialFixAttempts)
	assert.Equal(t, 250*time.Millisecond, opts.InitialFixDelay)
	assert.Equal(t, 4*time.Second, opts.InitialFixTimeout)
	assert.Equal(t, 25.5, opts.MinAccuracyM)
	assert.Equal(t, 70.0, opts.Thresholds.MaxSpeedMps)
	assert.Equal(t, 1000.0, opts.Thresholds.MaxAccuracyM)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"no separator":    "MQTT_BROKER",
		"unknown key":     "IMU_LEFT_SPI_DEVICE=/dev/spidev0.0",
		"bad int":         "GPS_BAUD_RATE=fast",
		"bad float":       "MIN_ACCURACY_M=ten",
		"bad bool":        "ENABLE_HIGH_ACCURACY=maybe",
		"empty broker":    "MQTT_BROKER=",
		"bad source":      "GPS_SOURCE=bluetooth",
		"serial, no port": "GPS_SOURCE=serial\nGPS_SERIAL_PORT=",
		"zero attempts":   "INITIAL_FIX_ATTEMPTS=0",
		"zero timeout":    "INITIAL_FIX_TIMEOUT_MS=0",
		"port range":      "WEB_SERVER_PORT=70000",
		"log format":      "LOG_FORMAT=xml",
		"sim latitude":    "SIM_CENTER_LAT=95",
		"sim interval":    "SIM_INTERVAL_MS=0",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestValidationMessagesUseKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("MQTT_BROKER=\nHEADING_SAMPLES=0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT_BROKER is required")
	assert.Contains(t, err.Error(), "HEADING_SAMPLES=0 fails gte=1")
}

func TestParseReportsLine(t *testing.T) {
	_, err := Parse(strings.NewReader("# ok\nGPS_BAUD_RATE=x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config line 2")
}

func TestMQTTSourceNeedsNoPort(t *testing.T) {
	cfg, err := Parse(strings.NewReader("GPS_SOURCE=mqtt\nGPS_SERIAL_PORT="))
	require.NoError(t, err)
	assert.Empty(t, cfg.GPSSerialPort)
}

func TestLoadAndGlobal(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte("WEB_SERVER_PORT=9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.WebServerPort)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	require.NoError(t, InitGlobal(path))
	require.NotNil(t, Get())
	assert.Equal(t, 9090, Get().WebServerPort)
	require.NoError(t, InitGlobal("ignored.txt"))
	assert.Equal(t, 9090, Get().WebServerPort)
}
