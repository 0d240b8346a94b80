// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/relabs-tech/geotrack/internal/location"
	"github.com/relabs-tech/geotrack/internal/tracking"
)

// DefaultPath is the configuration file the programs read.
const DefaultPath = "geotrack_config.txt"

// GPS sources.
const (
	SourceSerial = "serial"
	SourceMQTT   = "mqtt"
)

// Config holds all application configuration values. The key tag names
// the KEY=VALUE entry; validation errors are reported by key.
type Config struct {
	// MQTT
	MQTTBroker          string `key:"MQTT_BROKER" validate:"required"`
	MQTTClientIDGPS     string `key:"MQTT_CLIENT_ID_GPS" validate:"required"`
	MQTTClientIDTracker string `key:"MQTT_CLIENT_ID_TRACKER" validate:"required"`
	MQTTClientIDConsole string `key:"MQTT_CLIENT_ID_CONSOLE" validate:"required"`
	MQTTClientIDSim     string `key:"MQTT_CLIENT_ID_SIMULATOR" validate:"required"`

	// Topics
	TopicGPS      string `key:"TOPIC_GPS" validate:"required"`
	TopicIMU      string `key:"TOPIC_IMU" validate:"required"`
	TopicLocation string `key:"TOPIC_LOCATION" validate:"required"`

	// GPS
	GPSSource     string `key:"GPS_SOURCE" validate:"oneof=serial mqtt"`
	GPSSerialPort string `key:"GPS_SERIAL_PORT" validate:"required_if=GPSSource serial"`
	GPSBaudRate   int    `key:"GPS_BAUD_RATE" validate:"gt=0"`

	// Tracking
	EnableHighAccuracy  bool    `key:"ENABLE_HIGH_ACCURACY"`
	DistanceIntervalM   float64 `key:"DISTANCE_INTERVAL_M" validate:"gte=0"`
	TimeIntervalMS      int     `key:"TIME_INTERVAL_MS" validate:"gte=0"`
	MinAccuracyM        float64 `key:"MIN_ACCURACY_M" validate:"gt=0"`
	HeadingSamples      int     `key:"HEADING_SAMPLES" validate:"gte=1,lte=360"`
	InitialFixAttempts  int     `key:"INITIAL_FIX_ATTEMPTS" validate:"gte=1"`
	InitialFixDelayMS   int     `key:"INITIAL_FIX_DELAY_MS" validate:"gte=0"`
	InitialFixMaxAgeMS  int     `key:"INITIAL_FIX_MAX_AGE_MS" validate:"gte=0"`
	InitialFixTimeoutMS int     `key:"INITIAL_FIX_TIMEOUT_MS" validate:"gt=0"`
	MovingSpeedMps      float64 `key:"MOVING_SPEED_MPS" validate:"gt=0"`

	// Validator thresholds
	MaxSpeedMps     float64 `key:"MAX_SPEED_MPS" validate:"gt=0"`
	SuspiciousJumpM float64 `key:"SUSPICIOUS_JUMP_M" validate:"gt=0"`
	RoundJumpM      float64 `key:"ROUND_JUMP_M" validate:"gt=0"`
	MaxAccuracyM    float64 `key:"MAX_ACCURACY_M" validate:"gt=0"`

	// Web Server
	WebServerPort int    `key:"WEB_SERVER_PORT" validate:"min=1,max=65535"`
	POIFile       string `key:"POI_FILE"`

	// Simulator
	SimCenterLat    float64 `key:"SIM_CENTER_LAT" validate:"gte=-90,lte=90"`
	SimCenterLon    float64 `key:"SIM_CENTER_LON" validate:"gte=-180,lte=180"`
	SimRadiusM      float64 `key:"SIM_RADIUS_M" validate:"gt=0"`
	SimSpeedMps     float64 `key:"SIM_SPEED_MPS" validate:"gte=0"`
	SimIntervalMS   int     `key:"SIM_INTERVAL_MS" validate:"gt=0"`
	SimGarbageEvery int     `key:"SIM_GARBAGE_EVERY" validate:"gte=0"`

	// Logging
	LogLevel  string `key:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error"`
	LogFormat string `key:"LOG_FORMAT" validate:"oneof=text json"`
}

// Package-level singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	opts := tracking.DefaultOptions()
	th := location.DefaultThresholds()
	return &Config{
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDGPS:     "geotrack-gps-producer",
		MQTTClientIDTracker: "geotrack-tracker",
		MQTTClientIDConsole: "geotrack-console",
		MQTTClientIDSim:     "geotrack-simulator",

		TopicGPS:      "geotrack/gps/fix",
		TopicIMU:      "geotrack/imu/raw",
		TopicLocation: "geotrack/location",

		GPSSource: SourceMQTT,
		// NOTE: adjust to match your setup: /dev/serial0, /dev/ttyAMA0, /dev/ttyUSB0, etc.
		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		EnableHighAccuracy:  opts.EnableHighAccuracy,
		DistanceIntervalM:   opts.DistanceIntervalM,
		TimeIntervalMS:      int(opts.TimeInterval / time.Millisecond),
		MinAccuracyM:        opts.MinAccuracyM,
		HeadingSamples:      opts.HeadingSamples,
		InitialFixAttempts:  opts.InitialFixAttempts,
		InitialFixDelayMS:   int(opts.InitialFixDelay / time.Millisecond),
		InitialFixMaxAgeMS:  int(opts.InitialFixMaxAge / time.Millisecond),
		InitialFixTimeoutMS: int(opts.InitialFixTimeout / time.Millisecond),
		MovingSpeedMps:      opts.MovingSpeedMps,

		MaxSpeedMps:     th.MaxSpeedMps,
		SuspiciousJumpM: th.SuspiciousJumpM,
		RoundJumpM:      th.RoundJumpM,
		MaxAccuracyM:    th.MaxAccuracyM,

		WebServerPort: 8080,

		SimCenterLat:    39.9042,
		SimCenterLon:    116.4074,
		SimRadiusM:      150,
		SimSpeedMps:     1.4,
		SimIntervalMS:   1000,
		SimGarbageEvery: 7,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Default and validates the
// result.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}
		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_SIMULATOR":
		c.MQTTClientIDSim = value

	// Topics
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_LOCATION":
		c.TopicLocation = value

	// GPS
	case "GPS_SOURCE":
		c.GPSSource = strings.ToLower(value)
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value)

	// Tracking
	case "ENABLE_HIGH_ACCURACY":
		c.EnableHighAccuracy, err = parseBool(key, value)
	case "DISTANCE_INTERVAL_M":
		c.DistanceIntervalM, err = parseFloat(key, value)
	case "TIME_INTERVAL_MS":
		c.TimeIntervalMS, err = parseInt(key, value)
	case "MIN_ACCURACY_M":
		c.MinAccuracyM, err = parseFloat(key, value)
	case "HEADING_SAMPLES":
		c.HeadingSamples, err = parseInt(key, value)
	case "INITIAL_FIX_ATTEMPTS":
		c.InitialFixAttempts, err = parseInt(key, value)
	case "INITIAL_FIX_DELAY_MS":
		c.InitialFixDelayMS, err = parseInt(key, value)
	case "INITIAL_FIX_MAX_AGE_MS":
		c.InitialFixMaxAgeMS, err = parseInt(key, value)
	case "INITIAL_FIX_TIMEOUT_MS":
		c.InitialFixTimeoutMS, err = parseInt(key, value)
	case "MOVING_SPEED_MPS":
		c.MovingSpeedMps, err = parseFloat(key, value)

	// Validator thresholds
	case "MAX_SPEED_MPS":
		c.MaxSpeedMps, err = parseFloat(key, value)
	case "SUSPICIOUS_JUMP_M":
		c.SuspiciousJumpM, err = parseFloat(key, value)
	case "ROUND_JUMP_M":
		c.RoundJumpM, err = parseFloat(key, value)
	case "MAX_ACCURACY_M":
		c.MaxAccuracyM, err = parseFloat(key, value)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)
	case "POI_FILE":
		c.POIFile = value

	// Simulator
	case "SIM_CENTER_LAT":
		c.SimCenterLat, err = parseFloat(key, value)
	case "SIM_CENTER_LON":
		c.SimCenterLon, err = parseFloat(key, value)
	case "SIM_RADIUS_M":
		c.SimRadiusM, err = parseFloat(key, value)
	case "SIM_SPEED_MPS":
		c.SimSpeedMps, err = parseFloat(key, value)
	case "SIM_INTERVAL_MS":
		c.SimIntervalMS, err = parseInt(key, value)
	case "SIM_GARBAGE_EVERY":
		c.SimGarbageEvery, err = parseInt(key, value)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FORMAT":
		c.LogFormat = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return err
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if k := f.Tag.Get("key"); k != "" {
				return k
			}
			return f.Name
		})
	})
	return validate
}

// Validate checks field constraints and reports the first few violations by
// config key.
func (c *Config) Validate() error {
	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s=%v fails %s", fe.Field(), fe.Value(), constraint(fe)))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// TrackingOptions converts the tracking keys into session options.
func (c *Config) TrackingOptions() tracking.Options {
	return tracking.Options{
		EnableHighAccuracy: c.EnableHighAccuracy,
		DistanceIntervalM:  c.DistanceIntervalM,
		TimeInterval:       time.Duration(c.TimeIntervalMS) * time.Millisecond,
		MinAccuracyM:       c.MinAccuracyM,
		HeadingSamples:     c.HeadingSamples,
		InitialFixAttempts: c.InitialFixAttempts,
		InitialFixDelay:    time.Duration(c.InitialFixDelayMS) * time.Millisecond,
		InitialFixMaxAge:   time.Duration(c.InitialFixMaxAgeMS) * time.Millisecond,
		InitialFixTimeout:  time.Duration(c.InitialFixTimeoutMS) * time.Millisecond,
		MovingSpeedMps:     c.MovingSpeedMps,
		Thresholds: location.Thresholds{
			MaxSpeedMps:     c.MaxSpeedMps,
			SuspiciousJumpM: c.SuspiciousJumpM,
			RoundJumpM:      c.RoundJumpM,
			MaxAccuracyM:    c.MaxAccuracyM,
		},
	}
}

// InitGlobal initializes the global configuration from file. Only the
// first call loads; later calls are no-ops.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
