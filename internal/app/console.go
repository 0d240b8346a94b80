// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/geotrack/internal/bus"
	"github.com/relabs-tech/geotrack/internal/config"
	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/location"
	"github.com/relabs-tech/geotrack/internal/log"
)

// RunConsole subscribes to the raw GPS and location topics and prints one
// line per message.
func RunConsole() error {
	cfg := config.Get()
	logger := log.Init(cfg.LogLevel, cfg.LogFormat).WithField("component", "console")

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	if err != nil {
		return err
	}

	if err := bus.SubscribeFixes(client, cfg.TopicGPS, logger, func(f gps.Fix) {
		fmt.Println(formatFix(f))
	}); err != nil {
		return err
	}
	logger.Infof("subscribed to %s", cfg.TopicGPS)

	if err := bus.SubscribeSnapshots(client, cfg.TopicLocation, logger, func(s location.Snapshot) {
		fmt.Println(formatSnapshot(s))
	}); err != nil {
		return err
	}
	logger.Infof("subscribed to %s", cfg.TopicLocation)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("console shutting down")
	bus.Disconnect(client)
	return nil
}

func formatFix(f gps.Fix) string {
	return fmt.Sprintf("[GPS ]  time=%s lat=%.6f lon=%.6f acc=%s speed=%s course=%s",
		f.Timestamp.Format(time.TimeOnly), f.Latitude, f.Longitude,
		optional(f.Accuracy, "%.1fm"), optional(f.Speed, "%.1fm/s"), optional(f.Heading, "%.1f°"))
}

func formatSnapshot(s location.Snapshot) string {
	return fmt.Sprintf("[LOC ]  time=%s lat=%.6f lon=%.6f hdg=%5.1f° smooth=%5.1f° acc=%s signal=%-9s moving=%t",
		s.Timestamp.Format(time.TimeOnly), s.Latitude, s.Longitude, s.Heading, s.SmoothedHeading,
		optional(s.Accuracy, "%.1fm"), s.SignalStrength, s.IsMoving)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}
