// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/geotrack/internal/bus"
	"github.com/relabs-tech/geotrack/internal/config"
	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/log"
)

// RunGPSProducer opens the GPS serial port, decodes NMEA sentences, and
// publishes every fix as JSON to the GPS topic.
func RunGPSProducer() error {
	cfg := config.Get()
	logger := log.Init(cfg.LogLevel, cfg.LogFormat).WithField("component", "gps_producer")

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDGPS, logger)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)

	receiver := gps.NewSerialProvider(cfg.GPSSerialPort, cfg.GPSBaudRate, logger)
	defer receiver.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return forwardFixes(ctx, receiver, bus.NewPublisher(client, logger), cfg.TopicGPS)
}

// fixSource is the producer side of a provider.
type fixSource interface {
	WatchFix(opts gps.WatchOptions, onFix func(gps.Fix), onError func(error)) (gps.Subscription, error)
}

type fixPublisher interface {
	PublishFix(topic string, fix gps.Fix) error
}

// forwardFixes publishes every fix from src until ctx ends or src fails.
// Publish errors are logged and do not stop forwarding.
func forwardFixes(ctx context.Context, src fixSource, pub fixPublisher, topic string) error {
	logger := log.Component("gps_producer")
	errCh := make(chan error, 1)

	sub, err := src.WatchFix(gps.WatchOptions{HighAccuracy: true}, func(fix gps.Fix) {
		if err := pub.PublishFix(topic, fix); err != nil {
			logger.WithError(err).Warn("GPS publish error")
			return
		}
		logger.WithFields(fixFields(fix)).Debug("published GPS fix")
	}, func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("start GPS stream: %w", err)
	}
	defer sub.Cancel()
	logger.WithField("topic", topic).Info("forwarding GPS fixes")

	select {
	case <-ctx.Done():
		logger.Info("GPS producer shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func fixFields(fix gps.Fix) map[string]any {
	f := map[string]any{"lat": fix.Latitude, "lon": fix.Longitude}
	if fix.Accuracy != nil {
		f["accuracy_m"] = *fix.Accuracy
	}
	if fix.Speed != nil {
		f["speed_mps"] = *fix.Speed
	}
	return f
}
