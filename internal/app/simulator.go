// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/geotrack/internal/bus"
	"github.com/relabs-tech/geotrack/internal/config"
	"github.com/relabs-tech/geotrack/internal/imu"
	"github.com/relabs-tech/geotrack/internal/log"
	"github.com/relabs-tech/geotrack/internal/sim"
)

// imuPerFix is how many compass samples are published between fixes.
const imuPerFix = 4

// RunSimulator publishes a synthetic walk to the GPS and IMU topics so the
// tracker can run without a receiver attached.
func RunSimulator() error {
	cfg := config.Get()
	logger := log.Init(cfg.LogLevel, cfg.LogFormat).WithField("component", "simulator")

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDSim, logger)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	track := sim.NewTrack(sim.Config{
		CenterLat:    cfg.SimCenterLat,
		CenterLon:    cfg.SimCenterLon,
		RadiusM:      cfg.SimRadiusM,
		SpeedMps:     cfg.SimSpeedMps,
		NoiseM:       3,
		AccuracyM:    8,
		GarbageEvery: cfg.SimGarbageEvery,
		Seed:         uint64(time.Now().UnixNano()),
	}, time.Now())
	logger.WithField("interval_ms", cfg.SimIntervalMS).Info("starting simulated walk")

	t := simTopics{fix: cfg.TopicGPS, imu: cfg.TopicIMU}
	return simulate(ctx, track, bus.NewPublisher(client, logger), t, time.Duration(cfg.SimIntervalMS)*time.Millisecond)
}

type simTopics struct {
	fix string
	imu string
}

type simPublisher interface {
	fixPublisher
	PublishIMU(topic string, raw imu.IMURaw) error
}

// simulate publishes a fix every interval and imuPerFix IMU samples in
// between until ctx ends.
func simulate(ctx context.Context, track *sim.Track, pub simPublisher, topics simTopics, interval time.Duration) error {
	logger := log.Component("simulator")
	tick := interval / imuPerFix
	if tick <= 0 {
		tick = interval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("simulator shutting down")
			return nil
		case now := <-ticker.C:
			if err := pub.PublishIMU(topics.imu, track.IMU(now)); err != nil {
				logger.WithError(err).Warn("IMU publish error")
			}
			n++
			if n%imuPerFix != 0 {
				continue
			}
			fix := track.NextFix(now)
			if err := pub.PublishFix(topics.fix, fix); err != nil {
				logger.WithError(err).Warn("GPS publish error")
				continue
			}
			logger.WithFields(fixFields(fix)).Debug("published simulated fix")
		}
	}
}
