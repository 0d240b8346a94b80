// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/geotrack/internal/bus"
	"github.com/relabs-tech/geotrack/internal/config"
	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/log"
	"github.com/relabs-tech/geotrack/internal/metrics"
	"github.com/relabs-tech/geotrack/internal/poi"
	"github.com/relabs-tech/geotrack/internal/tracking"
)

const shutdownTimeout = 5 * time.Second

type closableProvider interface {
	gps.Provider
	Close() error
}

// RunTracker runs the tracking session against the configured fix source
// and serves the web API until interrupted. Snapshots go to the location
// topic and to websocket clients.
func RunTracker() error {
	cfg := config.Get()
	logger := log.Init(cfg.LogLevel, cfg.LogFormat).WithField("component", "tracker")

	client, err := bus.Connect(cfg.MQTTBroker, cfg.MQTTClientIDTracker, logger)
	if err != nil {
		return err
	}
	defer bus.Disconnect(client)

	provider := newProvider(cfg, client, logger)
	defer provider.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(reg)
	if err != nil {
		return err
	}

	pois, err := poi.Load(cfg.POIFile)
	if err != nil {
		return err
	}
	logger.WithField("pois", pois.Len()).Info("POI catalog loaded")

	session := tracking.NewSession(provider, cfg.TrackingOptions(), log.Component("tracking"),
		tracking.NewLogObserver(log.Component("events")), collector)
	stream := NewStream(log.Component("stream"))
	session.AddListener(bus.NewPublisher(client, logger).SnapshotListener(cfg.TopicLocation))
	session.AddListener(stream.Broadcast)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewServer(ctx, session, pois, stream, reg, log.Component("web")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Infof("web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	// A failed start leaves the server up; the session can be restarted
	// through the API.
	g.Go(func() error {
		if err := session.Start(ctx); err != nil && !errors.Is(err, tracking.ErrStopped) {
			logger.WithError(err).Warn("session did not start")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("tracker shutting down")
		session.Stop()
		stream.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newProvider(cfg *config.Config, client bus.Client, logger logrus.FieldLogger) closableProvider {
	if cfg.GPSSource == config.SourceSerial {
		logger.WithField("port", cfg.GPSSerialPort).Info("reading fixes from serial receiver")
		return gps.NewSerialProvider(cfg.GPSSerialPort, cfg.GPSBaudRate, log.Component("gps"))
	}
	logger.WithField("topic", cfg.TopicGPS).Info("reading fixes from MQTT")
	return bus.NewProvider(client, cfg.TopicGPS, cfg.TopicIMU, log.Component("bus"))
}
