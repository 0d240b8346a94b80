// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exports tracking session events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/geotrack/internal/location"
	"github.com/relabs-tech/geotrack/internal/tracking"
)

const namespace = "geotrack"

var strengths = []location.Strength{
	location.StrengthExcellent,
	location.StrengthGood,
	location.StrengthPoor,
	location.StrengthLost,
}

var states = []tracking.State{
	tracking.StateIdle,
	tracking.StateAcquiring,
	tracking.StateTracking,
	tracking.StateStopped,
}

// Collector implements tracking.Observer.
type Collector struct {
	attempts   prometheus.Counter
	accepted   prometheus.Counter
	rejected   *prometheus.CounterVec
	errors     prometheus.Counter
	headings   prometheus.Counter
	streak     prometheus.Gauge
	accuracy   prometheus.Gauge
	signal     *prometheus.GaugeVec
	state      *prometheus.GaugeVec
	acceptedAt prometheus.Gauge
}

// New creates the collector and registers its metrics on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "initial_fix_attempts_total",
			Help:      "Initial fix requests sent to the provider.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_accepted_total",
			Help:      "Fixes that passed validation.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_rejected_total",
			Help:      "Fixes rejected, by rule.",
		}, []string{"reason"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Session errors: denied permission, exhausted acquisition, stream failures.",
		}),
		headings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compass_updates_total",
			Help:      "Compass readings applied to the snapshot.",
		}),
		streak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rejection_streak",
			Help:      "Consecutive rejected fixes.",
		}),
		accuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fix_accuracy_meters",
			Help:      "Accuracy of the last accepted fix.",
		}),
		signal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal_strength",
			Help:      "1 for the current signal tier, 0 otherwise.",
		}, []string{"strength"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		acceptedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_accepted_fix_timestamp_seconds",
			Help:      "Unix time of the last accepted fix.",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.attempts, c.accepted, c.rejected, c.errors, c.headings,
		c.streak, c.accuracy, c.signal, c.state, c.acceptedAt,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	c.setState(tracking.StateIdle)
	return c, nil
}

// Observe updates the metrics for one session event.
func (c *Collector) Observe(e tracking.Event) {
	switch e.Kind {
	case tracking.EventAcquireAttempt:
		c.attempts.Inc()
	case tracking.EventAcquireFailed:
		if e.Reason != location.ReasonNone {
			c.rejected.WithLabelValues(string(e.Reason)).Inc()
			c.streak.Set(float64(e.Rejections))
		}
	case tracking.EventAccepted:
		c.accepted.Inc()
		c.streak.Set(0)
		if e.Snapshot.Accuracy != nil {
			c.accuracy.Set(*e.Snapshot.Accuracy)
		}
		c.acceptedAt.Set(float64(e.Snapshot.Timestamp.UnixNano()) / 1e9)
		c.setSignal(e.Snapshot.SignalStrength)
	case tracking.EventRejected:
		c.rejected.WithLabelValues(string(e.Reason)).Inc()
		c.streak.Set(float64(e.Rejections))
	case tracking.EventClassified:
		c.setSignal(e.Snapshot.SignalStrength)
	case tracking.EventHeading:
		c.headings.Inc()
	case tracking.EventState:
		c.setState(e.State)
		if e.State == tracking.StateIdle {
			c.streak.Set(0)
			c.setSignal("")
		}
	case tracking.EventError:
		c.errors.Inc()
	}
}

func (c *Collector) setSignal(s location.Strength) {
	for _, v := range strengths {
		g := c.signal.WithLabelValues(string(v))
		if v == s {
			g.Set(1)
		} else {
			g.Set(0)
		}
	}
}

func (c *Collector) setState(s tracking.State) {
	for _, v := range states {
		g := c.state.WithLabelValues(v.String())
		if v == s {
			g.Set(1)
		} else {
			g.Set(0)
		}
	}
}
