// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"context"
	"encoding/json"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/imu"
	"github.com/relabs-tech/geotrack/internal/orientation"
)

// Provider is a gps.Provider and gps.HeadingWatcher fed from MQTT: raw
// fixes as JSON gps.Fix on the fix topic, IMU samples as JSON imu.IMURaw
// on the IMU topic. An empty IMU topic disables the compass stream.
type Provider struct {
	client   Client
	fixTopic string
	imuTopic string
	log      logrus.FieldLogger
	feed     *gps.Feed

	// smu guards started; mu guards the heading watchers. Subscribing must
	// not hold mu since paho may deliver IMU messages before the ack.
	smu     sync.Mutex
	started bool

	mu        sync.Mutex
	headings  map[int]func(float64)
	nextWatch int
}

// NewProvider returns a provider over client. Topics are subscribed on the
// first permission request or fix request.
func NewProvider(client Client, fixTopic, imuTopic string, log logrus.FieldLogger) *Provider {
	return &Provider{
		client:   client,
		fixTopic: fixTopic,
		imuTopic: imuTopic,
		log:      log,
		feed:     gps.NewFeed(),
		headings: make(map[int]func(float64)),
	}
}

// Feed exposes the underlying fix feed.
func (p *Provider) Feed() *gps.Feed { return p.feed }

// Start subscribes to the topics. Calling it again is a no-op.
func (p *Provider) Start() error {
	p.smu.Lock()
	defer p.smu.Unlock()
	if p.started {
		return nil
	}
	if err := subscribe(p.client, p.fixTopic, p.handleFix); err != nil {
		return err
	}
	p.log.WithField("topic", p.fixTopic).Info("subscribed to GPS fixes")
	if p.imuTopic != "" {
		if err := subscribe(p.client, p.imuTopic, p.handleIMU); err != nil {
			_ = wait(p.client.Unsubscribe(p.fixTopic), publishTimeout)
			return err
		}
		p.log.WithField("topic", p.imuTopic).Info("subscribed to IMU samples")
	}
	p.started = true
	return nil
}

func (p *Provider) handleFix(_ mqtt.Client, msg mqtt.Message) {
	var fix gps.Fix
	if err := json.Unmarshal(msg.Payload(), &fix); err != nil {
		p.log.WithError(err).WithField("topic", msg.Topic()).Debug("fix payload unmarshal error")
		return
	}
	if fix.Source == "" {
		fix.Source = gps.SourceFix
	}
	p.feed.Push(fix)
}

func (p *Provider) handleIMU(_ mqtt.Client, msg mqtt.Message) {
	var raw imu.IMURaw
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		p.log.WithError(err).WithField("topic", msg.Topic()).Debug("IMU payload unmarshal error")
		return
	}
	deg, ok := orientation.CompassHeading(raw)
	if !ok {
		return
	}

	p.mu.Lock()
	fns := make([]func(float64), 0, len(p.headings))
	for _, fn := range p.headings {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(deg)
	}
}

// RequestPermission subscribes to the topics. The bus has no permission
// model, so a reachable broker always grants.
func (p *Provider) RequestPermission(ctx context.Context) (gps.Permission, error) {
	if err := p.Start(); err != nil {
		return gps.PermissionDenied, err
	}
	return gps.PermissionGranted, nil
}

func (p *Provider) CurrentFix(ctx context.Context, opts gps.FixOptions) (gps.Fix, error) {
	if err := p.Start(); err != nil {
		return gps.Fix{}, err
	}
	return p.feed.CurrentFix(ctx, opts)
}

func (p *Provider) WatchFix(opts gps.WatchOptions, onFix func(gps.Fix), onError func(error)) (gps.Subscription, error) {
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p.feed.Watch(opts, onFix, onError)
}

// WatchHeading registers onHeading for compass headings derived from IMU
// samples.
func (p *Provider) WatchHeading(onHeading func(float64)) (gps.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextWatch
	p.nextWatch++
	p.headings[id] = onHeading
	return gps.SubscriptionFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.headings, id)
	}), nil
}

// Close unsubscribes and closes the feed.
func (p *Provider) Close() error {
	p.smu.Lock()
	started := p.started
	p.started = false
	p.smu.Unlock()

	var err error
	if started {
		topics := []string{p.fixTopic}
		if p.imuTopic != "" {
			topics = append(topics, p.imuTopic)
		}
		err = wait(p.client.Unsubscribe(topics...), publishTimeout)
	}
	p.feed.Close()
	return err
}
