// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/imu"
	"github.com/relabs-tech/geotrack/internal/location"
)

// Publisher writes JSON payloads to fixed topics.
type Publisher struct {
	client Client
	log    logrus.FieldLogger
}

// NewPublisher returns a publisher over client.
func NewPublisher(client Client, log logrus.FieldLogger) *Publisher {
	return &Publisher{client: client, log: log}
}

// PublishFix publishes a raw fix, retained, so late subscribers get the
// most recent one.
func (p *Publisher) PublishFix(topic string, fix gps.Fix) error {
	return publishJSON(p.client, topic, true, fix)
}

// PublishIMU publishes a raw IMU sample. Samples are a stream, not state,
// so they are not retained.
func (p *Publisher) PublishIMU(topic string, raw imu.IMURaw) error {
	return publishJSON(p.client, topic, false, raw)
}

// PublishSnapshot publishes a location snapshot, retained.
func (p *Publisher) PublishSnapshot(topic string, snap location.Snapshot) error {
	return publishJSON(p.client, topic, true, snap)
}

// SnapshotListener returns a session listener publishing every snapshot on
// topic. Failures are logged and do not stop the session.
func (p *Publisher) SnapshotListener(topic string) func(location.Snapshot) {
	return func(snap location.Snapshot) {
		if err := p.PublishSnapshot(topic, snap); err != nil {
			p.log.WithError(err).Warn("snapshot publish error")
		}
	}
}

// SubscribeSnapshots calls fn for every snapshot received on topic.
// Malformed payloads are logged and skipped.
func SubscribeSnapshots(c Client, topic string, log logrus.FieldLogger, fn func(location.Snapshot)) error {
	return subscribe(c, topic, func(_ mqtt.Client, msg mqtt.Message) {
		var snap location.Snapshot
		if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("snapshot unmarshal error")
			return
		}
		fn(snap)
	})
}

// SubscribeFixes calls fn for every raw fix received on topic. Malformed
// payloads are logged and skipped.
func SubscribeFixes(c Client, topic string, log logrus.FieldLogger, fn func(gps.Fix)) error {
	return subscribe(c, topic, func(_ mqtt.Client, msg mqtt.Message) {
		var fix gps.Fix
		if err := json.Unmarshal(msg.Payload(), &fix); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("gps unmarshal error")
			return
		}
		fn(fix)
	})
}
