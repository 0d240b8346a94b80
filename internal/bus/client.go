// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus carries raw fixes, IMU samples and location snapshots over
// MQTT.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: timed out waiting for broker")

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 2 * time.Second
	disconnectMs   = 250
)

// Client is the part of mqtt.Client the bus uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Connect opens a broker connection that reconnects on its own. The session
// is kept by the broker so subscriptions survive reconnects, and a lost
// connection never fails fix watchers.
func Connect(broker, clientID string, log logrus.FieldLogger) (mqtt.Client, error) {
	client := mqtt.NewClient(clientOptions(broker, clientID, log))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	log.WithFields(logrus.Fields{"broker": broker, "client_id": clientID}).Info("connected to MQTT broker")
	return client, nil
}

func clientOptions(broker, clientID string, log logrus.FieldLogger) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost, reconnecting")
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			log.Info("MQTT reconnecting")
		})
}

// Disconnect closes c after letting in-flight work drain.
func Disconnect(c mqtt.Client) {
	c.Disconnect(disconnectMs)
}

func wait(t mqtt.Token, timeout time.Duration) error {
	if !t.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return t.Error()
}

func publishJSON(c Client, topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	if err := wait(c.Publish(topic, 0, retained, payload), publishTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func subscribe(c Client, topic string, h mqtt.MessageHandler) error {
	if err := wait(c.Subscribe(topic, 0, h), connectTimeout); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}
