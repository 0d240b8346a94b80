// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/geotrack/internal/location"
)

const (
	writeWait   = 5 * time.Second
	clientQueue = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// streamClient is one websocket subscriber with its own send queue.
type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.send) })
}

// Stream pushes every published snapshot to websocket clients. A client
// whose queue is full is dropped rather than slowing the session down.
type Stream struct {
	log logrus.FieldLogger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	last    []byte
}

// NewStream returns an empty hub.
func NewStream(log logrus.FieldLogger) *Stream {
	return &Stream{log: log, clients: make(map[*streamClient]struct{})}
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast queues snap for every client. It is a tracking.Listener.
func (s *Stream) Broadcast(snap location.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		s.log.WithError(err).Warn("snapshot marshal error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = payload
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.log.Warn("websocket client too slow, dropping")
			delete(s.clients, c)
			c.close()
		}
	}
}

// ServeHTTP upgrades the request and streams snapshots until the client
// goes away. The latest snapshot, if any, is sent first.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade error")
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, clientQueue)}
	s.mu.Lock()
	if s.last != nil {
		c.send <- s.last
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.log.WithField("clients", n).Debug("websocket client connected")

	go s.readLoop(c)
	s.writeLoop(c)
}

// readLoop discards client messages and unregisters the client on close.
func (s *Stream) readLoop(c *streamClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).Debug("websocket read error")
			}
			break
		}
	}
	s.remove(c)
}

func (s *Stream) writeLoop(c *streamClient) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.log.WithError(err).Debug("websocket write error")
			s.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
}

func (s *Stream) remove(c *streamClient) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()
}

// Close disconnects every client.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
}
