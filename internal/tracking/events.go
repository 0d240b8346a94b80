// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/geotrack/internal/location"
)

// EventKind classifies session events.
type EventKind string

const (
	EventAcquireAttempt EventKind = "acquire-attempt"
	EventAcquireFailed  EventKind = "acquire-failed"
	EventAccepted       EventKind = "accepted"
	EventRejected       EventKind = "rejected"
	EventClassified     EventKind = "classified"
	EventHeading        EventKind = "heading"
	EventState          EventKind = "state"
	EventError          EventKind = "error"
)

// Event is emitted by a Session for every decision it takes.
type Event struct {
	Kind       EventKind
	SessionID  string
	Time       time.Time
	Attempt    int             // acquisition attempt, 1-based
	Reason     location.Reason // rejection reason
	State      State           // new state for EventState
	Snapshot   location.Snapshot
	Rejections int
	Err        error
}

// Observer receives session events. Observe is called outside the session
// locks, from whichever goroutine delivered the fix.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// LogObserver writes events as structured log entries.
type LogObserver struct {
	log logrus.FieldLogger
}

// NewLogObserver returns an observer logging to log.
func NewLogObserver(log logrus.FieldLogger) *LogObserver {
	return &LogObserver{log: log}
}

func (o *LogObserver) Observe(e Event) {
	entry := o.log.WithFields(logrus.Fields{
		"session": e.SessionID,
		"event":   string(e.Kind),
	})

	switch e.Kind {
	case EventAcquireAttempt:
		entry.WithField("attempt", e.Attempt).Debug("requesting initial fix")
	case EventAcquireFailed:
		entry.WithFields(logrus.Fields{
			"attempt": e.Attempt,
			"reason":  string(e.Reason),
		}).WithError(e.Err).Warn("initial fix attempt failed")
	case EventAccepted:
		entry.WithFields(snapshotFields(e.Snapshot)).Debug("fix accepted")
	case EventRejected:
		entry.WithFields(logrus.Fields{
			"reason":     string(e.Reason),
			"rejections": e.Rejections,
		}).Debug("fix rejected")
	case EventClassified:
		entry.WithFields(logrus.Fields{
			"signal":     string(e.Snapshot.SignalStrength),
			"rejections": e.Rejections,
		}).Info("signal strength changed")
	case EventHeading:
		entry.WithField("heading", e.Snapshot.SmoothedHeading).Debug("heading updated")
	case EventState:
		entry.WithField("state", e.State.String()).Info("session state changed")
	case EventError:
		entry.WithError(e.Err).Error("tracking error")
	}
}

func snapshotFields(s location.Snapshot) logrus.Fields {
	f := logrus.Fields{
		"lat":     s.Latitude,
		"lon":     s.Longitude,
		"heading": s.SmoothedHeading,
		"moving":  s.IsMoving,
		"signal":  string(s.SignalStrength),
	}
	if s.Accuracy != nil {
		f["accuracy_m"] = *s.Accuracy
	}
	return f
}
