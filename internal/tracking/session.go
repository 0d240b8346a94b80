// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracking turns a raw provider fix stream into a validated,
// smoothed and classified location signal.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/heading"
	"github.com/relabs-tech/geotrack/internal/location"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateTracking
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateTracking:
		return "tracking"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the readable session state.
type Status struct {
	State         State  `json:"state"`
	HasPermission *bool  `json:"has_permission"` // nil until requested
	IsTracking    bool   `json:"is_tracking"`
	LastError     string `json:"last_error,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	Rejections    int    `json:"rejections"`
}

// Listener receives every published snapshot, in publication order.
type Listener func(location.Snapshot)

type listenerEntry struct {
	id int
	fn Listener
}

// Session owns one provider's streams and the validation state built
// from them. All methods are safe for concurrent use.
type Session struct {
	provider  gps.Provider
	opts      Options
	validator *location.Validator
	observer  Observer
	log       logrus.FieldLogger
	now       func() time.Time

	// proc serializes fix processing with publication so listeners see
	// snapshots in the order fixes were handled.
	proc sync.Mutex

	mu            sync.Mutex
	state         State
	hasPermission *bool
	lastError     string
	snapshot      *location.Snapshot
	vstate        *location.ValidationState
	smoother      *heading.Smoother
	gen           uint64
	sessionID     string
	cancelAcquire context.CancelFunc
	subs          []gps.Subscription

	lmu          sync.Mutex
	listeners    []listenerEntry
	nextListener int
}

// NewSession creates an idle session over provider. Observers receive
// every event; nil observers are skipped.
func NewSession(provider gps.Provider, opts Options, log logrus.FieldLogger, observers ...Observer) *Session {
	opts = opts.withDefaults()
	var obs multiObserver
	for _, o := range observers {
		if o != nil {
			obs = append(obs, o)
		}
	}
	return &Session{
		provider:  provider,
		opts:      opts,
		validator: location.NewValidator(opts.Thresholds),
		observer:  obs,
		log:       log,
		now:       time.Now,
		vstate:    location.NewValidationState(),
		smoother:  heading.NewSmoother(opts.HeadingSamples),
	}
}

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Options returns the effective options.
func (s *Session) Options() Options { return s.opts }

// Snapshot returns the last published snapshot.
func (s *Session) Snapshot() (location.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return location.Snapshot{}, false
	}
	return *s.snapshot, true
}

// Status returns the current session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:      s.state,
		IsTracking: s.state == StateTracking,
		LastError:  s.lastError,
		SessionID:  s.sessionID,
		Rejections: s.vstate.Rejections(),
	}
	if s.hasPermission != nil {
		v := *s.hasPermission
		st.HasPermission = &v
	}
	return st
}

// AddListener registers fn for published snapshots and returns a function
// removing it. Listeners run synchronously and must not call Start.
func (s *Session) AddListener(fn Listener) (remove func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// publish must be called with proc held.
func (s *Session) publish(snap location.Snapshot) {
	s.lmu.Lock()
	ls := make([]listenerEntry, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.Unlock()
	for _, l := range ls {
		l.fn(snap)
	}
}

func (s *Session) emit(events ...Event) {
	for _, e := range events {
		if e.Time.IsZero() {
			e.Time = s.now()
		}
		s.observer.Observe(e)
	}
}

// RequestPermission asks the provider for location access and records the
// answer.
func (s *Session) RequestPermission(ctx context.Context) (gps.Permission, error) {
	perm, err := s.provider.RequestPermission(ctx)

	s.mu.Lock()
	id := s.sessionID
	if err != nil {
		s.lastError = fmt.Sprintf("permission request failed: %v", err)
		s.mu.Unlock()
		s.emit(Event{Kind: EventError, SessionID: id, Err: err})
		return gps.PermissionDenied, fmt.Errorf("request permission: %w", err)
	}
	granted := perm == gps.PermissionGranted
	s.hasPermission = &granted
	if !granted {
		s.lastError = "location permission denied"
	}
	s.mu.Unlock()

	if !granted {
		s.emit(Event{Kind: EventError, SessionID: id, Err: ErrPermissionDenied})
	}
	return perm, nil
}

// Start acquires an initial fix and then follows the provider streams. It
// blocks until the first fix is accepted, the attempts are exhausted, or
// the acquisition is abandoned by Stop, Reset or ctx.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	granted := s.hasPermission != nil && *s.hasPermission
	s.mu.Unlock()

	if !granted {
		perm, err := s.RequestPermission(ctx)
		if err != nil {
			return err
		}
		if perm != gps.PermissionGranted {
			return ErrPermissionDenied
		}
	}

	s.mu.Lock()
	if s.running() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.gen++
	gen := s.gen
	s.sessionID = uuid.NewString()
	id := s.sessionID
	s.vstate.Reset()
	s.smoother.Reset()
	s.lastError = ""
	actx, cancel := context.WithCancel(ctx)
	s.cancelAcquire = cancel
	s.state = StateAcquiring
	s.mu.Unlock()
	defer cancel()

	s.emit(Event{Kind: EventState, SessionID: id, State: StateAcquiring})

	snap, err := s.acquire(actx, gen, id)
	if err != nil {
		s.abortAcquire(gen, id, err)
		return err
	}

	s.proc.Lock()
	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()
	if !current {
		// stopped between acceptance and publication
		s.proc.Unlock()
		return ErrStopped
	}
	s.publish(snap)
	s.proc.Unlock()
	s.emit(
		Event{Kind: EventAccepted, SessionID: id, Snapshot: snap},
		Event{Kind: EventState, SessionID: id, State: StateTracking},
	)

	if err := s.subscribe(gen); err != nil {
		s.fail(gen, err)
		return err
	}
	return nil
}

func (s *Session) running() bool {
	return s.state == StateAcquiring || s.state == StateTracking
}

// acquire runs the initial-fix retry loop. On success the session is
// already Tracking with the returned snapshot stored.
func (s *Session) acquire(ctx context.Context, gen uint64, id string) (location.Snapshot, error) {
	n := s.opts.InitialFixAttempts
	var lastErr error
	for attempt := 1; attempt <= n; attempt++ {
		if ctx.Err() != nil {
			return location.Snapshot{}, fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
		}
		s.emit(Event{Kind: EventAcquireAttempt, SessionID: id, Attempt: attempt})

		// a provider that never answers must not stall the retry loop
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.InitialFixTimeout)
		fix, err := s.provider.CurrentFix(attemptCtx, gps.FixOptions{
			HighAccuracy: s.opts.EnableHighAccuracy,
			MaxAge:       s.opts.InitialFixMaxAge,
		})
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return location.Snapshot{}, fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
			}
			if errors.Is(err, context.DeadlineExceeded) {
				s.log.WithFields(logrus.Fields{"attempt": attempt, "timeout": s.opts.InitialFixTimeout}).Warn("initial fix attempt timed out")
			}
			lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
			s.emit(Event{Kind: EventAcquireFailed, SessionID: id, Attempt: attempt, Err: err})
		} else {
			s.mu.Lock()
			if s.gen != gen || s.state != StateAcquiring {
				s.mu.Unlock()
				return location.Snapshot{}, ErrStopped
			}
			c := s.candidate(fix)
			v := s.validator.Validate(c, s.vstate)
			if v.Accepted {
				snap := s.initialSnapshot(fix, c.Timestamp)
				s.vstate.SetLast(snap)
				s.snapshot = &snap
				s.state = StateTracking
				s.cancelAcquire = nil
				s.mu.Unlock()
				return snap, nil
			}
			rejections := s.vstate.Rejections()
			s.mu.Unlock()

			lastErr = fmt.Errorf("attempt %d: fix rejected (%s)", attempt, v.Reason)
			s.emit(Event{Kind: EventAcquireFailed, SessionID: id, Attempt: attempt, Reason: v.Reason, Rejections: rejections})
		}

		if attempt < n {
			timer := time.NewTimer(s.opts.InitialFixDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return location.Snapshot{}, fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
			case <-timer.C:
			}
		}
	}
	return location.Snapshot{}, fmt.Errorf("%w after %d attempts: %w", ErrAcquisitionExhausted, n, lastErr)
}

func (s *Session) abortAcquire(gen uint64, id string, err error) {
	s.mu.Lock()
	current := s.gen == gen && s.state == StateAcquiring
	if current {
		s.state = StateStopped
		s.cancelAcquire = nil
		if !isStopped(err) {
			s.lastError = fmt.Sprintf("unable to get a valid GPS fix after %d attempts", s.opts.InitialFixAttempts)
		}
	}
	s.mu.Unlock()

	if !current {
		return
	}
	if !isStopped(err) {
		s.emit(Event{Kind: EventError, SessionID: id, Err: err})
	}
	s.emit(Event{Kind: EventState, SessionID: id, State: StateStopped})
}

func (s *Session) initialSnapshot(fix gps.Fix, at time.Time) location.Snapshot {
	snap := location.Snapshot{
		Latitude:       fix.Latitude,
		Longitude:      fix.Longitude,
		Accuracy:       fix.Accuracy,
		Speed:          fix.Speed,
		Timestamp:      at,
		IsMoving:       s.moving(fix.Speed),
		IsValid:        true,
		SignalStrength: location.StrengthExcellent,
	}
	if h, ok := fixHeading(fix); ok {
		snap.Heading = h
		snap.SmoothedHeading = s.smoother.Smooth(h)
	}
	return snap
}

func (s *Session) candidate(fix gps.Fix) location.Candidate {
	at := fix.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	return location.Candidate{Lat: fix.Latitude, Lng: fix.Longitude, Accuracy: fix.Accuracy, Timestamp: at}
}

func (s *Session) moving(speed *float64) bool {
	return speed != nil && *speed > s.opts.MovingSpeedMps
}

func fixHeading(fix gps.Fix) (float64, bool) {
	if fix.Heading == nil || math.IsNaN(*fix.Heading) || math.IsInf(*fix.Heading, 0) {
		return 0, false
	}
	return heading.Normalize(*fix.Heading), true
}

// subscribe opens the fix stream and, when the provider has one, the
// compass stream. Both are released together on any failure.
func (s *Session) subscribe(gen uint64) error {
	fixSub, err := s.provider.WatchFix(gps.WatchOptions{
		HighAccuracy: s.opts.EnableHighAccuracy,
		MinInterval:  s.opts.TimeInterval,
		MinDistanceM: s.opts.DistanceIntervalM,
	}, func(fix gps.Fix) {
		s.handleFix(gen, fix)
	}, func(err error) {
		s.fail(gen, fmt.Errorf("fix stream: %w", err))
	})
	if err != nil {
		return fmt.Errorf("watch fixes: %w", err)
	}
	subs := []gps.Subscription{once(fixSub)}

	if hw, ok := s.provider.(gps.HeadingWatcher); ok {
		headSub, err := hw.WatchHeading(func(deg float64) {
			s.handleHeading(gen, deg)
		})
		if err != nil {
			s.release(subs)
			return fmt.Errorf("watch heading: %w", err)
		}
		subs = append(subs, once(headSub))
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateTracking {
		// stopped while subscribing
		s.mu.Unlock()
		s.release(subs)
		return nil
	}
	s.subs = subs
	s.mu.Unlock()
	return nil
}

func (s *Session) handleFix(gen uint64, fix gps.Fix) {
	s.proc.Lock()
	defer s.proc.Unlock()

	s.mu.Lock()
	if s.gen != gen || s.state != StateTracking || s.snapshot == nil {
		s.mu.Unlock()
		return
	}
	id := s.sessionID
	prev := *s.snapshot
	c := s.candidate(fix)

	v := s.validator.Check(c, s.vstate)
	if v.Accepted && fix.Accuracy != nil && *fix.Accuracy > s.opts.MinAccuracyM {
		v = location.Verdict{Reason: location.ReasonCoarseAccuracy, Distance: v.Distance}
	}
	s.vstate.Record(c, v)
	rejections := s.vstate.Rejections()

	var snap location.Snapshot
	var events []Event
	if v.Accepted {
		snap = location.Snapshot{
			Latitude:        fix.Latitude,
			Longitude:       fix.Longitude,
			Heading:         prev.Heading,
			SmoothedHeading: prev.SmoothedHeading,
			Accuracy:        fix.Accuracy,
			Speed:           fix.Speed,
			Timestamp:       c.Timestamp,
			IsMoving:        s.moving(fix.Speed),
			IsValid:         true,
			SignalStrength:  location.Classify(fix.Accuracy, rejections),
		}
		if h, ok := fixHeading(fix); ok {
			snap.Heading = h
			snap.SmoothedHeading = s.smoother.Smooth(h)
		}
		s.vstate.SetLast(snap)
		events = append(events, Event{Kind: EventAccepted, SessionID: id, Snapshot: snap})
	} else {
		snap = prev.Degraded(location.Classify(prev.Accuracy, rejections), c.Timestamp)
		events = append(events, Event{Kind: EventRejected, SessionID: id, Reason: v.Reason, Snapshot: snap, Rejections: rejections})
	}
	if snap.SignalStrength != prev.SignalStrength {
		events = append(events, Event{Kind: EventClassified, SessionID: id, Snapshot: snap, Rejections: rejections})
	}
	s.snapshot = &snap
	s.mu.Unlock()

	s.emit(events...)
	s.publish(snap)
}

func (s *Session) handleHeading(gen uint64, deg float64) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return
	}

	s.proc.Lock()
	defer s.proc.Unlock()

	s.mu.Lock()
	if s.gen != gen || s.state != StateTracking || s.snapshot == nil || !s.snapshot.IsValid {
		s.mu.Unlock()
		return
	}
	raw := heading.Normalize(deg)
	snap := s.snapshot.WithHeading(raw, s.smoother.Smooth(raw))
	s.snapshot = &snap
	id := s.sessionID
	s.mu.Unlock()

	s.emit(Event{Kind: EventHeading, SessionID: id, Snapshot: snap})
	s.publish(snap)
}

// fail ends a session after a provider stream error.
func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen || !s.running() {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.state = StateStopped
	s.lastError = err.Error()
	subs := s.subs
	s.subs = nil
	if s.cancelAcquire != nil {
		s.cancelAcquire()
		s.cancelAcquire = nil
	}
	id := s.sessionID
	s.mu.Unlock()

	s.release(subs)
	s.emit(
		Event{Kind: EventError, SessionID: id, Err: err},
		Event{Kind: EventState, SessionID: id, State: StateStopped},
	)
}

// Stop releases the provider streams and abandons a running acquisition.
// The last snapshot stays readable.
func (s *Session) Stop() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	if s.cancelAcquire != nil {
		s.cancelAcquire()
		s.cancelAcquire = nil
	}
	changed := s.running()
	s.gen++
	if changed {
		s.state = StateStopped
	}
	id := s.sessionID
	s.mu.Unlock()

	s.release(subs)
	if changed {
		s.emit(Event{Kind: EventState, SessionID: id, State: StateStopped})
	}
}

// Reset stops the session and forgets the snapshot, validation state and
// last error. Permission is kept.
func (s *Session) Reset() {
	s.Stop()

	s.mu.Lock()
	changed := s.state != StateIdle
	s.snapshot = nil
	s.vstate.Reset()
	s.smoother.Reset()
	s.lastError = ""
	s.state = StateIdle
	id := s.sessionID
	s.sessionID = ""
	s.mu.Unlock()

	if changed {
		s.emit(Event{Kind: EventState, SessionID: id, State: StateIdle})
	}
}

func isStopped(err error) bool {
	return err != nil && errors.Is(err, ErrStopped)
}

// once makes Cancel idempotent.
func once(sub gps.Subscription) gps.Subscription {
	var o sync.Once
	return gps.SubscriptionFunc(func() {
		o.Do(sub.Cancel)
	})
}

// release cancels every subscription even if one of them panics.
func (s *Session) release(subs []gps.Subscription) {
	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.WithField("panic", r).Warn("subscription cancel panicked")
				}
			}()
			sub.Cancel()
		}()
	}
}
