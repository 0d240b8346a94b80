// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import "time"

// historySize bounds the accepted-position history.
const historySize = 10

// Position is one accepted (lat, lng, timestamp) entry.
type Position struct {
	Lat       float64
	Lng       float64
	Timestamp time.Time
}

// ValidationState is the mutable state a Validator reads. It belongs to a
// single tracking session and is not safe for concurrent use.
type ValidationState struct {
	last       *Snapshot
	history    []Position
	rejections int
}

// NewValidationState returns an empty state.
func NewValidationState() *ValidationState {
	return &ValidationState{history: make([]Position, 0, historySize)}
}

// Record applies a verdict for c: acceptance clears the rejection streak
// and appends c to the history, rejection extends the streak.
func (st *ValidationState) Record(c Candidate, v Verdict) {
	if !v.Accepted {
		st.rejections++
		return
	}
	st.rejections = 0
	if len(st.history) == historySize {
		copy(st.history, st.history[1:])
		st.history = st.history[:historySize-1]
	}
	st.history = append(st.history, Position{Lat: c.Lat, Lng: c.Lng, Timestamp: c.Timestamp})
}

// SetLast stores the snapshot built from the latest accepted fix.
func (st *ValidationState) SetLast(s Snapshot) {
	st.last = &s
}

// Last returns the last accepted snapshot, if any.
func (st *ValidationState) Last() (Snapshot, bool) {
	if st.last == nil {
		return Snapshot{}, false
	}
	return *st.last, true
}

// Rejections is the current consecutive-rejection count.
func (st *ValidationState) Rejections() int { return st.rejections }

// History returns a copy of the accepted positions, oldest first.
func (st *ValidationState) History() []Position {
	out := make([]Position, len(st.history))
	copy(out, st.history)
	return out
}

// Reset clears everything.
func (st *ValidationState) Reset() {
	st.last = nil
	st.history = st.history[:0]
	st.rejections = 0
}
