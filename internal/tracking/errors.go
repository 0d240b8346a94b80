// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import "errors"

// Sentinel errors for session commands. Rejected fixes are never errors;
// they only show up as a degraded signal tier.
var (
	// ErrPermissionDenied is returned when location access is refused.
	ErrPermissionDenied = errors.New("tracking: location permission denied")

	// ErrAcquisitionExhausted is returned when no initial fix passed
	// validation within the attempt budget.
	ErrAcquisitionExhausted = errors.New("tracking: could not acquire a valid initial fix")

	// ErrAlreadyRunning is returned by Start while acquiring or tracking.
	ErrAlreadyRunning = errors.New("tracking: session already running")

	// ErrStopped is returned by Start when Stop, Reset or ctx ends the
	// acquisition early.
	ErrStopped = errors.New("tracking: acquisition abandoned")
)
