// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoFix is returned when a provider cannot produce a fix in time.
	ErrNoFix = errors.New("gps: no fix available")

	// ErrClosed is returned by a provider after Close.
	ErrClosed = errors.New("gps: provider closed")
)

// Permission is the outcome of a location permission request.
type Permission int

const (
	PermissionDenied Permission = iota
	PermissionGranted
)

func (p Permission) String() string {
	if p == PermissionGranted {
		return "granted"
	}
	return "denied"
}

// FixOptions tune a one-shot CurrentFix request.
type FixOptions struct {
	HighAccuracy bool
	// MaxAge is the oldest cached fix the caller accepts. Zero forces a
	// fresh fix.
	MaxAge time.Duration
}

// WatchOptions tune a continuous WatchFix subscription.
type WatchOptions struct {
	HighAccuracy bool
	MinInterval  time.Duration
	MinDistanceM float64
}

// Subscription is a live provider stream. Cancel stops delivery.
type Subscription interface {
	Cancel()
}

// Provider is the device location capability the tracking session consumes.
type Provider interface {
	RequestPermission(ctx context.Context) (Permission, error)
	CurrentFix(ctx context.Context, opts FixOptions) (Fix, error)
	// WatchFix delivers fixes to onFix until the subscription is cancelled.
	// onError reports a failure of the stream itself; no further fixes are
	// delivered after it.
	WatchFix(opts WatchOptions, onFix func(Fix), onError func(error)) (Subscription, error)
}

// HeadingWatcher is implemented by providers that also have a compass.
type HeadingWatcher interface {
	WatchHeading(onHeading func(float64)) (Subscription, error)
}

// SubscriptionFunc adapts a plain function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Cancel() { f() }
