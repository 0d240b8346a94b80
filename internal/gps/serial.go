// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

// SerialProvider reads NMEA from a GPS receiver on a serial port and
// implements Provider on top of a Feed.
type SerialProvider struct {
	opts serial.OpenOptions
	log  logrus.FieldLogger
	feed *Feed

	mu     sync.Mutex
	port   io.ReadWriteCloser
	opened bool

	// open is swapped in tests
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)
}

// NewSerialProvider prepares a provider for portName at baud. The port is
// opened by RequestPermission or Open.
func NewSerialProvider(portName string, baud int, log logrus.FieldLogger) *SerialProvider {
	return &SerialProvider{
		// NOTE: adjust PortName to match your setup: /dev/serial0, /dev/ttyAMA0, /dev/ttyUSB0, etc.
		opts: serial.OpenOptions{
			PortName:              portName,
			BaudRate:              uint(baud),
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		},
		log:  log,
		feed: NewFeed(),
		open: serial.Open,
	}
}

// Feed exposes the underlying fix feed.
func (p *SerialProvider) Feed() *Feed { return p.feed }

// Open opens the serial port and starts the reader goroutine. Calling it
// again while open is a no-op.
func (p *SerialProvider) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened {
		return nil
	}
	port, err := p.open(p.opts)
	if err != nil {
		return fmt.Errorf("open GPS serial port %s: %w", p.opts.PortName, err)
	}
	p.port = port
	p.opened = true
	p.log.WithFields(logrus.Fields{
		"port": p.opts.PortName,
		"baud": p.opts.BaudRate,
	}).Info("GPS serial port opened")

	go p.readLoop(port)
	return nil
}

// Run reads NMEA lines from r into the feed until r fails. It is the body
// of the reader goroutine and is usable directly with any io.Reader.
func (p *SerialProvider) Run(r io.Reader) error {
	reader := bufio.NewReader(r)
	dec := NewDecoder()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		fix, ok, err := dec.Decode(line)
		if err != nil {
			// noisy GPS or partial sentences
			p.log.WithError(err).Debug("NMEA parse error")
			continue
		}
		if ok {
			p.feed.Push(fix)
		}
	}
}

// readLoop drops a failed port so the next Open reopens the device.
func (p *SerialProvider) readLoop(port io.ReadWriteCloser) {
	err := p.Run(port)
	p.mu.Lock()
	current := p.opened && p.port == port
	if current {
		p.opened = false
		p.port = nil
	}
	p.mu.Unlock()
	if !current {
		// closed by Close
		return
	}
	if cerr := port.Close(); cerr != nil {
		p.log.WithError(cerr).Debug("closing failed GPS port")
	}
	p.log.WithError(err).Error("GPS read error")
	p.feed.Fail(fmt.Errorf("gps serial read: %w", err))
}

// RequestPermission opens the port; access errors mean denied.
func (p *SerialProvider) RequestPermission(ctx context.Context) (Permission, error) {
	if err := p.Open(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return PermissionDenied, nil
		}
		return PermissionDenied, err
	}
	return PermissionGranted, nil
}

func (p *SerialProvider) CurrentFix(ctx context.Context, opts FixOptions) (Fix, error) {
	if err := p.Open(); err != nil {
		return Fix{}, err
	}
	return p.feed.CurrentFix(ctx, opts)
}

func (p *SerialProvider) WatchFix(opts WatchOptions, onFix func(Fix), onError func(error)) (Subscription, error) {
	if err := p.Open(); err != nil {
		return nil, err
	}
	return p.feed.Watch(opts, onFix, onError)
}

// Close closes the port and the feed.
func (p *SerialProvider) Close() error {
	p.mu.Lock()
	if !p.opened {
		p.mu.Unlock()
		p.feed.Close()
		return nil
	}
	p.opened = false
	port := p.port
	p.port = nil
	p.mu.Unlock()

	// the reader goroutine exits once the blocked read fails
	err := port.Close()
	p.feed.Close()
	return err
}
