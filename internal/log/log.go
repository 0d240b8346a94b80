// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package log holds the process-wide structured logger.
package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu     sync.Mutex
	logger *logrus.Logger
)

// Init configures the global logger. level is any logrus level name
// ("debug", "info", "warn", ...); format is "text" or "json". Unknown
// levels fall back to info and unknown formats to text.
func Init(level, format string) *logrus.Logger {
	return InitWriter(os.Stdout, level, format)
}

// InitWriter is Init writing to w.
func InitWriter(w io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// L returns the global logger, initializing it at info level on first use.
func L() *logrus.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return Init("info", "text")
	}
	return l
}

// Component returns a logger tagged with the component name.
func Component(name string) *logrus.Entry {
	return L().WithField("component", name)
}
