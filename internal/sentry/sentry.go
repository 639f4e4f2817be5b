// Package sentry wraps the Sentry SDK for panic and 5xx error reporting.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds Sentry client settings.
type Config struct {
	// DSN enables reporting when non-empty.
	DSN string

	// Environment identifies the deployment (e.g. "production", "staging").
	Environment string

	// Release identifies the build, usually buildinfo.Version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, 0 means 1.0).
	SampleRate float64

	Debug bool
}

// Initialize sets up the global Sentry client.
// An empty DSN disables reporting and returns nil.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return nil
}

// Flush waits for buffered events to be sent.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled reports whether a client is installed.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureExceptionWithContext reports err on the request's hub when
// sentrygin attached one, else on the global hub.
func CaptureExceptionWithContext(ctx context.Context, err error) {
	if !IsEnabled() {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
