// Package main provides the department website API server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/csdept/csweb/internal/app"
	"github.com/csdept/csweb/internal/buildinfo"
	"github.com/csdept/csweb/internal/config"
	"github.com/csdept/csweb/internal/sentry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize sentry: %v\n", err)
		return 1
	}
	defer sentry.Flush(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	application, err := app.Initialize(ctx, cfg)
	cancel()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		return 1
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		return 1
	}
	return 0
}
