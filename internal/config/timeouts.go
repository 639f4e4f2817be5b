package config

import "time"

// HTTP server timeouts
const (
	// HTTPRead bounds reading a request, including multipart syllabus uploads.
	HTTPRead = 30 * time.Second

	// HTTPWrite bounds writing a response.
	HTTPWrite = 30 * time.Second

	// HTTPIdle is the keep-alive idle timeout.
	HTTPIdle = 120 * time.Second
)

// Database
const (
	// SlowQuery is the threshold above which statements are logged at warn level.
	SlowQuery = 100 * time.Millisecond

	// ReadinessCheck bounds the /readyz database probe.
	ReadinessCheck = 3 * time.Second
)

// Background jobs
const (
	// TableCountInterval is how often table row gauges are refreshed.
	TableCountInterval = 5 * time.Minute

	// BackupUpload bounds a single snapshot upload to object storage.
	BackupUpload = 10 * time.Minute

	// RateLimiterCleanup is how often idle per-editor buckets are dropped.
	RateLimiterCleanup = 10 * time.Minute
)
