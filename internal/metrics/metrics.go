// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Storage shim
	QueriesTotal         *prometheus.CounterVec
	QueryDurationSeconds *prometheus.HistogramVec
	UpsertFallbacksTotal *prometheus.CounterVec
	TableRows            *prometheus.GaugeVec

	// Course resolution
	CourseResolutionsTotal *prometheus.CounterVec
	GroupResolutionsTotal  *prometheus.CounterVec

	// HTTP
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	HTTPErrorsTotal            *prometheus.CounterVec
	RateLimitDropsTotal        *prometheus.CounterVec

	// Uploads and backups
	UploadsTotal          *prometheus.CounterVec
	BackupsTotal          *prometheus.CounterVec
	BackupDurationSeconds prometheus.Histogram
	BackupSizeBytes       prometheus.Gauge
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csweb_db_queries_total",
				Help: "Total statements executed by kind and status",
			},
			[]string{"kind", "status"}, // kind: read, insert, write, schema, upsert, other
		),

		QueryDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "csweb_db_query_duration_seconds",
				Help:    "Statement execution duration in seconds by kind",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"kind"},
		),

		UpsertFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csweb_db_upsert_fallbacks_total",
				Help: "Duplicate-key upserts that degraded to full-row replace",
			},
			[]string{"table"},
		),

		TableRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "csweb_db_table_rows",
				Help: "Row count per table, refreshed periodically",
			},
			[]string{"table"},
		),

		CourseResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csweb_course_resolutions_total",
				Help: "Course identifier resolutions by matching strategy",
			},
			[]string{"strategy"}, // strategy: numeric-id, exact-slug, code-prefix, friendly-name, none
		),

		GroupResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csweb_course_group_resolutions_total",
				Help: "Course group lookups by outcome",
			},
			[]string{"outcome"}, // outcome: found, not_found, error
		),

		HTTPRequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "csweb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route", "status"},
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csweb_http_errors_total",
				Help: "HTTP error responses by type and module",
			},
			[]string{"error_type", "module"}, // error_type: not_found, invalid_input, conflict, internal
		),

		RateLimitDropsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csweb_rate_limit_drops_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),

		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csweb_uploads_total",
				Help: "Syllabus uploads by backend and status",
			},
			[]string{"backend", "status"},
		),

		BackupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csweb_backups_total",
				Help: "Database backups by status",
			},
			[]string{"status"},
		),

		BackupDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "csweb_backup_duration_seconds",
				Help:    "Database backup duration in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300},
			},
		),

		BackupSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "csweb_backup_size_bytes",
				Help: "Compressed size of the last uploaded backup",
			},
		),
	}
}

// RecordQuery records one shim statement.
func (m *Metrics) RecordQuery(kind, status string, duration float64) {
	m.QueriesTotal.WithLabelValues(kind, status).Inc()
	m.QueryDurationSeconds.WithLabelValues(kind).Observe(duration)
}

// RecordUpsertFallback records a degraded upsert.
func (m *Metrics) RecordUpsertFallback(table string) {
	m.UpsertFallbacksTotal.WithLabelValues(table).Inc()
}

// SetTableRows sets the row gauge for table.
func (m *Metrics) SetTableRows(table string, n int64) {
	m.TableRows.WithLabelValues(table).Set(float64(n))
}

// RecordCourseResolution records which strategy resolved an identifier.
func (m *Metrics) RecordCourseResolution(strategy string) {
	m.CourseResolutionsTotal.WithLabelValues(strategy).Inc()
}

// RecordGroupResolution records a group lookup outcome.
func (m *Metrics) RecordGroupResolution(outcome string) {
	m.GroupResolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration float64) {
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route, status).Observe(duration)
}

// RecordHTTPError records an error response.
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordRateLimitDrop records a request rejected by the named limiter.
func (m *Metrics) RecordRateLimitDrop(limiter string) {
	m.RateLimitDropsTotal.WithLabelValues(limiter).Inc()
}

// RecordUpload records a syllabus upload.
func (m *Metrics) RecordUpload(backend, status string) {
	m.UploadsTotal.WithLabelValues(backend, status).Inc()
}

// RecordBackup records a finished backup attempt.
func (m *Metrics) RecordBackup(status string, duration float64, size int64) {
	m.BackupsTotal.WithLabelValues(status).Inc()
	m.BackupDurationSeconds.Observe(duration)
	if status == "success" {
		m.BackupSizeBytes.Set(float64(size))
	}
}
