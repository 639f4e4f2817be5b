// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/csdept/csweb/internal/admin"
	"github.com/csdept/csweb/internal/auth"
	"github.com/csdept/csweb/internal/backup"
	"github.com/csdept/csweb/internal/buildinfo"
	"github.com/csdept/csweb/internal/calendar"
	"github.com/csdept/csweb/internal/compexam"
	"github.com/csdept/csweb/internal/config"
	"github.com/csdept/csweb/internal/course"
	"github.com/csdept/csweb/internal/event"
	"github.com/csdept/csweb/internal/faculty"
	"github.com/csdept/csweb/internal/handler"
	"github.com/csdept/csweb/internal/logger"
	"github.com/csdept/csweb/internal/metrics"
	"github.com/csdept/csweb/internal/r2client"
	"github.com/csdept/csweb/internal/ratelimit"
	"github.com/csdept/csweb/internal/sentry"
	"github.com/csdept/csweb/internal/storage"
	"github.com/csdept/csweb/internal/upload"
)

// syllabusPrefix is the object key prefix for syllabus files in R2.
const syllabusPrefix = "syllabi"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *storage.DB
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	objects  *r2client.Client        // nil without R2
	backups  *backup.Manager         // nil when backups are disabled
	writes   *ratelimit.KeyedLimiter // nil when admin writes are unlimited
	router   *gin.Engine
	server   *http.Server
	wg       sync.WaitGroup // background jobs, drained before the database closes
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(logger.Options{
		Level:            cfg.LogLevel,
		BetterStackToken: cfg.BetterStackToken,
	})
	log = log.WithField("service", "csweb").WithField("version", buildinfo.Version)
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}
	// Package-level slog.*Context calls go through the ContextHandler.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	var objects *r2client.Client
	if cfg.R2Enabled() {
		var err error
		objects, err = r2client.New(ctx, r2client.Config{
			AccountID:   cfg.R2AccountID,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		log.WithField("bucket", objects.Bucket()).Info("R2 object storage enabled")
	}

	var backups *backup.Manager
	if objects != nil {
		backups = backup.New(objects, backup.Config{
			KeyPrefix: cfg.BackupKeyPrefix,
			Interval:  cfg.BackupInterval,
			Keep:      cfg.BackupKeep,
		})
		backups.SetMetrics(m)
	}

	if cfg.RestoreOnStart {
		if err := restoreIfMissing(ctx, log, backups, cfg.DBPath); err != nil {
			return nil, err
		}
	}

	db, err := storage.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	db.SetMetrics(m)
	db.SetSlowQueryThreshold(config.SlowQuery)
	log.WithField("path", cfg.DBPath).Info("Database connected")

	admins := admin.NewStore(db)
	if err := admins.Bootstrap(ctx, cfg.AdminBootstrap); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("admin bootstrap: %w", err)
	}

	uploads, err := newUploadStore(cfg, objects, m)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("uploads: %w", err)
	}
	log.WithField("backend", uploads.Backend()).Info("Syllabus storage ready")

	courses := course.NewStore(db)
	courses.SetMetrics(m)

	h := handler.New(handler.Deps{
		Courses:  courses,
		Events:   event.NewStore(db),
		CompExam: compexam.NewStore(db),
		Calendar: calendar.NewStore(db),
		Faculty:  faculty.NewStore(db),
		Admins:   admins,
		Uploads:  uploads,
		Metrics:  m,
	})

	app := &Application{
		cfg:      cfg,
		logger:   log,
		db:       db,
		metrics:  m,
		registry: registry,
		objects:  objects,
		router:   newRouter(cfg, log, m),
	}
	if cfg.BackupInterval > 0 {
		app.backups = backups
	}
	if cfg.AdminWritePerMinute > 0 {
		app.writes = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "admin_write",
			Burst:         float64(cfg.AdminWriteBurst),
			RefillRate:    float64(cfg.AdminWritePerMinute) / 60,
			CleanupPeriod: config.RateLimiterCleanup,
			Metrics:       m,
		})
	}

	verifier := auth.NewVerifier(cfg.SSOSecret, cfg.SSOCookieName)
	app.router.Use(auth.Middleware(verifier, admins))

	app.router.GET("/livez", app.livenessCheck)
	app.router.HEAD("/livez", app.livenessCheck)
	app.router.GET("/readyz", app.readinessCheck)
	app.router.HEAD("/readyz", app.readinessCheck)
	app.router.GET("/metrics",
		metricsAuthMiddleware(cfg.MetricsAuthEnabled(), cfg.MetricsUsername, cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	h.Register(app.router, auth.RequireAdmin(), adminWriteLimitMiddleware(app.writes))

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// restoreIfMissing pulls the newest backup when the database file does not exist yet.
func restoreIfMissing(ctx context.Context, log *logger.Logger, backups *backup.Manager, dbPath string) error {
	if _, err := os.Stat(dbPath); err == nil {
		return nil
	}
	if backups == nil {
		return errors.New("restore on start requires object storage")
	}

	key, err := backups.RestoreLatest(ctx, dbPath)
	switch {
	case errors.Is(err, backup.ErrNoBackup):
		log.Warn("No backup to restore; starting with an empty database")
		return nil
	case err != nil:
		return fmt.Errorf("restore database: %w", err)
	}
	log.WithField("key", key).Info("Database restored from backup")
	return nil
}

func newUploadStore(cfg *config.Config, objects *r2client.Client, m *metrics.Metrics) (upload.Store, error) {
	if objects != nil {
		s := upload.NewR2Store(objects, syllabusPrefix, cfg.R2PublicURL, cfg.UploadMaxBytes)
		s.SetMetrics(m)
		return s, nil
	}
	s, err := upload.NewLocalStore(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		return nil, err
	}
	s.SetMetrics(m)
	return s, nil
}

// Handler returns the HTTP handler; used by tests.
func (a *Application) Handler() http.Handler {
	return a.router
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "alive",
		"version": buildinfo.Version,
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheck)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"tables":   a.tableCounts(ctx),
		"features": gin.H{
			"object_storage": a.objects != nil,
			"backups":        a.backups != nil,
			"error_tracking": sentry.IsEnabled(),
		},
	})
}

// tableCounts returns row counts per table; tables that fail to count are omitted.
func (a *Application) tableCounts(ctx context.Context) map[string]int64 {
	counts := make(map[string]int64, len(storage.Tables))
	for _, table := range storage.Tables {
		res, err := a.db.Exec(ctx, storage.Select("SELECT COUNT(*) AS n FROM "+table))
		if err != nil {
			a.logger.WithError(err).WithField("table", table).Warn("Failed to count table rows")
			continue
		}
		counts[table] = res.First().Int64("n")
	}
	return counts
}

// Run starts the HTTP server and background jobs, then blocks until
// SIGINT/SIGTERM.
//
// Shutdown order: cancel background jobs, wait for them, then stop the
// server and close the database. A backup still running when the database
// closes would fail mid-snapshot.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.updateTableMetrics(ctx)
	})
	if a.backups != nil {
		a.wg.Go(func() {
			a.runBackups(ctx)
		})
	}
}

func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops the HTTP server and closes resources. Call it only after
// background jobs have returned.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if a.writes != nil {
		a.writes.Stop()
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if sentry.IsEnabled() && !sentry.Flush(2*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}
