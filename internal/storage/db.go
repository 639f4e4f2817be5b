// Package storage provides the query compatibility layer over the embedded
// SQLite engine. Callers issue statements written in the server-database
// dialect (or typed statements) and receive plain row/result values.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

const memoryPath = ":memory:"

// defaultSlowQueryThreshold is the duration above which a statement is logged at warn level.
const defaultSlowQueryThreshold = 100 * time.Millisecond

// connectionPragmas are applied by the driver to every pooled connection.
// foreign_keys is per-connection in SQLite, so it must not be set with a one-off Exec.
var connectionPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(30000)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// DB is the shared engine handle. It is created once at startup and passed
// explicitly to every model store.
type DB struct {
	conn          *sql.DB
	path          string
	metrics       MetricsRecorder
	slowThreshold time.Duration
}

// MetricsRecorder receives per-statement observations.
type MetricsRecorder interface {
	RecordQuery(kind, status string, duration float64)
	RecordUpsertFallback(table string)
}

// New opens (creating if needed) the database file at dbPath and initializes the schema.
// ":memory:" opens a private in-memory database limited to a single connection.
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath != memoryPath {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", buildDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == memoryPath {
		// Every new connection to :memory: is a different database.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
	}
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn:          conn,
		path:          dbPath,
		slowThreshold: defaultSlowQueryThreshold,
	}

	if err := InitSchema(ctx, db); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.DebugContext(ctx, "database opened", "path", dbPath)
	return db, nil
}

func buildDSN(dbPath string) string {
	params := url.Values{}
	for _, p := range connectionPragmas {
		params.Add("_pragma", p)
	}
	if dbPath == memoryPath {
		return "file::memory:?" + params.Encode()
	}
	return "file:" + dbPath + "?" + params.Encode()
}

// Close closes every pooled connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// SetMetrics sets the metrics recorder for statement observations
func (db *DB) SetMetrics(recorder MetricsRecorder) {
	db.metrics = recorder
}

// SetSlowQueryThreshold overrides the slow statement warning threshold.
func (db *DB) SetSlowQueryThreshold(d time.Duration) {
	if d > 0 {
		db.slowThreshold = d
	}
}

// Ping verifies the engine is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Query classifies and runs a dialect statement on any pooled connection.
func (db *DB) Query(ctx context.Context, query string, params ...any) (*Result, error) {
	return db.runText(ctx, db.conn, query, params)
}

// Exec runs a typed statement on any pooled connection.
func (db *DB) Exec(ctx context.Context, stmt Statement) (*Result, error) {
	return db.run(ctx, db.conn, stmt)
}

// CreateSnapshot writes a consistent copy of the database to destPath.
func (db *DB) CreateSnapshot(ctx context.Context, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	_ = os.Remove(destPath)

	// VACUUM has no dialect classification and takes the fallback write path.
	if _, err := db.Query(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// NewTestDB creates an in-memory database for tests that never hold a Conn
// while issuing pool-level queries.
func NewTestDB() (*DB, error) {
	return New(context.Background(), memoryPath)
}
