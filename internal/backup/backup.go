// Package backup uploads compressed database snapshots to object storage
// and restores the newest one.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/csdept/csweb/internal/r2client"
)

const (
	keyLayout = "20060102T150405Z"
	keySuffix = ".db.zst"
	zstdType  = "application/zstd"
)

// ErrNoBackup is returned by RestoreLatest when the prefix holds no snapshot.
var ErrNoBackup = errors.New("backup: no snapshot found")

// ObjectStore is the subset of r2client.Client used here.
type ObjectStore interface {
	UploadIfAbsent(ctx context.Context, key string, body io.Reader, contentType string) (bool, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]r2client.Object, error)
	Delete(ctx context.Context, key string) error
}

// Snapshotter writes a consistent copy of the database to a path.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context, destPath string) error
}

// MetricsRecorder receives backup outcomes.
type MetricsRecorder interface {
	RecordBackup(status string, duration float64, size int64)
}

// Config holds backup settings.
type Config struct {
	KeyPrefix string        // e.g. "backups"
	Interval  time.Duration // snapshot slot width; keys are truncated to it
	Keep      int           // newest snapshots retained
	TempDir   string
}

// Result describes a completed run.
type Result struct {
	Key     string
	Size    int64
	Skipped bool // another instance already uploaded this slot
	Pruned  int
}

// Manager runs backups.
type Manager struct {
	store   ObjectStore
	cfg     Config
	metrics MetricsRecorder
	now     func() time.Time
}

// New creates a backup manager.
func New(store ObjectStore, cfg Config) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Keep < 1 {
		cfg.Keep = 1
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &Manager{store: store, cfg: cfg, now: time.Now}
}

// SetMetrics sets the outcome recorder.
func (m *Manager) SetMetrics(r MetricsRecorder) {
	m.metrics = r
}

// Key returns the object key for the slot containing t.
func (m *Manager) Key(t time.Time) string {
	t = t.UTC()
	if m.cfg.Interval > 0 {
		t = t.Truncate(m.cfg.Interval)
	}
	name := "csweb-" + t.Format(keyLayout) + keySuffix
	if m.cfg.KeyPrefix == "" {
		return name
	}
	return m.cfg.KeyPrefix + "/" + name
}

func (m *Manager) listPrefix() string {
	if m.cfg.KeyPrefix == "" {
		return "csweb-"
	}
	return m.cfg.KeyPrefix + "/csweb-"
}

// Run snapshots db, compresses it and uploads it under the current slot's
// key. Keys are written with a conditional put, so replicas sharing a
// bucket upload each slot once.
func (m *Manager) Run(ctx context.Context, db Snapshotter) (*Result, error) {
	start := m.now()
	res, err := m.run(ctx, db, start)
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case res.Skipped:
		status = "skipped"
	}
	if m.metrics != nil {
		var size int64
		if res != nil {
			size = res.Size
		}
		m.metrics.RecordBackup(status, time.Since(start).Seconds(), size)
	}
	if err != nil {
		slog.ErrorContext(ctx, "database backup failed", "error", err)
		return nil, err
	}
	slog.InfoContext(ctx, "database backup finished",
		"key", res.Key, "size", res.Size, "skipped", res.Skipped, "pruned", res.Pruned)
	return res, nil
}

func (m *Manager) run(ctx context.Context, db Snapshotter, at time.Time) (*Result, error) {
	key := m.Key(at)
	snapshotPath := filepath.Join(m.cfg.TempDir, fmt.Sprintf("csweb_snapshot_%d.db", at.UnixNano()))
	compressedPath := snapshotPath + ".zst"
	defer os.Remove(snapshotPath)
	defer os.Remove(compressedPath)

	if err := db.CreateSnapshot(ctx, snapshotPath); err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	size, err := r2client.CompressFile(snapshotPath, compressedPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(compressedPath)
	if err != nil {
		return nil, fmt.Errorf("open compressed snapshot: %w", err)
	}
	defer f.Close()

	created, err := m.store.UploadIfAbsent(ctx, key, f, zstdType)
	if err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}
	res := &Result{Key: key, Size: size, Skipped: !created}
	if !created {
		return res, nil
	}

	pruned, err := m.prune(ctx)
	if err != nil {
		// The snapshot itself is safe.
		slog.WarnContext(ctx, "failed to prune old backups", "error", err)
	}
	res.Pruned = pruned
	return res, nil
}

// snapshots lists backup keys, oldest first.
func (m *Manager) snapshots(ctx context.Context) ([]string, error) {
	objects, err := m.store.List(ctx, m.listPrefix())
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, keySuffix) {
			keys = append(keys, obj.Key)
		}
	}
	// Timestamped names sort chronologically.
	return keys, nil
}

func (m *Manager) prune(ctx context.Context) (int, error) {
	keys, err := m.snapshots(ctx)
	if err != nil {
		return 0, err
	}
	excess := len(keys) - m.cfg.Keep
	pruned := 0
	for i := 0; i < excess; i++ {
		if err := m.store.Delete(ctx, keys[i]); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// RestoreLatest downloads the newest snapshot into destPath.
// It returns the restored key, or ErrNoBackup.
func (m *Manager) RestoreLatest(ctx context.Context, destPath string) (string, error) {
	keys, err := m.snapshots(ctx)
	if err != nil {
		return "", fmt.Errorf("list backups: %w", err)
	}
	if len(keys) == 0 {
		return "", ErrNoBackup
	}
	key := keys[len(keys)-1]

	body, err := m.store.Download(ctx, key)
	if err != nil {
		return "", fmt.Errorf("download backup %q: %w", key, err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("create database directory: %w", err)
	}
	tmp := destPath + ".restore"
	if err := r2client.DecompressStream(body, tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, destPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("install restored database: %w", err)
	}
	slog.InfoContext(ctx, "database restored from backup", "key", key, "path", destPath)
	return key, nil
}
