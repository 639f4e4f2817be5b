// Package upload stores syllabus files on local disk or in R2.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/r2client"
)

// URLPrefix is the route that serves stored files.
const URLPrefix = "/uploads/"

// allowedTypes maps accepted extensions to the content type they are served with.
var allowedTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
}

// ErrTooLarge is returned when a file exceeds the configured limit.
var ErrTooLarge = errors.New("upload: file too large")

// Store persists uploaded files by generated name.
type Store interface {
	// Save stores r and returns the URL the file is reachable at.
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	// Open returns a stored file by the name part of its URL.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes the file behind a URL returned by Save. Unknown URLs are ignored.
	Delete(ctx context.Context, url string) error
	Backend() string
}

// MetricsRecorder receives upload outcomes.
type MetricsRecorder interface {
	RecordUpload(backend, status string)
}

// ContentType returns the served content type for a stored name.
func ContentType(name string) string {
	if ct, ok := allowedTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// generateName validates the client filename and returns a fresh stored name.
func generateName(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedTypes[ext]; !ok {
		return "", domerrors.NewValidationError("syllabus", fmt.Sprintf("file type %q is not allowed", ext))
	}
	return uuid.NewString() + ext, nil
}

// validName accepts only names generateName can produce.
func validName(name string) bool {
	ext := filepath.Ext(name)
	if _, ok := allowedTypes[ext]; !ok {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(name, ext))
	return err == nil
}

// capped fails reads beyond limit bytes with *http.MaxBytesError.
func capped(r io.Reader, limit int64) io.Reader {
	return http.MaxBytesReader(nil, io.NopCloser(r), limit)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// LocalStore keeps files in a directory served under URLPrefix.
type LocalStore struct {
	dir      string
	maxBytes int64
	metrics  MetricsRecorder
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes}, nil
}

// SetMetrics sets the outcome recorder.
func (s *LocalStore) SetMetrics(m MetricsRecorder) { s.metrics = m }

// Backend implements Store.
func (s *LocalStore) Backend() string { return "local" }

// Save implements Store.
func (s *LocalStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	url, err := s.save(filename, r)
	record(s.metrics, s.Backend(), err)
	if err != nil {
		slog.WarnContext(ctx, "syllabus upload rejected", "filename", filename, "error", err)
		return "", err
	}
	slog.InfoContext(ctx, "syllabus stored", "backend", s.Backend(), "url", url)
	return url, nil
}

func (s *LocalStore) save(filename string, r io.Reader) (string, error) {
	name, err := generateName(filename)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.dir, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	_, copyErr := io.Copy(f, capped(r, s.maxBytes))
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(dst)
		if tooLarge(err) {
			return "", ErrTooLarge
		}
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return URLPrefix + name, nil
}

// Open implements Store.
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !validName(name) {
		return nil, domerrors.ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domerrors.ErrNotFound
	}
	return f, err
}

// Delete implements Store.
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	name, ok := strings.CutPrefix(url, URLPrefix)
	if !ok || !validName(name) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	slog.InfoContext(ctx, "syllabus deleted", "backend", s.Backend(), "url", url)
	return nil
}

// ObjectStore is the subset of r2client.Client used by R2Store.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// R2Store keeps files in object storage under a key prefix. With a public
// base URL files link there directly; otherwise they are proxied under URLPrefix.
type R2Store struct {
	objects   ObjectStore
	prefix    string
	publicURL string
	maxBytes  int64
	metrics   MetricsRecorder
}

// NewR2Store creates an object-storage backed store.
func NewR2Store(objects ObjectStore, prefix, publicURL string, maxBytes int64) *R2Store {
	return &R2Store{
		objects:   objects,
		prefix:    strings.Trim(prefix, "/"),
		publicURL: strings.TrimSuffix(publicURL, "/"),
		maxBytes:  maxBytes,
	}
}

// SetMetrics sets the outcome recorder.
func (s *R2Store) SetMetrics(m MetricsRecorder) { s.metrics = m }

// Backend implements Store.
func (s *R2Store) Backend() string { return "r2" }

func (s *R2Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *R2Store) url(name string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + s.key(name)
	}
	return URLPrefix + name
}

// Save implements Store.
func (s *R2Store) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name, err := generateName(filename)
	if err == nil {
		err = s.upload(ctx, name, r)
	}
	record(s.metrics, s.Backend(), err)
	if err != nil {
		slog.WarnContext(ctx, "syllabus upload failed", "filename", filename, "error", err)
		return "", err
	}
	url := s.url(name)
	slog.InfoContext(ctx, "syllabus stored", "backend", s.Backend(), "url", url)
	return url, nil
}

// upload buffers the file so the SDK gets a seekable body with a known length.
func (s *R2Store) upload(ctx context.Context, name string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, capped(r, s.maxBytes)); err != nil {
		if tooLarge(err) {
			return ErrTooLarge
		}
		return fmt.Errorf("failed to read upload: %w", err)
	}
	_, err := s.objects.Upload(ctx, s.key(name), bytes.NewReader(buf.Bytes()), ContentType(name))
	return err
}

// Open implements Store.
func (s *R2Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !validName(name) {
		return nil, domerrors.ErrNotFound
	}
	body, err := s.objects.Download(ctx, s.key(name))
	if errors.Is(err, r2client.ErrNotFound) {
		return nil, domerrors.ErrNotFound
	}
	return body, err
}

// Delete implements Store.
func (s *R2Store) Delete(ctx context.Context, url string) error {
	var name string
	if s.publicURL != "" {
		if rest, ok := strings.CutPrefix(url, s.publicURL+"/"); ok {
			name = path.Base(rest)
		}
	}
	if rest, ok := strings.CutPrefix(url, URLPrefix); ok {
		name = rest
	}
	if !validName(name) {
		return nil
	}
	if err := s.objects.Delete(ctx, s.key(name)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "syllabus deleted", "backend", s.Backend(), "url", url)
	return nil
}

func record(m MetricsRecorder, backend string, err error) {
	if m == nil {
		return
	}
	switch {
	case err == nil:
		m.RecordUpload(backend, "success")
	case errors.Is(err, ErrTooLarge), domerrors.IsInvalidInput(err):
		m.RecordUpload(backend, "rejected")
	default:
		m.RecordUpload(backend, "error")
	}
}
