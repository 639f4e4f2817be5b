package upload

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/r2client"
)

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingMetrics) RecordUpload(backend, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[backend+"/"+status]++
}

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := NewLocalStore(filepath.Join(dir, "uploads"), 1024)
	require.NoError(t, err)
	m := &countingMetrics{}
	s.SetMetrics(m)
	ctx := context.Background()

	url, err := s.Save(ctx, "CPS310 Syllabus.PDF", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, URLPrefix))
	assert.True(t, strings.HasSuffix(url, ".pdf"))

	name := strings.TrimPrefix(url, URLPrefix)
	f, err := s.Open(ctx, name)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	require.NoError(t, s.Delete(ctx, url))
	_, err = s.Open(ctx, name)
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
	// Deleting again, or an unrelated URL, is a no-op.
	require.NoError(t, s.Delete(ctx, url))
	require.NoError(t, s.Delete(ctx, "https://elsewhere.edu/x.pdf"))

	assert.Equal(t, 1, m.counts["local/success"])
}

func TestLocalStore_AcceptsFileAtLimit(t *testing.T) {
	t.Parallel()
	s, err := NewLocalStore(t.TempDir(), 8)
	require.NoError(t, err)
	ctx := context.Background()

	url, err := s.Save(ctx, "edge.pdf", strings.NewReader(strings.Repeat("x", 8)))
	require.NoError(t, err)

	rc, err := s.Open(ctx, strings.TrimPrefix(url, URLPrefix))
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestLocalStore_Rejects(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := NewLocalStore(dir, 8)
	require.NoError(t, err)
	m := &countingMetrics{}
	s.SetMetrics(m)
	ctx := context.Background()

	_, err = s.Save(ctx, "evil.exe", strings.NewReader("MZ"))
	assert.True(t, domerrors.IsInvalidInput(err))

	_, err = s.Save(ctx, "big.pdf", strings.NewReader(strings.Repeat("x", 9)))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads must not leave files")
	assert.Equal(t, 2, m.counts["local/rejected"])
}

func TestLocalStore_OpenRejectsTraversal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("x"), 0o644))
	s, err := NewLocalStore(filepath.Join(dir, "uploads"), 1024)
	require.NoError(t, err)

	for _, name := range []string{"../secret.txt", "secret.txt", "", "x.pdf"} {
		_, err := s.Open(context.Background(), name)
		assert.ErrorIs(t, err, domerrors.ErrNotFound, name)
	}
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return "etag", nil
}

func (m *memoryObjects) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, r2client.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func TestR2Store_Proxied(t *testing.T) {
	t.Parallel()
	objects := newMemoryObjects()
	s := NewR2Store(objects, "/syllabi/", "", 1024)
	ctx := context.Background()

	url, err := s.Save(ctx, "notes.docx", strings.NewReader("doc"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, URLPrefix))
	name := strings.TrimPrefix(url, URLPrefix)
	assert.Contains(t, objects.objects, "syllabi/"+name)
	assert.Equal(t, ContentType(name), objects.types["syllabi/"+name])

	body, err := s.Open(ctx, name)
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "doc", string(data))

	require.NoError(t, s.Delete(ctx, url))
	_, err = s.Open(ctx, name)
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestR2Store_PublicURL(t *testing.T) {
	t.Parallel()
	objects := newMemoryObjects()
	s := NewR2Store(objects, "syllabi", "https://files.cs.edu/", 4)
	m := &countingMetrics{}
	s.SetMetrics(m)
	ctx := context.Background()

	url, err := s.Save(ctx, "a.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://files.cs.edu/syllabi/"))

	require.NoError(t, s.Delete(ctx, url))
	assert.Empty(t, objects.objects)

	_, err = s.Save(ctx, "b.pdf", strings.NewReader("too large"))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, 1, m.counts["r2/success"])
	assert.Equal(t, 1, m.counts["r2/rejected"])
}

func TestContentType(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "application/pdf", ContentType("x.PDF"))
	assert.Equal(t, "application/octet-stream", ContentType("x.bin"))
}
