package event

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewStore(db)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestStore_CRUD(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	e, err := s.Create(ctx, Input{
		Title:       " Open House ",
		Description: "<p>Meet the <b>faculty</b>.</p>",
		StartDate:   "2026-04-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "Open House", e.Title)
	assert.Equal(t, "Meet the faculty.", e.Summary)
	assert.Empty(t, e.EndDate)

	updated, err := s.Update(ctx, e.ID, Input{Title: "Open House", StartDate: "2026-04-02", EndDate: "2026-04-03"})
	require.NoError(t, err)
	assert.Equal(t, "2026-04-02", updated.StartDate)
	assert.Equal(t, "2026-04-03", updated.EndDate)

	require.NoError(t, s.Delete(ctx, e.ID))
	assert.ErrorIs(t, s.Delete(ctx, e.ID), domerrors.ErrNotFound)

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.Update(ctx, e.ID, Input{Title: "x", StartDate: "2026-04-02"})
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestStore_Validation(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
	}{
		{"missing title", Input{StartDate: "2026-04-01"}},
		{"bad start", Input{Title: "x", StartDate: "April 1"}},
		{"bad end", Input{Title: "x", StartDate: "2026-04-01", EndDate: "soon"}},
		{"end before start", Input{Title: "x", StartDate: "2026-04-02", EndDate: "2026-04-01"}},
	}
	for _, tt := range tests {
		_, err := s.Create(ctx, tt.in)
		assert.True(t, domerrors.IsInvalidInput(err), tt.name)
	}
}

func TestStore_Upcoming(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	for _, in := range []Input{
		{Title: "past", StartDate: "2026-03-01"},
		{Title: "ongoing", StartDate: "2026-03-09", EndDate: "2026-03-11"},
		{Title: "today", StartDate: "2026-03-10T18:00"},
		{Title: "future", StartDate: "2026-05-01"},
	} {
		_, err := s.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	upcoming, err := s.Upcoming(ctx)
	require.NoError(t, err)
	titles := make([]string, 0, len(upcoming))
	for _, e := range upcoming {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"ongoing", "today", "future"}, titles)
}
