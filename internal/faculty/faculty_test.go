package faculty

import (
	"context"
	"path/filepath"
	"testing"

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
	return NewStore(db)
}

func TestStore_MembersOrderedByName(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Zed Smith", "ada Lovelace", "Grace Hopper"} {
		_, err := s.Create(ctx, Input{Semester: "spring-2026", Name: name})
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, Input{Semester: "fall-2026", Name: "Other"})
	require.NoError(t, err)

	list, err := s.List(ctx, "spring-2026")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ada Lovelace", list[0].Name)
	assert.Equal(t, "Grace Hopper", list[1].Name)
	assert.Equal(t, "Zed Smith", list[2].Name)
}

func TestStore_UpdateDelete(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	m, err := s.Create(ctx, Input{Semester: "spring-2026", Name: "Ada", Office: "B12"})
	require.NoError(t, err)
	assert.Equal(t, "B12", m.Office)

	m, err = s.Update(ctx, m.ID, Input{Semester: "spring-2026", Name: "Ada Lovelace", Email: "ada@cs.edu"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", m.Name)
	assert.Empty(t, m.Office)

	require.NoError(t, s.Delete(ctx, m.ID))
	assert.ErrorIs(t, s.Delete(ctx, m.ID), domerrors.ErrNotFound)
	_, err = s.Update(ctx, m.ID, Input{Semester: "spring-2026", Name: "x"})
	assert.ErrorIs(t, err, domerrors.ErrNotFound)

	_, err = s.Create(ctx, Input{Semester: "spring-2026"})
	assert.True(t, domerrors.IsInvalidInput(err))
}

func TestStore_Publishing(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, Input{Semester: "spring-2026", Name: "Ada"})
	require.NoError(t, err)

	sem, err := s.Semester(ctx, "spring-2026")
	require.NoError(t, err)
	require.NotNil(t, sem)
	assert.False(t, sem.Published)

	hidden, err := s.ListPublished(ctx, "spring-2026")
	require.NoError(t, err)
	assert.Empty(t, hidden)

	sem, err = s.SetPublished(ctx, "spring-2026", true)
	require.NoError(t, err)
	assert.True(t, sem.Published)

	// Adding another member keeps the semester published.
	_, err = s.Create(ctx, Input{Semester: "spring-2026", Name: "Grace"})
	require.NoError(t, err)

	visible, err := s.ListPublished(ctx, "spring-2026")
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	sems, err := s.Semesters(ctx)
	require.NoError(t, err)
	require.Len(t, sems, 1)
	assert.True(t, sems[0].Published)

	missing, err := s.ListPublished(ctx, "fall-2030")
	require.NoError(t, err)
	assert.NotNil(t, missing)
	assert.Empty(t, missing)
}
