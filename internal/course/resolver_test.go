package course

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySource is a Source over a fixed slice that counts table scans.
type memorySource struct {
	rows  []Course
	scans int
	err   error
}

func (m *memorySource) CourseByID(_ context.Context, id int64) (*Course, error) {
	for i := range m.rows {
		if m.rows[i].ID == id {
			return &m.rows[i], nil
		}
	}
	return nil, nil
}

func (m *memorySource) CourseBySlug(_ context.Context, slug string) (*Course, error) {
	for i := range m.rows {
		if m.rows[i].Slug == slug {
			return &m.rows[i], nil
		}
	}
	return nil, nil
}

func (m *memorySource) AllCourses(context.Context) ([]Course, error) {
	m.scans++
	return m.rows, m.err
}

func catalog() *memorySource {
	return &memorySource{rows: []Course{
		{ID: 1, Code: "CPS 310", Name: "Data Structures", Section: "01", Slug: "cps310-01"},
		{ID: 2, Code: "CPS 310", Name: "Data Structures", Section: "02", Slug: "cps310-02"},
		{ID: 3, Code: "CPS 493", Name: "Machine Learning", Section: "ML", Slug: "cps493-ml"},
		{ID: 42, Code: "MAT 101", Name: "Calculus I", Section: "01", Slug: "mat101-01"},
	}}
}

func TestResolver_Strategies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		identifier string
		wantID     int64
		strategy   string
	}{
		{"numeric id", "42", 42, StrategyNumericID},
		{"exact slug", "cps310-02", 2, StrategyExactSlug},
		{"exact slug upper case", "CPS310-02", 2, StrategyExactSlug},
		{"code prefix", "cps310", 1, StrategyCodePrefix},
		{"code prefix upper case", "MAT101", 42, StrategyCodePrefix},
		{"friendly name", "cps493-machine-learning", 3, StrategyFriendlyName},
		{"friendly name partial", "cps493-machine", 3, StrategyFriendlyName},
		{"friendly name compact", "cps310-datastructures", 1, StrategyFriendlyName},
		{"surrounding space", "  cps310-01 ", 1, StrategyExactSlug},
	}
	r := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.Resolve(context.Background(), catalog(), tt.identifier)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.Course.ID)
			assert.Equal(t, tt.strategy, got.Strategy)
		})
	}
}

func TestResolver_NotFound(t *testing.T) {
	t.Parallel()
	r := NewResolver()
	for _, id := range []string{"", "   ", "999", "cps999", "cps310-compilers", "mat101-data-structures", "plainword"} {
		got, err := r.Resolve(context.Background(), catalog(), id)
		require.NoError(t, err, id)
		assert.Nil(t, got, id)
	}
}

func TestResolver_NumericIsTerminal(t *testing.T) {
	t.Parallel()
	src := catalog()
	// A numeric slug must not be reached through the slug strategies.
	src.rows = append(src.rows, Course{ID: 7, Code: "X 1", Slug: "310"})

	got, err := NewResolver().Resolve(context.Background(), src, "310")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, src.scans)

	got, err = NewResolver().Resolve(context.Background(), src, "99999999999999999999999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolver_ScansOnce(t *testing.T) {
	t.Parallel()
	src := catalog()

	// Both code-prefix passes share one table scan.
	_, err := NewResolver(CodePrefix{}, FriendlyName{}, CodePrefix{}).Resolve(context.Background(), src, "cps999")
	require.NoError(t, err)
	assert.Equal(t, 1, src.scans)
}

func TestResolver_PropagatesErrors(t *testing.T) {
	t.Parallel()
	src := catalog()
	src.err = errors.New("disk gone")

	_, err := NewResolver().Resolve(context.Background(), src, "cps999")
	assert.ErrorContains(t, err, "disk gone")
}

func TestResolver_CustomOrder(t *testing.T) {
	t.Parallel()
	got, err := NewResolver(CodePrefix{}).Resolve(context.Background(), catalog(), "cps310-02")
	require.NoError(t, err)
	assert.Nil(t, got)
}
