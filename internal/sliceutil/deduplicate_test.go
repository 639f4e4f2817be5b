package sliceutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicate(t *testing.T) {
	t.Parallel()
	lower := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	tests := []struct {
		name  string
		items []string
		want  []string
	}{
		{name: "nil", items: nil, want: []string{}},
		{name: "no duplicates", items: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "keeps first spelling", items: []string{"Ada@x.edu", "ada@x.edu ", "b"}, want: []string{"Ada@x.edu", "b"}},
		{name: "drops empty keys", items: []string{" ", "a", ""}, want: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Deduplicate(tt.items, lower))
		})
	}
}

func TestDeduplicate_StructKey(t *testing.T) {
	t.Parallel()
	type day struct {
		Date   string
		Reason string
	}
	days := []day{{"2026-11-26", "Thanksgiving"}, {"2026-11-27", "Break"}, {"2026-11-26", "Duplicate"}}

	got := Deduplicate(days, func(d day) string { return d.Date })
	assert.Equal(t, []day{{"2026-11-26", "Thanksgiving"}, {"2026-11-27", "Break"}}, got)
}
