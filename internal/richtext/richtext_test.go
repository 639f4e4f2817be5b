package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"plain passthrough", "  Intro to   algorithms ", "Intro to algorithms"},
		{"paragraphs", "<p>First</p><p>Second</p>", "First Second"},
		{"inline markup", "<p>Learn <strong>graphs</strong> &amp; trees</p>", "Learn graphs & trees"},
		{"list items", "<ul><li>BFS</li><li>DFS</li></ul>", "BFS DFS"},
		{"drops scripts", "<p>Safe</p><script>alert(1)</script>", "Safe"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.html))
		})
	}
}

func TestSummary(t *testing.T) {
	html := "<p>An introduction to data structures, algorithms, and complexity.</p>"

	assert.Equal(t, "An introduction to data structures, algorithms, and complexity.", Summary(html, 0))
	assert.Equal(t, "An introduction to data…", Summary(html, 28))
	assert.Equal(t, "An introduction to data structures, algorithms, and complexity.", Summary(html, 500))
}
