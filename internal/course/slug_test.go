package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code, section, want string
	}{
		{"CPS 310", "01", "cps310-01"},
		{"CPS 310/510", "01", "cps310510-01"},
		{"CPS 493", "ML", "cps493-ml"},
		{"  cps  210 ", " 02 ", "cps210-02"},
		{"CPS 210", "", "cps210"},
		{"Café 101", "A", "cafe101-a"},
		{"CPS 493-L", "01", "cps493-l-01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.code, tt.section), "Slug(%q, %q)", tt.code, tt.section)
	}
}

func TestBaseCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "CPS 210", BaseCode("CPS 210/211"))
	assert.Equal(t, "CPS 310", BaseCode("CPS 310-L"))
	assert.Equal(t, "CPS 310", BaseCode(" CPS 310 "))
	assert.Equal(t, "CPS 493", BaseCode("CPS 493/593-L"))
}

func TestIsTopics(t *testing.T) {
	t.Parallel()
	assert.True(t, IsTopics("CPS 493"))
	assert.True(t, IsTopics("CPS 593"))
	// Substring test, not numeric equality.
	assert.True(t, IsTopics("CPS 4930"))
	assert.False(t, IsTopics("CPS 310"))
}

func TestValidCode(t *testing.T) {
	t.Parallel()
	for _, code := range []string{"CPS 310", "CPS310", "CPS 310/510", "CPS 493-L", "MAT 101A"} {
		assert.True(t, ValidCode(code), code)
	}
	for _, code := range []string{"", "310", "C 310", "CPS", "CPS 310; DROP TABLE"} {
		assert.False(t, ValidCode(code), code)
	}
}
