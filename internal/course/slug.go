package course

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugStripPattern = regexp.MustCompile(`[^a-z0-9-]`)
	codeFormPattern  = regexp.MustCompile(`^[A-Za-z]{2,6}\s*\d{1,4}[A-Za-z]?(\s*[/-]\s*[A-Za-z0-9][A-Za-z0-9 ]{0,11})*$`)
)

// foldDiacritics maps "Café" to "Cafe" before non-ASCII letters are stripped.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func slugPart(s string) string {
	s = strings.ToLower(foldDiacritics(s))
	s = strings.Join(strings.Fields(s), "")
	return slugStripPattern.ReplaceAllString(s, "")
}

// Slug derives the stored slug from a course code and section:
// "CPS 310" + "01" gives "cps310-01". An empty section yields the code part alone.
func Slug(code, section string) string {
	c := slugPart(code)
	s := slugPart(section)
	if s == "" {
		return c
	}
	return c + "-" + s
}

// BaseCode returns the family key of a course code: the text before the
// first "/" and then before the first "-", trimmed.
// "CPS 310/510" and "CPS 310-L" both give "CPS 310".
func BaseCode(code string) string {
	base, _, _ := strings.Cut(code, "/")
	base, _, _ = strings.Cut(base, "-")
	return strings.TrimSpace(base)
}

// IsTopics reports whether a base code belongs to a shared special-topics
// numbering block, where unrelated courses reuse one number.
func IsTopics(baseCode string) bool {
	return strings.Contains(baseCode, "493") || strings.Contains(baseCode, "593")
}

// ValidCode reports whether code looks like a department course code,
// e.g. "CPS 310", "CPS 310/510", "CPS 493-L".
func ValidCode(code string) bool {
	return codeFormPattern.MatchString(strings.TrimSpace(code))
}
