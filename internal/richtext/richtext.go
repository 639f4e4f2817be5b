// Package richtext turns the HTML produced by the admin rich-text editor
// into plain text for listings and previews.
package richtext

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// blockSelectors are elements whose boundaries should read as a space.
const blockSelectors = "p, div, li, br, h1, h2, h3, h4, h5, h6, tr, td, th"

// PlainText extracts readable text from an HTML fragment.
// Scripts and styles are dropped and whitespace is collapsed.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.Join(strings.Fields(html), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style").Remove()
	doc.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Summary returns PlainText(html) cut to at most maxRunes runes on a word
// boundary, with an ellipsis when truncated.
func Summary(html string, maxRunes int) string {
	text := PlainText(html)
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxRunes])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
