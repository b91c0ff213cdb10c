package format

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const ellipsis = "…"

var (
	sanitizer = bluemonday.UGCPolicy()

	blockElements = "p, div, li, h1, h2, h3, h4, h5, h6, tr, blockquote, pre, figcaption"
)

// PlainText converts an HTML fragment into plain text, one paragraph per
// line, with whitespace collapsed.
func PlainText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "<") {
		return normalizeLines(trimmed)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return normalizeLines(trimmed)
	}

	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(newline())
	})
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(newline())
	})

	return normalizeLines(doc.Text())
}

func newline() *html.Node {
	return &html.Node{Type: html.TextNode, Data: "\n"}
}

// Sanitize keeps the user generated content subset of HTML
func Sanitize(raw string) string {
	return strings.TrimSpace(sanitizer.Sanitize(raw))
}

// Truncate shortens s to at most n runes, ending with an ellipsis when cut
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n-1])) + ellipsis
}

func normalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
