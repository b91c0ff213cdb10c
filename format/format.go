// Package format renders entries and digests into chat markup. Everything
// here is a pure function of its input.
package format

import (
	"fmt"
	"strings"

	"fluxrelay/models"
)

// Markup is the markup dialect a chat destination understands
type Markup int

const (
	HTML Markup = iota
	MarkdownV2
)

func (m Markup) String() string {
	switch m {
	case HTML:
		return "html"
	case MarkdownV2:
		return "markdownv2"
	default:
		return fmt.Sprintf("markup(%d)", int(m))
	}
}

// SummaryLength is the number of runes of plain text kept as the summary of
// a single entry
const SummaryLength = 500

// Entry renders a single self-contained message for the direct mode.
// fullContent is the fetched article; when empty the entry content is used.
func Entry(m Markup, entry models.Entry, fullContent string) string {
	e := entry.Normalize()
	if strings.TrimSpace(fullContent) == "" {
		fullContent = e.Content
	}
	switch m {
	case MarkdownV2:
		return entryMarkdown(e, fullContent)
	default:
		return entryHTML(e, fullContent)
	}
}

// Digest renders all digest items into one combined message
func Digest(m Markup, items []models.DigestItem) string {
	var sb strings.Builder
	for _, item := range items {
		item = titled(item)
		switch m {
		case MarkdownV2:
			sb.WriteString(digestItemMarkdown(item))
		default:
			sb.WriteString(digestItemHTML(item))
		}
	}
	return sb.String()
}

// Notice renders a fixed plain text notice
func Notice(m Markup, text string) string {
	switch m {
	case MarkdownV2:
		return EscapeMarkdownV2(text)
	default:
		return escapeHTML(text)
	}
}

// titled fills an empty title with the URL, or the title placeholder when
// there is no URL either. Telegram rejects links with empty text.
func titled(item models.DigestItem) models.DigestItem {
	item.URL = strings.TrimSpace(item.URL)
	if strings.TrimSpace(item.Title) == "" {
		item.Title = item.URL
		if item.Title == "" {
			item.Title = models.NoTitle
		}
	}
	return item
}

// summary returns the truncated plain text of the entry content
func summary(content string) string {
	return Truncate(PlainText(content), SummaryLength)
}
