package format

import (
	"fmt"
	"strings"

	"fluxrelay/models"
)

// MaxMessageLength is the Telegram limit for a single message, in UTF-16
// code units
const MaxMessageLength = 4096

// UTF16Len returns the length of s in UTF-16 code units, the unit Telegram
// measures message length in
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// UTF16Prefix returns the longest prefix of s that is at most limit UTF-16
// code units. It never splits a rune.
func UTF16Prefix(s string, limit int) string {
	n := 0
	for i, r := range s {
		w := 1
		if r >= 0x10000 {
			w = 2
		}
		if n+w > limit {
			return s[:i]
		}
		n += w
	}
	return s
}

const markdownV2Special = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes every character Telegram reserves in MarkdownV2
// text outside of entities.
func EscapeMarkdownV2(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(markdownV2Special, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// escapeLinkURL escapes the inside of a (...) link target
func escapeLinkURL(s string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(s)
}

func digestItemMarkdown(item models.DigestItem) string {
	if item.URL == "" {
		return fmt.Sprintf("*%s*\n%s\n\n", EscapeMarkdownV2(item.Title), EscapeMarkdownV2(item.Summary))
	}
	return fmt.Sprintf("*[%s](%s)*\n%s\n\n",
		EscapeMarkdownV2(item.Title),
		escapeLinkURL(item.URL),
		EscapeMarkdownV2(item.Summary),
	)
}

func entryMarkdown(e models.Entry, fullContent string) string {
	header := fmt.Sprintf("*[%s](%s)*\n_%s · %s · %s_\n\n%s\n",
		EscapeMarkdownV2(e.Title),
		escapeLinkURL(e.URL),
		EscapeMarkdownV2(e.Feed.Title),
		EscapeMarkdownV2(e.Author),
		EscapeMarkdownV2(e.PublishedAt),
		EscapeMarkdownV2(summary(e.Content)),
	)
	return header + expandableQuote(PlainText(fullContent), MaxMessageLength-UTF16Len(header))
}

// expandableQuote renders text as a collapsed blockquote that fits in budget
// UTF-16 code units. Lines that do not fit are cut.
func expandableQuote(text string, budget int) string {
	const (
		open = "**>"
		next = "\n>"
		end  = "||"
	)
	if text == "" {
		return ""
	}
	// leading newline plus the opening and closing markers
	budget -= 1 + len(open) + len(end)
	if budget <= 0 {
		return ""
	}

	var sb strings.Builder
	for i, raw := range strings.Split(text, "\n") {
		prefix := open
		cost := 0
		if i > 0 {
			prefix = next
			cost = len(next)
		}
		escaped := EscapeMarkdownV2(raw)
		n := cost + UTF16Len(escaped)
		if n > budget {
			if cut := fitEscaped(raw, budget-cost); cut != "" {
				sb.WriteString(prefix + cut)
			}
			break
		}
		sb.WriteString(prefix + escaped)
		budget -= n
	}

	if sb.Len() == 0 {
		return ""
	}
	return "\n" + sb.String() + end
}

// fitEscaped returns the longest escaped prefix of raw, plus an ellipsis,
// that is at most budget UTF-16 code units.
func fitEscaped(raw string, budget int) string {
	if budget <= UTF16Len(ellipsis) {
		return ""
	}
	runes := []rune(raw)
	render := func(n int) string {
		return EscapeMarkdownV2(strings.TrimSpace(string(runes[:n]))) + ellipsis
	}
	best := ""
	lo, hi := 1, len(runes)
	for lo <= hi {
		mid := (lo + hi) / 2
		if candidate := render(mid); UTF16Len(candidate) <= budget {
			best = candidate
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}
