package format

import (
	"fmt"
	"html"

	"fluxrelay/models"
)

func escapeHTML(s string) string {
	return html.EscapeString(s)
}

func digestItemHTML(item models.DigestItem) string {
	if item.URL == "" {
		return fmt.Sprintf(`<h3>%s</h3><p>%s</p><br>`, escapeHTML(item.Title), escapeHTML(item.Summary))
	}
	return fmt.Sprintf(
		`<h3><a href="%s">%s</a></h3><p>%s</p><br>`,
		escapeHTML(item.URL),
		escapeHTML(item.Title),
		escapeHTML(item.Summary),
	)
}

func entryHTML(e models.Entry, fullContent string) string {
	return fmt.Sprintf(
		`<h3><a href="%s">%s</a></h3>`+
			`<blockquote><p><b>%s</b> · %s · %s</p></blockquote>`+
			`<p>%s</p>`+
			`<details><summary>Full content</summary>%s</details>`,
		escapeHTML(e.URL),
		escapeHTML(e.Title),
		escapeHTML(e.Feed.Title),
		escapeHTML(e.Author),
		escapeHTML(e.PublishedAt),
		escapeHTML(summary(e.Content)),
		Sanitize(fullContent),
	)
}
