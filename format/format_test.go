package format_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"fluxrelay/format"
	"fluxrelay/models"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"plain", "plain"},
		{"a_b", `a\_b`},
		{"1.5", `1\.5`},
		{"(x)", `\(x\)`},
		{"#tag!", `\#tag\!`},
		{`back\slash`, `back\\slash`},
		{"ñandú", "ñandú"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, format.EscapeMarkdownV2(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in       string
		n        int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hell…"},
		{"ñandú gris", 3, "ña…"},
		{"hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, format.Truncate(tt.in, tt.n))
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"empty", "", ""},
		{"no markup", "  just   text ", "just text"},
		{"paragraphs", "<p>Hello <b>world</b></p><p>Second</p>", "Hello world\nSecond"},
		{"line break", "line1<br>line2", "line1\nline2"},
		{"script removed", "<p>keep</p><script>alert(1)</script>", "keep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, format.PlainText(tt.in))
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "<p>ok</p>", format.Sanitize(`<p>ok</p><script>alert(1)</script>`))
}

func TestDigestHTML(t *testing.T) {
	items := []models.DigestItem{
		{URL: "https://e/1", Title: "One", Summary: "First"},
		{URL: "https://e/2", Title: "Two", Summary: "Second"},
	}

	expected := `<h3><a href="https://e/1">One</a></h3><p>First</p><br>` +
		`<h3><a href="https://e/2">Two</a></h3><p>Second</p><br>`

	assert.Equal(t, expected, format.Digest(format.HTML, items))
}

func TestDigestMarkdown(t *testing.T) {
	items := []models.DigestItem{
		{URL: "https://a.com/x", Title: "Hello.", Summary: "Sum!"},
	}

	assert.Equal(t, "*[Hello\\.](https://a.com/x)*\nSum\\!\n\n", format.Digest(format.MarkdownV2, items))
}

func TestDigestItemWithoutTitle(t *testing.T) {
	items := []models.DigestItem{
		{URL: "https://e/1", Title: " ", Summary: "s"},
		{Summary: "no link"},
	}

	assert.Equal(t,
		"*[https://e/1](https://e/1)*\ns\n\n*No title*\nno link\n\n",
		format.Digest(format.MarkdownV2, items))
	assert.Equal(t,
		`<h3><a href="https://e/1">https://e/1</a></h3><p>s</p><br><h3>No title</h3><p>no link</p><br>`,
		format.Digest(format.HTML, items))
}

func TestDigestEmpty(t *testing.T) {
	assert.Equal(t, "", format.Digest(format.HTML, nil))
	assert.Equal(t, "", format.Digest(format.MarkdownV2, nil))
}

func TestEntryHTMLUsesPlaceholdersAndFallbackContent(t *testing.T) {
	entry := models.Entry{
		ID:          1,
		URL:         "https://e/1",
		Content:     "<p>Body text</p>",
		PublishedAt: "2024-01-01",
		Feed:        models.Feed{Title: "Blog"},
	}

	expected := `<h3><a href="https://e/1">No title</a></h3>` +
		`<blockquote><p><b>Blog</b> · No author · 2024-01-01</p></blockquote>` +
		`<p>Body text</p>` +
		`<details><summary>Full content</summary><p>Body text</p></details>`

	assert.Equal(t, expected, format.Entry(format.HTML, entry, ""))
}

func TestEntryHTMLPrefersFetchedContent(t *testing.T) {
	entry := models.Entry{Title: "T", URL: "u", Content: "<p>short</p>"}

	out := format.Entry(format.HTML, entry, "<p>full article</p>")

	assert.Contains(t, out, "<p>short</p><details>")
	assert.Contains(t, out, "<summary>Full content</summary><p>full article</p>")
}

func TestEntryMarkdown(t *testing.T) {
	entry := models.Entry{
		Title:       "A.B",
		URL:         "https://e/1",
		Content:     "<p>Body text</p>",
		PublishedAt: "2024-01-01",
		Feed:        models.Feed{Title: "Blog"},
	}

	expected := "*[A\\.B](https://e/1)*\n" +
		"_Blog · No author · 2024\\-01\\-01_\n\n" +
		"Body text\n" +
		"\n**>Body text||"

	assert.Equal(t, expected, format.Entry(format.MarkdownV2, entry, ""))
}

func TestEntryMarkdownFitsMessageLimit(t *testing.T) {
	paragraph := strings.Repeat("word. ", 200)
	content := strings.Repeat("<p>"+paragraph+"</p>", 20)
	entry := models.Entry{Title: "Long", URL: "https://e/long", Content: content}

	out := format.Entry(format.MarkdownV2, entry, content)

	assert.LessOrEqual(t, format.UTF16Len(out), format.MaxMessageLength)
	assert.True(t, strings.HasSuffix(out, "||"))
	assert.Contains(t, out, "\n**>word\\.")
}

func TestEntryMarkdownFitsMessageLimitWithEmoji(t *testing.T) {
	content := "<p>" + strings.Repeat("😀", 5000) + "</p>"
	entry := models.Entry{Title: "Emoji 🎉", URL: "https://e/emoji", Content: content}

	out := format.Entry(format.MarkdownV2, entry, content)

	assert.LessOrEqual(t, format.UTF16Len(out), format.MaxMessageLength)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "…||"))
}

func TestUTF16Len(t *testing.T) {
	tests := []struct {
		in       string
		expected int
	}{
		{"", 0},
		{"abc", 3},
		{"ñandú", 5},
		{"😀", 2},
		{"a😀b", 4},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, format.UTF16Len(tt.in))
		})
	}
}

func TestUTF16Prefix(t *testing.T) {
	assert.Equal(t, "a", format.UTF16Prefix("a😀b", 2))
	assert.Equal(t, "a😀", format.UTF16Prefix("a😀b", 3))
	assert.Equal(t, "a😀b", format.UTF16Prefix("a😀b", 10))
	assert.Equal(t, "", format.UTF16Prefix("😀", 1))
}

func TestNotice(t *testing.T) {
	assert.Equal(t, "No hay nuevas noticias", format.Notice(format.HTML, "No hay nuevas noticias"))
	assert.Equal(t, "No hay nuevas noticias", format.Notice(format.MarkdownV2, "No hay nuevas noticias"))
	assert.Equal(t, "Done\\.", format.Notice(format.MarkdownV2, "Done."))
	assert.Equal(t, "a &amp; b", format.Notice(format.HTML, "a & b"))
}

func TestMarkupString(t *testing.T) {
	assert.Equal(t, "html", format.HTML.String())
	assert.Equal(t, "markdownv2", format.MarkdownV2.String())
}
