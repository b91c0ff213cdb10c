package models

import "strings"

// Placeholders used when the feed source omits a field
const (
	NoTitle       = "No title"
	NoURL         = "No URL"
	NoContent     = "No content"
	NoAuthor      = "No author"
	NoFeedTitle   = "No feed title"
	NoPublishedAt = "No published_at"
)

// Feed is the subset of the Miniflux feed object embedded in every entry
type Feed struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	SiteURL string `json:"site_url"`
}

// Entry model with the fields the relay reads from a Miniflux entry.
// The read state is owned by Miniflux and never mirrored locally.
type Entry struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Author      string `json:"author"`
	PublishedAt string `json:"published_at"`
	Status      string `json:"status"`
	Feed        Feed   `json:"feed"`
}

// Normalize returns a copy of the entry where every missing field is
// replaced by its placeholder.
func (e Entry) Normalize() Entry {
	e.Title = orDefault(e.Title, NoTitle)
	e.URL = orDefault(e.URL, NoURL)
	e.Content = orDefault(e.Content, NoContent)
	e.Author = orDefault(e.Author, NoAuthor)
	e.PublishedAt = orDefault(e.PublishedAt, NoPublishedAt)
	e.Feed.Title = orDefault(e.Feed.Title, NoFeedTitle)
	return e
}

// SummaryInput is what the summarizer receives for each entry
type SummaryInput struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	FeedTitle   string `json:"feed_title"`
	PublishedAt string `json:"published_at"`
	Author      string `json:"author"`
	Resume      string `json:"resume"`
}

// ToSummaryInput converts a normalized entry into the summarizer record
func (e Entry) ToSummaryInput() SummaryInput {
	n := e.Normalize()
	return SummaryInput{
		URL:         n.URL,
		Title:       n.Title,
		FeedTitle:   n.Feed.Title,
		PublishedAt: n.PublishedAt,
		Author:      n.Author,
		Resume:      n.Content,
	}
}

// DigestItem is one summarized news item returned by the language model
type DigestItem struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Category is a Miniflux category
type Category struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// User is returned by the Miniflux /v1/me endpoint
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func orDefault(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}
