// Package miniflux adapts the official Miniflux API client to the relay
package miniflux

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fluxrelay/models"

	log "github.com/sirupsen/logrus"
	mf "miniflux.app/v2/client"
)

// APIError is returned for every failed call to Miniflux. StatusCode is
// zero when the request never got an HTTP answer.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("miniflux API error (%s): %s", e.Op, e.Body)
	}
	return fmt.Sprintf("miniflux API error (%s): status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type Client struct {
	api        *mf.Client
	categoryID int64
}

type Option func(*Client)

// WithCategory scopes ListUnread to a single category
func WithCategory(id int64) Option {
	return func(client *Client) {
		client.categoryID = id
	}
}

// NewClient creates a client for the Miniflux instance at rawURL. A bare
// host name is treated as https.
func NewClient(rawURL, token string, opts ...Option) *Client {
	c := &Client{
		api: mf.NewClient(NormalizeBaseURL(rawURL), token),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeBaseURL prepends https:// to bare hosts and drops trailing slashes
func NormalizeBaseURL(rawURL string) string {
	u := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if u != "" && !strings.Contains(u, "://") {
		u = "https://" + u
	}
	return u
}

// RefreshFeeds asks Miniflux to refresh all feeds in the background
func (c *Client) RefreshFeeds(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.api.RefreshAllFeeds(); err != nil {
		return apiError("refresh_feeds", err)
	}
	log.Debug("All feeds refreshed successfully")
	return nil
}

// ListUnread returns unread entries in the order Miniflux sends them.
// A limit of zero or less leaves the page size to Miniflux.
func (c *Client) ListUnread(ctx context.Context, limit int) ([]models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter := &mf.Filter{
		Status:     "unread",
		CategoryID: c.categoryID,
	}
	if limit > 0 {
		filter.Limit = limit
	}

	result, err := c.api.Entries(filter)
	if err != nil {
		return nil, apiError("list_unread", err)
	}

	entries := make([]models.Entry, 0, len(result.Entries))
	for _, e := range result.Entries {
		if e == nil {
			continue
		}
		entries = append(entries, toEntry(e))
	}
	return entries, nil
}

// FetchContent downloads the original article through Miniflux and returns
// the rendered content.
func (c *Client) FetchContent(ctx context.Context, entryID uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := c.api.FetchEntryOriginalContent(int64(entryID))
	if err != nil {
		return "", apiError("fetch_content", err)
	}
	return content, nil
}

// MarkRead flags the given entries as read. An empty set sends nothing.
func (c *Client) MarkRead(ctx context.Context, entryIDs []uint64) error {
	if len(entryIDs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ids := make([]int64, len(entryIDs))
	for i, id := range entryIDs {
		ids[i] = int64(id)
	}

	log.WithFields(log.Fields{
		"entry_ids": entryIDs,
	}).Debug("Marking entries as read")

	if err := c.api.UpdateEntries(ids, "read"); err != nil {
		return apiError("mark_read", err)
	}
	return nil
}

// Categories lists the categories of the authenticated user
func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := c.api.Categories()
	if err != nil {
		return nil, apiError("categories", err)
	}
	categories := make([]models.Category, 0, len(result))
	for _, category := range result {
		categories = append(categories, models.Category{ID: category.ID, Title: category.Title})
	}
	return categories, nil
}

// Me returns the authenticated user. Used to check that the instance is
// reachable and the token is valid.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	user, err := c.api.Me()
	if err != nil {
		return nil, apiError("me", err)
	}
	return &models.User{ID: user.ID, Username: user.Username}, nil
}

func toEntry(e *mf.Entry) models.Entry {
	entry := models.Entry{
		ID:      uint64(e.ID),
		Title:   e.Title,
		URL:     e.URL,
		Content: e.Content,
		Author:  e.Author,
		Status:  e.Status,
	}
	if !e.Date.IsZero() {
		entry.PublishedAt = e.Date.Format(time.RFC3339)
	}
	if e.Feed != nil {
		entry.Feed = models.Feed{
			ID:      e.Feed.ID,
			Title:   e.Feed.Title,
			SiteURL: e.Feed.SiteURL,
		}
	}
	return entry
}

// apiError maps the client library errors onto APIError
func apiError(op string, err error) error {
	status := 0
	switch {
	case errors.Is(err, mf.ErrNotAuthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, mf.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, mf.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, mf.ErrServerError):
		status = http.StatusInternalServerError
	}

	log.WithFields(log.Fields{
		"op":     op,
		"status": status,
	}).WithError(err).Debug("Miniflux API error")

	return &APIError{Op: op, StatusCode: status, Body: err.Error(), Err: err}
}
