package miniflux_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fluxrelay/miniflux"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mf "miniflux.app/v2/client"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestListUnread(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/entries", r.URL.Path)
		assert.Equal(t, "unread", r.URL.Query().Get("status"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "test_token", r.Header.Get("X-Auth-Token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":2,"entries":[
			{"id":1,"title":"Test Entry","url":"u1","published_at":"2024-03-01T08:30:00Z","feed":{"id":4,"title":"Blog"}},
			{"id":2,"title":"Second","url":"u2"}
		]}`))
	})

	client := miniflux.NewClient(srv.URL, "test_token")
	entries, err := client.ListUnread(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].ID)
	assert.Equal(t, "Test Entry", entries[0].Title)
	assert.Equal(t, "Blog", entries[0].Feed.Title)
	assert.Equal(t, "2024-03-01T08:30:00Z", entries[0].PublishedAt)
	assert.Equal(t, uint64(2), entries[1].ID)
	assert.Empty(t, entries[1].PublishedAt, "missing date stays empty for the placeholder")
	assert.Empty(t, entries[1].Feed.Title)
}

func TestListUnreadWithoutLimit(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEqual(t, "10", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"total":0,"entries":null}`))
	})

	entries, err := miniflux.NewClient(srv.URL, "t").ListUnread(context.Background(), 0)

	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestListUnreadCategory(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("category_id"))
		assert.Equal(t, "unread", r.URL.Query().Get("status"))
		w.Write([]byte(`{"total":1,"entries":[{"id":9}]}`))
	})

	entries, err := miniflux.NewClient(srv.URL, "t", miniflux.WithCategory(3)).ListUnread(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(9), entries[0].ID)
}

func TestListUnreadUnauthorized(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error_message":"access unauthorized"}`))
	})

	_, err := miniflux.NewClient(srv.URL, "invalid_token").ListUnread(context.Background(), 10)

	require.Error(t, err)
	var apiErr *miniflux.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "list_unread", apiErr.Op)
	assert.ErrorIs(t, err, mf.ErrNotAuthorized)
	assert.Contains(t, err.Error(), "miniflux API error")
}

func TestMarkRead(t *testing.T) {
	var body map[string]interface{}
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/entries", r.URL.Path)
		assert.Equal(t, "test_token", r.Header.Get("X-Auth-Token"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	})

	err := miniflux.NewClient(srv.URL, "test_token").MarkRead(context.Background(), []uint64{123, 124})

	require.NoError(t, err)
	assert.Equal(t, "read", body["status"])
	assert.Equal(t, []interface{}{float64(123), float64(124)}, body["entry_ids"])
}

func TestMarkReadEmptySetSendsNothing(t *testing.T) {
	called := false
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := miniflux.NewClient(srv.URL, "t").MarkRead(context.Background(), nil)

	require.NoError(t, err)
	assert.False(t, called)
}

func TestRefreshFeeds(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/feeds/refresh", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, miniflux.NewClient(srv.URL, "t").RefreshFeeds(context.Background()))
}

func TestRefreshFeedsError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})

	err := miniflux.NewClient(srv.URL, "t").RefreshFeeds(context.Background())

	var apiErr *miniflux.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "refresh_feeds", apiErr.Op)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestUnreachableInstance(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := miniflux.NewClient(srv.URL, "t").Me(context.Background())

	var apiErr *miniflux.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Equal(t, "me", apiErr.Op)
}

func TestCancelledContextSkipsRequest(t *testing.T) {
	called := false
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := miniflux.NewClient(srv.URL, "t").ListUnread(ctx, 10)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestFetchContent(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/entries/42/fetch-content", r.URL.Path)
		w.Write([]byte(`{"content":"<p>full</p>"}`))
	})

	content, err := miniflux.NewClient(srv.URL, "t").FetchContent(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, "<p>full</p>", content)
}

func TestCategoriesAndMe(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/categories":
			w.Write([]byte(`[{"id":1,"title":"Tech"},{"id":2,"title":"News"}]`))
		case "/v1/me":
			w.Write([]byte(`{"id":1,"username":"admin"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client := miniflux.NewClient(srv.URL, "t")

	categories, err := client.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Tech", categories[0].Title)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"miniflux.example.com", "https://miniflux.example.com"},
		{"http://localhost:8080/", "http://localhost:8080"},
		{"https://rss.example.com/miniflux", "https://rss.example.com/miniflux"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, miniflux.NormalizeBaseURL(tt.in))
		})
	}
}
