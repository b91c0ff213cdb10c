package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fluxrelay/config"
	"fluxrelay/miniflux"
	"fluxrelay/models"
	"fluxrelay/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runConfig parses args with the serve flags and returns the resulting config
func runConfig(t *testing.T, args ...string) *config.TomlConfig {
	t.Helper()
	var cfg *config.TomlConfig
	app := &cli.App{
		Flags: flagSet(minifluxFlags(), destinationFlags(), deliveryFlags(), serverFlags()),
		Action: func(ctx *cli.Context) error {
			var err error
			cfg, err = loadConfig(ctx)
			return err
		},
	}
	require.NoError(t, app.Run(append([]string{"fluxrelay"}, args...)))
	return cfg
}

func TestLoadConfigFromFlags(t *testing.T) {
	cfg := runConfig(t,
		"--miniflux-url", "rss.example.com",
		"--miniflux-token", "mf",
		"--telegram-token", "tg",
		"--telegram-chat-id", "-100",
		"--mode", "direct",
		"--sleep-time", "60",
		"--limit", "5",
	)

	assert.Equal(t, "direct", cfg.Mode)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 5, cfg.Miniflux.Limit)
	assert.Empty(t, cfg.Matrix)
	require.Len(t, cfg.Telegram, 1)
	assert.Equal(t, "0", cfg.Telegram[0].ThreadID)
	assert.Equal(t, time.Second, cfg.Telegram[0].MinInterval)
	assert.Equal(t, "No hay nuevas noticias", cfg.EmptyNotice)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := runConfig(t)

	assert.Equal(t, config.ModeDigest, cfg.Mode)
	assert.Equal(t, 1800*time.Second, cfg.Interval)
	assert.Equal(t, 2*time.Minute, cfg.WaitReady)
	assert.Equal(t, "anthropic", cfg.Summarizer.API)
}

func TestLoadConfigFlagsOverlayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluxrelay.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "direct"
interval = "5m"

[miniflux]
url = "file.example.com"
token = "from-file"

[[matrix]]
url = "matrix.org"
token = "mx"
room = "!a"
`), 0o600))

	cfg := runConfig(t,
		"--config", path,
		"--miniflux-token", "from-flag",
		"--matrix-url", "matrix.org",
		"--matrix-token", "mx2",
		"--matrix-room", "!b",
	)

	assert.Equal(t, "direct", cfg.Mode, "file value wins over flag default")
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, "file.example.com", cfg.Miniflux.URL)
	assert.Equal(t, "from-flag", cfg.Miniflux.Token)
	require.Len(t, cfg.Matrix, 2)
	assert.Equal(t, "!a", cfg.Matrix[0].Room)
	assert.Equal(t, "!b", cfg.Matrix[1].Room)
}

func TestNewPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := runConfig(t, "--miniflux-url", "rss.example.com")

	_, _, err := newPipeline(cfg)

	assert.ErrorContains(t, err, "invalid configuration")
	assert.ErrorContains(t, err, "miniflux token is required")
}

func TestNewStrategy(t *testing.T) {
	direct, err := newStrategy(&config.TomlConfig{Mode: config.ModeDirect})
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeDirect, direct.Name())

	digest, err := newStrategy(&config.TomlConfig{Mode: config.ModeDigest})
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeDigest, digest.Name())

	_, err = newStrategy(&config.TomlConfig{Mode: "batch"})
	assert.Error(t, err)
}

func TestEntriesCommandPrintsJSONLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/entries", r.URL.Path)
		w.Write([]byte(`{"total":2,"entries":[{"id":1,"title":"One"},{"id":2}]}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	app := RootApp()
	app.Writer = &out

	err := app.Run([]string{"fluxrelay", "entries", "--miniflux-url", srv.URL, "--miniflux-token", "t"})

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"title":"One"`)
	assert.Contains(t, lines[1], `"title":"No title"`)
}

func TestCategoriesCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":3,"title":"Tech"}]`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	app := RootApp()
	app.Writer = &out

	err := app.Run([]string{"fluxrelay", "categories", "--miniflux-url", srv.URL, "--miniflux-token", "t"})

	require.NoError(t, err)
	assert.Equal(t, "3\tTech\n", out.String())
}

type probe struct {
	calls int
	fail  int
	err   error
}

func (p *probe) Me(ctx context.Context) (*models.User, error) {
	p.calls++
	if p.calls <= p.fail {
		return nil, p.err
	}
	return &models.User{Username: "admin"}, nil
}

func TestWaitReadyRetries(t *testing.T) {
	p := &probe{fail: 2, err: errors.New("connection refused")}

	assert.True(t, waitReady(context.Background(), p, 30*time.Second))
	assert.Equal(t, 3, p.calls)
}

func TestWaitReadyStopsOnBadToken(t *testing.T) {
	p := &probe{fail: 100, err: &miniflux.APIError{Op: "me", StatusCode: http.StatusUnauthorized}}

	assert.False(t, waitReady(context.Background(), p, 30*time.Second))
	assert.Equal(t, 1, p.calls)
}

func TestWaitReadyGivesUp(t *testing.T) {
	p := &probe{fail: 1000, err: errors.New("connection refused")}

	assert.False(t, waitReady(context.Background(), p, time.Second))
}
