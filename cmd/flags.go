package cmd

import (
	"errors"
	"fmt"
	"time"

	"fluxrelay/config"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to an optional TOML configuration file",
		EnvVars: []string{"FLUXRELAY_CONFIG"},
	}
}

func minifluxFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:    "miniflux-url",
			Usage:   "Miniflux instance, host name or full URL",
			EnvVars: []string{"MINIFLUX_URL"},
		},
		&cli.StringFlag{
			Name:    "miniflux-token",
			Usage:   "Miniflux API token",
			EnvVars: []string{"MINIFLUX_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "limit",
			Usage:   "Maximum number of unread entries per cycle, 0 for no limit",
			EnvVars: []string{"MINIFLUX_LIMIT"},
		},
		&cli.Int64Flag{
			Name:    "category",
			Usage:   "Only relay entries of this Miniflux category id, 0 for all",
			EnvVars: []string{"MINIFLUX_CATEGORY"},
		},
	}
}

func destinationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "matrix-url",
			Usage:   "Matrix homeserver, host name or full URL",
			EnvVars: []string{"MATRIX_URL"},
		},
		&cli.StringFlag{
			Name:    "matrix-token",
			Usage:   "Matrix access token",
			EnvVars: []string{"MATRIX_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "matrix-room",
			Usage:   "Matrix room id",
			EnvVars: []string{"MATRIX_ROOM"},
		},
		&cli.StringFlag{
			Name:    "telegram-token",
			Usage:   "Telegram bot token",
			EnvVars: []string{"TELEGRAM_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "telegram-chat-id",
			Usage:   "Telegram chat id",
			EnvVars: []string{"TELEGRAM_CHAT_ID"},
		},
		&cli.StringFlag{
			Name:    "telegram-thread-id",
			Usage:   "Telegram topic id",
			Value:   "0",
			EnvVars: []string{"TELEGRAM_THREAD_ID"},
		},
	}
}

func deliveryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mode",
			Usage:   "Delivery mode, direct or digest",
			Value:   config.ModeDigest,
			EnvVars: []string{"FLUXRELAY_MODE"},
		},
		&cli.IntFlag{
			Name:    "sleep-time",
			Usage:   "Seconds to wait between two cycles",
			Value:   int(config.DefaultInterval / time.Second),
			EnvVars: []string{"SLEEP_TIME"},
		},
		&cli.StringFlag{
			Name:    "empty-notice",
			Usage:   "Message sent in digest mode when nothing is unread",
			Value:   config.DefaultEmptyNotice,
			EnvVars: []string{"FLUXRELAY_EMPTY_NOTICE"},
		},
		&cli.StringFlag{
			Name:    "model-api",
			Usage:   "Language model API dialect, anthropic or openai",
			Value:   "anthropic",
			EnvVars: []string{"MODEL_API"},
		},
		&cli.StringFlag{
			Name:    "model-url",
			Usage:   "Language model endpoint",
			EnvVars: []string{"MODEL_URL"},
		},
		&cli.StringFlag{
			Name:    "model-api-key",
			Usage:   "Language model API key",
			EnvVars: []string{"MODEL_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "model-name",
			Usage:   "Language model name",
			EnvVars: []string{"MODEL_NAME"},
		},
		&cli.StringFlag{
			Name:    "model-version",
			Usage:   "Language model API version",
			EnvVars: []string{"MODEL_VERSION"},
		},
		&cli.StringFlag{
			Name:    "model-description",
			Usage:   "Role description placed before the prompt",
			EnvVars: []string{"MODEL_DESCRIPTION"},
		},
		&cli.StringFlag{
			Name:    "model-prompt",
			Usage:   "Instructions for writing the digest",
			EnvVars: []string{"MODEL_PROMPT"},
		},
		&cli.IntFlag{
			Name:    "max-tokens",
			Usage:   "Maximum number of tokens of the digest",
			EnvVars: []string{"MAX_TOKENS"},
		},
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "listen",
			Usage:   "Address of the status server, e.g. :8080. Disabled when empty",
			EnvVars: []string{"FLUXRELAY_LISTEN"},
		},
		&cli.DurationFlag{
			Name:    "wait-ready",
			Usage:   "How long to wait for Miniflux to become reachable on startup",
			Value:   config.DefaultWaitReady,
			EnvVars: []string{"FLUXRELAY_WAIT_READY"},
		},
	}
}

func flagSet(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

// loadConfig reads the optional TOML file and overlays every flag that was
// set on the command line or through the environment. Flag defaults only
// fill fields the file left empty.
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg := &config.TomlConfig{}
	if path := ctx.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.WithFields(log.Fields{
			"path": path,
		}).Debug("Loaded config file")
	}

	overlayString(ctx, "mode", &cfg.Mode)
	overlayString(ctx, "empty-notice", &cfg.EmptyNotice)
	overlayString(ctx, "listen", &cfg.Listen)
	if ctx.IsSet("sleep-time") || cfg.Interval == 0 {
		if s := ctx.Int("sleep-time"); s != 0 {
			cfg.Interval = time.Duration(s) * time.Second
		}
	}
	if ctx.IsSet("wait-ready") || cfg.WaitReady == 0 {
		cfg.WaitReady = ctx.Duration("wait-ready")
	}

	overlayString(ctx, "miniflux-url", &cfg.Miniflux.URL)
	overlayString(ctx, "miniflux-token", &cfg.Miniflux.Token)
	if ctx.IsSet("limit") {
		cfg.Miniflux.Limit = ctx.Int("limit")
	}
	if ctx.IsSet("category") {
		cfg.Miniflux.Category = ctx.Int64("category")
	}

	overlayString(ctx, "model-api", &cfg.Summarizer.API)
	overlayString(ctx, "model-url", &cfg.Summarizer.URL)
	overlayString(ctx, "model-api-key", &cfg.Summarizer.APIKey)
	overlayString(ctx, "model-name", &cfg.Summarizer.Model)
	overlayString(ctx, "model-version", &cfg.Summarizer.Version)
	overlayString(ctx, "model-description", &cfg.Summarizer.Description)
	overlayString(ctx, "model-prompt", &cfg.Summarizer.Prompt)
	if ctx.IsSet("max-tokens") {
		cfg.Summarizer.MaxTokens = ctx.Int("max-tokens")
	}

	if anySet(ctx, "matrix-url", "matrix-token", "matrix-room") {
		cfg.Matrix = append(cfg.Matrix, config.TomlMatrix{
			URL:   ctx.String("matrix-url"),
			Token: ctx.String("matrix-token"),
			Room:  ctx.String("matrix-room"),
		})
	}
	if anySet(ctx, "telegram-token", "telegram-chat-id") {
		cfg.Telegram = append(cfg.Telegram, config.TomlTelegram{
			Token:    ctx.String("telegram-token"),
			ChatID:   ctx.String("telegram-chat-id"),
			ThreadID: ctx.String("telegram-thread-id"),
		})
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// validateMiniflux is the subset of Validate the read only commands need
func validateMiniflux(cfg *config.TomlConfig) error {
	var errs []error
	if cfg.Miniflux.URL == "" {
		errs = append(errs, errors.New("miniflux url is required"))
	}
	if cfg.Miniflux.Token == "" {
		errs = append(errs, errors.New("miniflux token is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func overlayString(ctx *cli.Context, name string, dst *string) {
	if ctx.IsSet(name) || *dst == "" {
		if v := ctx.String(name); v != "" {
			*dst = v
		}
	}
}

func anySet(ctx *cli.Context, names ...string) bool {
	for _, name := range names {
		if ctx.IsSet(name) {
			return true
		}
	}
	return false
}
