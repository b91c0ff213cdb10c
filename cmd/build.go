package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fluxrelay/config"
	"fluxrelay/miniflux"
	"fluxrelay/models"
	"fluxrelay/pipeline"
	"fluxrelay/sink"
	"fluxrelay/summarizer"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

func newSource(cfg *config.TomlConfig) *miniflux.Client {
	var opts []miniflux.Option
	if cfg.Miniflux.Category > 0 {
		opts = append(opts, miniflux.WithCategory(cfg.Miniflux.Category))
	}
	return miniflux.NewClient(cfg.Miniflux.URL, cfg.Miniflux.Token, opts...)
}

func newSinks(cfg *config.TomlConfig) ([]sink.Sink, error) {
	var sinks []sink.Sink
	for _, m := range cfg.Matrix {
		s, err := sink.NewMatrix(sink.MatrixConfig{
			URL:         m.URL,
			Token:       m.Token,
			Room:        m.Room,
			MinInterval: m.MinInterval,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	for _, t := range cfg.Telegram {
		s, err := sink.NewTelegram(sink.TelegramConfig{
			BaseURL:     t.BaseURL,
			Token:       t.Token,
			ChatID:      t.ChatID,
			ThreadID:    t.ThreadID,
			MinInterval: t.MinInterval,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func newStrategy(cfg *config.TomlConfig) (pipeline.Strategy, error) {
	switch cfg.Mode {
	case config.ModeDirect:
		return pipeline.Direct{}, nil
	case config.ModeDigest:
		s := cfg.Summarizer
		client, err := summarizer.NewClient(summarizer.Config{
			URL:         s.URL,
			APIKey:      s.APIKey,
			Model:       s.Model,
			Version:     s.Version,
			Description: s.Description,
			Prompt:      s.Prompt,
			MaxTokens:   s.MaxTokens,
			API:         s.API,
		})
		if err != nil {
			return nil, err
		}
		return pipeline.Digest{Summarizer: client, EmptyNotice: cfg.EmptyNotice}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// newPipeline validates the full configuration and wires every adapter
func newPipeline(cfg *config.TomlConfig, opts ...pipeline.Option) (*pipeline.Pipeline, *miniflux.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	source := newSource(cfg)
	sinks, err := newSinks(cfg)
	if err != nil {
		return nil, nil, err
	}
	strategy, err := newStrategy(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]pipeline.Option{
		pipeline.WithInterval(cfg.Interval),
		pipeline.WithLimit(cfg.Miniflux.Limit),
	}, opts...)

	return pipeline.New(source, sinks, strategy, opts...), source, nil
}

type readinessProbe interface {
	Me(ctx context.Context) (*models.User, error)
}

// waitReady polls Miniflux until it answers or maxWait has passed. It
// reports whether Miniflux became reachable.
func waitReady(ctx context.Context, probe readinessProbe, maxWait time.Duration) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.Multiplier = 1.5
	b.MaxElapsedTime = maxWait

	err := backoff.RetryNotify(func() error {
		user, err := probe.Me(ctx)
		var apiErr *miniflux.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			// a bad token does not fix itself
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"user": user.Username,
		}).Info("Miniflux is reachable")
		return nil
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.WithFields(log.Fields{
			"retry_in": next,
		}).WithError(err).Warn("Miniflux is not reachable yet")
	})
	if err != nil {
		log.WithError(err).Warn("Miniflux did not become reachable, starting anyway")
		return false
	}
	return true
}
