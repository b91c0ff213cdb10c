package cmd

import (
	"fmt"
	"strings"

	"fluxrelay/config"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	"github.com/urfave/cli/v2"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a configuration file interactively",
		Description: `Asks for the Miniflux connection, the delivery mode and one
destination and writes them to a TOML file. An existing file is never
overwritten. Further [[matrix]] and [[telegram]] tables can be added by hand.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "fluxrelay.toml",
				Usage:   "Where to write the configuration",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg := &config.TomlConfig{}

			// ask stops asking after the first prompt error
			var err error
			ask := func(question, def string, opts ...input.Option) string {
				if err != nil {
					return ""
				}
				var v string
				v, err = prompt.New().Ask(question).Input(def, opts...)
				return strings.TrimSpace(v)
			}
			secret := input.WithEchoMode(input.EchoNone)

			cfg.Miniflux.URL = ask("Miniflux URL:", "rss.example.com")
			cfg.Miniflux.Token = ask("Miniflux API token:", "", secret)

			if err == nil {
				cfg.Mode, err = prompt.New().Ask("Delivery mode:").Choose([]string{config.ModeDigest, config.ModeDirect})
			}
			if cfg.Mode == config.ModeDigest {
				cfg.Summarizer.URL = ask("Model endpoint:", "https://api.anthropic.com/v1/messages")
				cfg.Summarizer.APIKey = ask("Model API key:", "", secret)
				cfg.Summarizer.Model = ask("Model name:", "")
				cfg.Summarizer.Version = ask("Model API version:", "2023-06-01")
				cfg.Summarizer.Prompt = ask("Digest prompt:", "")
				cfg.Summarizer.MaxTokens = 1024
			}

			var destination string
			if err == nil {
				destination, err = prompt.New().Ask("Destination:").Choose([]string{"matrix", "telegram"})
			}
			switch destination {
			case "matrix":
				cfg.Matrix = []config.TomlMatrix{{
					URL:   ask("Matrix homeserver:", "matrix.org"),
					Token: ask("Matrix access token:", "", secret),
					Room:  ask("Matrix room id:", ""),
				}}
			case "telegram":
				cfg.Telegram = []config.TomlTelegram{{
					Token:    ask("Telegram bot token:", "", secret),
					ChatID:   ask("Telegram chat id:", ""),
					ThreadID: ask("Telegram topic id:", "0"),
				}}
			}
			if err != nil {
				return err
			}

			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			path := ctx.String("output")
			if err := config.WriteConfig(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "Configuration written to %s\n", path)
			return nil
		},
	}
}
