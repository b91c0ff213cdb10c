/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "fluxrelay",
		Usage: "Relay unread Miniflux entries to Matrix and Telegram",
		Description: `Relays unread entries from a Miniflux instance to Matrix rooms and
		Telegram chats, either one message per entry or as a digest written by a
		language model.

		Entries are only marked as read after every destination accepted the
		message carrying them. Anything that fails is picked up again on the
		next cycle.

		Flags can generally be set via environment variables, e.g.:

		--miniflux-url => MINIFLUX_URL=rss.example.com
		--sleep-time => SLEEP_TIME=1800
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text or json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			serveCmd(),
			onceCmd(),
			entriesCmd(),
			categoriesCmd(),
			sendCmd(),
			initCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogging(ctx *cli.Context) error {
	level, err := log.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	switch ctx.String("log-format") {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", ctx.String("log-format"))
	}
	return nil
}
