/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"fluxrelay/models"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func entriesCmd() *cli.Command {
	return &cli.Command{
		Name:  "entries",
		Usage: "Print unread entries to the command line",
		Description: `Lists the unread entries of the Miniflux instance without
delivering or marking anything.

Returns each entry as a JSON object on a single line. Use a tool like jq to process
the output.

Prints all other log messages to stderr.`,
		Flags: minifluxFlags(),
		Action: func(ctx *cli.Context) error {
			// Disable logging to stdout
			log.SetOutput(os.Stderr)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if err := validateMiniflux(cfg); err != nil {
				return err
			}

			entries, err := newSource(cfg).ListUnread(ctx.Context, cfg.Miniflux.Limit)
			if err != nil {
				return fmt.Errorf("could not list unread entries: %w", err)
			}

			for _, entry := range entries {
				printEntry(ctx.App.Writer, entry)
			}
			return nil
		},
	}
}

// printEntry writes the normalized entry as a single JSON line
func printEntry(w io.Writer, entry models.Entry) {
	entryJson, err := json.Marshal(entry.Normalize())
	if err == nil {
		fmt.Fprintln(w, string(entryJson))
	}
}
