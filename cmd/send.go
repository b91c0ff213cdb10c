/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"fluxrelay/format"
	"fluxrelay/sink"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

func sendCmd() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a test message to every destination",
		ArgsUsage: "[message]",
		Description: `Sends a plain text message to every configured Matrix room and
Telegram chat. Asks for the message when none is given.

Useful to check tokens, room ids and chat ids before running serve.`,
		Flags: flagSet([]cli.Flag{configFlag()}, destinationFlags()),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			sinks, err := newSinks(cfg)
			if err != nil {
				return err
			}
			if len(sinks) == 0 {
				return errors.New("please configure at least one matrix or telegram destination")
			}

			message := strings.Join(ctx.Args().Slice(), " ")
			if message == "" {
				message, err = prompt.New().Ask("Message:").Input("Hello from fluxrelay")
				if err != nil {
					return err
				}
			}

			results, err := sink.Fanout(sinks).Deliver(ctx.Context, func(m format.Markup) string {
				return format.Notice(m, message)
			})
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(ctx.App.Writer, "%s\tfailed\t%v\n", r.Sink, r.Err)
				} else {
					fmt.Fprintf(ctx.App.Writer, "%s\tsent\t%s\n", r.Sink, r.Response)
				}
			}
			if err != nil {
				return cli.Exit("delivery failed", 1)
			}
			return nil
		},
	}
}
