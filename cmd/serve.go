/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fluxrelay/pipeline"
	"fluxrelay/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Relay unread entries forever",
		Description: `Runs a delivery cycle, sleeps, and runs the next one until the
process receives SIGINT or SIGTERM.

Before the first cycle Miniflux is polled until it answers or --wait-ready
has passed. A negative --wait-ready skips the check.

When --listen is set a status server is started with /health, /status,
/metrics and /events (server sent cycle reports).`,
		Flags: flagSet(minifluxFlags(), destinationFlags(), deliveryFlags(), serverFlags()),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			bc := server.NewBroadcaster()
			p, source, err := newPipeline(cfg, pipeline.WithObserver(bc.Broadcast))
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.WaitReady > 0 {
				waitReady(runCtx, source, cfg.WaitReady)
			}

			g, gctx := errgroup.WithContext(runCtx)

			g.Go(func() error {
				return p.Run(gctx)
			})

			if cfg.Listen != "" {
				app := server.Server(&server.ServerConfig{
					Stats:       p,
					Broadcaster: bc,
				})

				g.Go(func() error {
					log.WithFields(log.Fields{
						"address": cfg.Listen,
					}).Info("Starting status server")
					if err := app.Listen(cfg.Listen); err != nil {
						return fmt.Errorf("status server: %w", err)
					}
					return nil
				})

				g.Go(func() error {
					<-gctx.Done()
					fmt.Println("Gracefully shutting down...")
					bc.Shutdown()
					return app.ShutdownWithTimeout(10 * time.Second)
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
