package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func onceCmd() *cli.Command {
	return &cli.Command{
		Name:  "once",
		Usage: "Run a single delivery cycle and exit",
		Description: `Runs one refresh, fetch, deliver and acknowledge cycle and exits.

Exits with a non-zero status when the cycle failed, which makes it usable
from cron or a Kubernetes CronJob.`,
		Flags: flagSet(minifluxFlags(), destinationFlags(), deliveryFlags()),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			p, _, err := newPipeline(cfg)
			if err != nil {
				return err
			}

			report := p.RunCycle(ctx.Context)
			if report.Err != nil {
				return cli.Exit(fmt.Sprintf("cycle %s failed: %v", report.ID, report.Err), 1)
			}
			return nil
		},
	}
}
