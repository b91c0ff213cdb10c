package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func categoriesCmd() *cli.Command {
	return &cli.Command{
		Name:        "categories",
		Usage:       "List Miniflux categories",
		Description: `Lists the categories of the Miniflux user. Use an id with --category to relay only that category.`,
		Flags:       minifluxFlags(),
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if err := validateMiniflux(cfg); err != nil {
				return err
			}

			categories, err := newSource(cfg).Categories(ctx.Context)
			if err != nil {
				return fmt.Errorf("could not list categories: %w", err)
			}

			for _, c := range categories {
				fmt.Fprintf(ctx.App.Writer, "%d\t%s\n", c.ID, c.Title)
			}
			return nil
		},
	}
}
