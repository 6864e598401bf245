package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Black-And-White-Club/taco-rank/app"
	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "taco-rank",
		Usage: "leaderboard service and rank tier tools",
		Commands: []*cli.Command{
			serveCommand(),
			tierCommand(),
			ladderCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API, NATS ingest and event router",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApp(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}
			return application.Start(ctx)
		},
	}
}

func tierCommand() *cli.Command {
	return &cli.Command{
		Name:      "tier",
		Usage:     "print the rank label for one or more scores",
		ArgsUsage: "<score...>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one score is required", 2)
			}
			scores := make([]int64, 0, c.NArg())
			for _, arg := range c.Args().Slice() {
				score, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return cli.Exit(fmt.Sprintf("invalid score %q", arg), 2)
				}
				scores = append(scores, score)
			}
			fmt.Fprint(c.App.Writer, renderTiers(scores))
			return nil
		},
	}
}

func ladderCommand() *cli.Command {
	return &cli.Command{
		Name:  "ladder",
		Usage: "print every label with the score that reaches it",
		Action: func(c *cli.Context) error {
			fmt.Fprint(c.App.Writer, renderLadder())
			return nil
		},
	}
}
