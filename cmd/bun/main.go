package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	rankingservice "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/application"
	playerdb "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/taco-rank/app/shared/observability"
	rankingmetrics "github.com/Black-And-White-Club/taco-rank/app/shared/observability/metrics/ranking"
	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/Black-And-White-Club/taco-rank/db/bundb"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/width"
)

func main() {
	cliApp := &cli.App{
		Name:  "bun",
		Usage: "taco-rank database tooling",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the configuration file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			newMultiModuleDBCommand(),
			newDataCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withDB loads the configuration, opens the database and passes it to fn.
func withDB(c *cli.Context, fn func(cfg *config.Config, db *bun.DB) error) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := bundb.Open(c.Context, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(cfg, db)
}

func withMigrators(fn func(c *cli.Context, migrators map[string]*migrate.Migrator) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		return withDB(c, func(_ *config.Config, db *bun.DB) error {
			return fn(c, bundb.Migrators(db))
		})
	}
}

func newMultiModuleDBCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: withMigrators(func(c *cli.Context, migrators map[string]*migrate.Migrator) error {
					for moduleName, migrator := range migrators {
						fmt.Printf("Initializing migrations for module: %s\n", moduleName)
						if err := migrator.Init(c.Context); err != nil {
							return fmt.Errorf("initializing migrations for module %s: %w", moduleName, err)
						}
					}
					return nil
				}),
			},
			{
				Name:  "migrate",
				Usage: "migrate database",
				Action: withMigrators(func(c *cli.Context, migrators map[string]*migrate.Migrator) error {
					for moduleName, migrator := range migrators {
						fmt.Printf("Running migrations for module: %s\n", moduleName)
						group, err := migrator.Migrate(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Printf("No new migrations to run for module: %s\n", moduleName)
						} else {
							fmt.Printf("Migrated module: %s to %s\n", moduleName, group)
						}
					}
					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: withMigrators(func(c *cli.Context, migrators map[string]*migrate.Migrator) error {
					for moduleName, migrator := range migrators {
						fmt.Printf("Rolling back migrations for module: %s\n", moduleName)
						group, err := migrator.Rollback(c.Context)
						if err != nil {
							return err
						}
						if group.IsZero() {
							fmt.Printf("No groups to roll back for module: %s\n", moduleName)
						} else {
							fmt.Printf("Rolled back module: %s to %s\n", moduleName, group)
						}
					}
					return nil
				}),
			},
			{
				Name:      "create_go",
				Usage:     "create Go migration",
				ArgsUsage: "<module> <name...>",
				Action: withMigrators(func(c *cli.Context, migrators map[string]*migrate.Migrator) error {
					moduleName := c.Args().First()
					migrator, ok := migrators[moduleName]
					if !ok {
						return fmt.Errorf("invalid module name: %s", moduleName)
					}

					name := strings.Join(c.Args().Tail(), "_")
					mf, err := migrator.CreateGoMigration(c.Context, name)
					if err != nil {
						return err
					}
					fmt.Printf("Created migration for module %s: %s (%s)\n", moduleName, mf.Name, mf.Path)
					return nil
				}),
			},
			{
				Name:      "create_sql",
				Usage:     "create up and down SQL migrations",
				ArgsUsage: "<module> <name...>",
				Action: withMigrators(func(c *cli.Context, migrators map[string]*migrate.Migrator) error {
					moduleName := c.Args().First()
					migrator, ok := migrators[moduleName]
					if !ok {
						return fmt.Errorf("invalid module name: %s", moduleName)
					}

					name := strings.Join(c.Args().Tail(), "_")
					files, err := migrator.CreateSQLMigrations(c.Context, name)
					if err != nil {
						return err
					}

					for _, mf := range files {
						fmt.Printf("Created migration for module %s: %s (%s)\n", moduleName, mf.Name, mf.Path)
					}
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: withMigrators(func(c *cli.Context, migrators map[string]*migrate.Migrator) error {
					for moduleName, migrator := range migrators {
						ms, err := migrator.MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations for module: %s\n", moduleName)
						fmt.Printf("  %s\n", ms)
						fmt.Printf("  Applied: %s\n", ms.Applied())
						fmt.Printf("  Unapplied: %s\n", ms.Unapplied())
					}
					return nil
				}),
			},
		},
	}
}

// withService builds a ranking service for offline writes and passes it to fn.
// Tier changes are not published because no event router is running.
func withService(c *cli.Context, fn func(svc rankingservice.Service) error) error {
	return withDB(c, func(cfg *config.Config, db *bun.DB) error {
		obs, err := observability.New(c.Context, cfg.Observability)
		if err != nil {
			return err
		}
		defer obs.Shutdown(context.Background())

		return fn(rankingservice.NewRankingService(
			playerdb.NewRepository(db),
			obs.Logger,
			rankingmetrics.NewNoop(),
			obs.Tracer,
			db,
			nil,
			cfg.Ranking,
		))
	})
}

func newDataCommand() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "leaderboard data",
		Subcommands: []*cli.Command{
			{
				Name:  "seed",
				Usage: "insert generated players",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Value: 100, Usage: "number of players"},
					&cli.Uint64Flag{Name: "seed", Value: 0, Usage: "random seed; 0 picks one"},
				},
				Action: func(c *cli.Context) error {
					return withService(c, func(svc rankingservice.Service) error {
						updates := FakePlayers(gofakeit.New(c.Uint64("seed")), c.Int("count"))
						results, err := svc.ImportPlayers(c.Context, updates)
						if err != nil {
							return fmt.Errorf("seeding players: %w", err)
						}
						fmt.Printf("Seeded %d players\n", len(results))
						return nil
					})
				},
			},
			{
				Name:      "import",
				Usage:     "upsert players from an XLSX workbook",
				ArgsUsage: "<file.xlsx>",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return cli.Exit("an .xlsx file is required", 2)
					}
					f, err := os.Open(path)
					if err != nil {
						return err
					}
					defer f.Close()

					updates, err := rankingservice.ParsePlayersXLSX(f)
					if err != nil {
						return fmt.Errorf("reading %s: %w", path, err)
					}

					return withService(c, func(svc rankingservice.Service) error {
						results, err := svc.ImportPlayers(c.Context, updates)
						if err != nil {
							return fmt.Errorf("importing players: %w", err)
						}
						changed := 0
						for _, r := range results {
							if r.Changed {
								changed++
							}
						}
						slog.Info("Import complete", slog.Int("players", len(results)), slog.Int("tier_changes", changed))
						return nil
					})
				},
			},
		},
	}
}

// FakePlayers generates count players with full-width names, spread across
// the whole ladder.
func FakePlayers(f *gofakeit.Faker, count int) []rankingservice.PlayerUpdate {
	updates := make([]rankingservice.PlayerUpdate, 0, count)
	for i := 0; i < count; i++ {
		updates = append(updates, rankingservice.PlayerUpdate{
			UserID:       int64(i + 1),
			UserName:     width.Widen.String(f.Username()),
			PlayerRating: f.IntRange(0, 18000),
			IconID:       f.IntRange(0, 40),
			ExtraCol:     int64(f.IntRange(0, 3000)),
		})
	}
	return updates
}
