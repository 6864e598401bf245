package bundb

import (
	"context"
	"fmt"
	"log/slog"

	playermigrations "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories/migrations"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrators returns one migrator per module, keyed by module name.
func Migrators(db *bun.DB) map[string]*migrate.Migrator {
	return map[string]*migrate.Migrator{
		"ranking": migrate.NewMigrator(db, playermigrations.Migrations),
	}
}

// Migrate creates the migration tables if needed and applies every pending
// migration.
func Migrate(ctx context.Context, db *bun.DB, logger *slog.Logger) error {
	for name, migrator := range Migrators(db) {
		if err := migrator.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize migrations for %s: %w", name, err)
		}
		group, err := migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to migrate %s: %w", name, err)
		}
		if group.IsZero() {
			logger.InfoContext(ctx, "No new migrations", slog.String("module", name))
			continue
		}
		logger.InfoContext(ctx, "Migrated module", slog.String("module", name), slog.String("group", group.String()))
	}
	return nil
}
