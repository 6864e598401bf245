// db/bundb/bundb.go
package bundb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	playerdb "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories"
	"github.com/Black-And-White-Club/taco-rank/config"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite" // driver: sqlite
)

const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite"
)

// DBService owns the connection pool and the repositories built on it.
type DBService struct {
	PlayerDB playerdb.Repository
	db       *bun.DB
}

// GetDB returns the underlying database connection pool.
func (dbService *DBService) GetDB() *bun.DB {
	return dbService.db
}

// Close releases the connection pool.
func (dbService *DBService) Close() error {
	return dbService.db.Close()
}

// NewBunDBService opens the configured database and verifies the connection.
func NewBunDBService(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*DBService, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Database connection established", slog.String("driver", cfg.Driver))

	db.RegisterModel((*playerdb.Player)(nil))

	return &DBService{
		PlayerDB: playerdb.NewRepository(db),
		db:       db,
	}, nil
}

// Open returns a bun.DB for the configured driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	var db *bun.DB

	switch cfg.Driver {
	case DriverPostgres, "":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverPgx:
		sqldb, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open pgx connection: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:taco-rank.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// modernc sqlite serialises writers; a single connection also keeps
		// in-memory databases alive for the pool's lifetime.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
