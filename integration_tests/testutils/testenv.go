//go:build integration

package testutils

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"

	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/Black-And-White-Club/taco-rank/db/bundb"
	"github.com/Black-And-White-Club/taco-rank/integration_tests/containers"
)

// TestEnvironment holds all resources needed for integration testing
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer testcontainers.Container
	DB            *bun.DB
	NatsConn      *nats.Conn
	Config        *config.Config
	T             *testing.T
}

// NewTestEnvironment creates a new test environment with Postgres and NATS
// containers and a migrated schema. It skips the test in -short mode.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires docker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	env := &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
		T:             t,
	}

	if err := env.setupContainers(ctx); err != nil {
		cancel()
		t.Fatalf("failed to set up test environment: %v", err)
	}
	t.Cleanup(env.Cleanup)
	return env
}

// setupContainers initializes all containers and connections
func (env *TestEnvironment) setupContainers(ctx context.Context) error {
	pgContainer, pgConnStr, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup postgres container: %w", err)
	}
	env.PgContainer = pgContainer

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		pgContainer.Terminate(ctx)
		return fmt.Errorf("failed to setup nats container: %w", err)
	}
	env.NatsContainer = natsContainer

	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Driver: bundb.DriverPgx, DSN: pgConnStr}
	cfg.NATS.URL = natsURL
	env.Config = cfg

	db, err := bundb.Open(ctx, cfg.Database)
	if err != nil {
		cleanupContainers(ctx, pgContainer, natsContainer)
		return fmt.Errorf("failed to open database: %w", err)
	}
	env.DB = db

	discardLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := bundb.Migrate(ctx, db, discardLogger); err != nil {
		db.Close()
		cleanupContainers(ctx, pgContainer, natsContainer)
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	natsConn, err := nats.Connect(natsURL, nats.Timeout(10*time.Second))
	if err != nil {
		db.Close()
		cleanupContainers(ctx, pgContainer, natsContainer)
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	env.NatsConn = natsConn

	return nil
}

// TruncatePlayers empties the leaderboard table between subtests.
func (env *TestEnvironment) TruncatePlayers(t *testing.T) {
	t.Helper()
	if _, err := env.DB.NewRaw("TRUNCATE TABLE user_preview").Exec(env.Ctx); err != nil {
		t.Fatalf("failed to truncate user_preview: %v", err)
	}
}

// Cleanup tears down all resources created for testing
func (env *TestEnvironment) Cleanup() {
	log.Println("Cleaning up test environment...")
	if env.CancelContext != nil {
		env.CancelContext()
	}
	if env.NatsConn != nil {
		env.NatsConn.Close()
	}
	if env.DB != nil {
		env.DB.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if env.NatsContainer != nil {
		if err := env.NatsContainer.Terminate(ctx); err != nil {
			log.Printf("Error terminating NATS container: %v", err)
		}
	}
	if env.PgContainer != nil {
		if err := env.PgContainer.Terminate(ctx); err != nil {
			log.Printf("Error terminating Postgres container: %v", err)
		}
	}
	log.Println("Cleanup complete.")
}

func cleanupContainers(ctx context.Context, pg *postgres.PostgresContainer, nats testcontainers.Container) {
	if pg != nil {
		pg.Terminate(ctx)
	}
	if nats != nil {
		nats.Terminate(ctx)
	}
}
