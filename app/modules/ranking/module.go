package ranking

import (
	"context"
	"fmt"
	"sync"

	rankingservice "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/application"
	rankinghandlers "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/handlers"
	playerdb "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories"
	rankingrouter "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/router"
	rankingsubscribers "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/subscribers"
	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
	"github.com/Black-And-White-Club/taco-rank/app/shared/observability"
	rankingmetrics "github.com/Black-And-White-Club/taco-rank/app/shared/observability/metrics/ranking"
	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// PubSub is the in-process event bus the module publishes to and consumes from.
type PubSub interface {
	message.Publisher
	message.Subscriber
}

// Module represents the ranking module.
type Module struct {
	RankingService rankingservice.Service
	RankingRouter  *rankingrouter.RankingRouter
	ingest         *rankingsubscribers.IngestSubscriber
	cancelFunc     context.CancelFunc
	observability  observability.Observability
}

// NewRankingModule creates the ranking module and mounts its HTTP routes on
// httpRouter when one is given.
func NewRankingModule(
	ctx context.Context,
	cfg *config.Config,
	obs observability.Observability,
	metrics rankingmetrics.RankingMetrics,
	db *bun.DB,
	pubsub PubSub,
	router *message.Router,
	httpRouter chi.Router,
) (*Module, error) {
	logger := obs.Logger
	tracer := obs.Tracer

	logger.InfoContext(ctx, "ranking.NewRankingModule initializing")

	repo := playerdb.NewRepository(db)
	service := rankingservice.NewRankingService(repo, logger, metrics, tracer, db, pubsub, cfg.Ranking)
	handlers := rankinghandlers.NewRankingHandlers(service, logger, tracer)

	rankingRouter := rankingrouter.NewRankingRouter(logger, router, pubsub, metrics, tracer, obs.Registry)
	if err := rankingRouter.Configure(ctx); err != nil {
		return nil, fmt.Errorf("failed to configure ranking router: %w", err)
	}

	if httpRouter != nil {
		limiter := rankinghandlers.RateFromConfig(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)
		httpRouter.Route("/api/rank", func(r chi.Router) {
			r.Use(rankinghandlers.CORSMiddleware(cfg.HTTP.AllowedOrigins))
			r.Use(rankinghandlers.RateLimitMiddleware(limiter))
			r.Use(rankinghandlers.CompressMiddleware)

			r.Get("/", handlers.HandleListPlayers)
			r.Get("/tier", handlers.HandleTierLookup)
			r.Get("/ladder", handlers.HandleLadder)
			r.Get("/tiers", handlers.HandleTierDistribution)
			r.Get("/tiers/chart.png", handlers.HandleTierChart)
			r.Get("/export.xlsx", handlers.HandleExportPlayers)
		})
	}

	module := &Module{
		RankingService: service,
		RankingRouter:  rankingRouter,
		observability:  obs,
	}
	if cfg.NATS.URL != "" {
		module.ingest = rankingsubscribers.NewIngestSubscriber(service, logger, metrics, tracer, cfg.NATS)
	}
	return module, nil
}

// Run starts NATS ingest, when configured, and blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Logger
	logger.InfoContext(ctx, "Starting ranking module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.ingest != nil {
		if err := m.ingest.Start(ctx); err != nil {
			logger.ErrorContext(ctx, "Player update ingest disabled", attr.Error(err))
		}
	} else {
		logger.InfoContext(ctx, "No NATS URL configured, player update ingest disabled")
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Ranking module goroutine stopped")
}

// Close shuts down the ranking module.
func (m *Module) Close() error {
	logger := m.observability.Logger
	logger.Info("Stopping ranking module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.ingest != nil {
		if err := m.ingest.Close(); err != nil {
			logger.Warn("Error closing player update ingest", attr.Error(err))
		}
	}

	if m.RankingRouter != nil {
		if err := m.RankingRouter.Close(); err != nil {
			logger.Error("Error closing RankingRouter from module", attr.Error(err))
			return fmt.Errorf("error closing RankingRouter: %w", err)
		}
	}

	logger.Info("Ranking module stopped")
	return nil
}
