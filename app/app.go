package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Black-And-White-Club/taco-rank/app/modules/ranking"
	rankinghandlers "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/handlers"
	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
	"github.com/Black-And-White-Club/taco-rank/app/shared/observability"
	rankingmetrics "github.com/Black-And-White-Club/taco-rank/app/shared/observability/metrics/ranking"
	"github.com/Black-And-White-Club/taco-rank/config"
	"github.com/Black-And-White-Club/taco-rank/db/bundb"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App wires configuration, storage, the event bus and the ranking module.
type App struct {
	Config        *config.Config
	Observability observability.Observability
	DB            *bundb.DBService
	PubSub        *gochannel.GoChannel
	EventRouter   *message.Router
	RankingModule *ranking.Module

	handler http.Handler
	wg      sync.WaitGroup
}

// NewApp opens the database, builds the in-process event bus and mounts every
// HTTP route.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	obs, err := observability.New(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	dbService, err := bundb.NewBunDBService(ctx, cfg.Database, logger)
	if err != nil {
		obs.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize database service: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := bundb.Migrate(ctx, dbService.GetDB(), logger); err != nil {
			dbService.Close()
			obs.Shutdown(ctx)
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	watermillLogger := watermill.NewSlogLogger(logger)
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermillLogger)

	eventRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.HTTP.ShutdownTimeout}, watermillLogger)
	if err != nil {
		dbService.Close()
		obs.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create event router: %w", err)
	}

	metrics := rankingmetrics.NewPrometheus(obs.Registry)

	root := chi.NewRouter()
	root.Use(middleware.RealIP)
	root.Use(middleware.Recoverer)
	root.Use(rankinghandlers.CorrelationIDMiddleware)
	root.Use(rankinghandlers.MetricsMiddleware(metrics))

	rankingModule, err := ranking.NewRankingModule(ctx, cfg, obs, metrics, dbService.GetDB(), pubsub, eventRouter, root)
	if err != nil {
		dbService.Close()
		obs.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize ranking module: %w", err)
	}

	app := &App{
		Config:        cfg,
		Observability: obs,
		DB:            dbService,
		PubSub:        pubsub,
		EventRouter:   eventRouter,
		RankingModule: rankingModule,
		handler:       root,
	}

	root.Get("/healthz", app.handleHealth)
	root.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{Registry: obs.Registry}))

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *App) Handler() http.Handler {
	return app.handler
}

func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, body := http.StatusOK, map[string]string{"status": "ok"}
	if err := app.DB.GetDB().PingContext(ctx); err != nil {
		app.Observability.Logger.WarnContext(ctx, "Health check failed", attr.ExtractCorrelationID(ctx), attr.Error(err))
		status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Close releases the event bus and the database, then flushes pending spans.
func (app *App) Close() error {
	logger := app.Observability.Logger

	if app.RankingModule != nil {
		if err := app.RankingModule.Close(); err != nil {
			logger.Error("Error closing ranking module", attr.Error(err))
		}
	}
	if app.PubSub != nil {
		if err := app.PubSub.Close(); err != nil {
			logger.Error("Error closing pubsub", attr.Error(err))
		}
	}
	var dbErr error
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			dbErr = fmt.Errorf("failed to close database: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
	defer cancel()
	if err := app.Observability.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down tracer provider", attr.Error(err))
	}
	return dbErr
}
