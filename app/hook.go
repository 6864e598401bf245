package app

import (
	"context"
	"net/http"

	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
)

// WaitForShutdown drains the HTTP server within the configured grace period,
// then stops the modules and closes the event bus and database.
func (app *App) WaitForShutdown(srv *http.Server) {
	logger := app.Observability.Logger
	logger.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", attr.Error(err))
	}

	if err := app.Close(); err != nil {
		logger.Error("Error during shutdown", attr.Error(err))
	}
	app.wg.Wait()

	logger.Info("Application shut down gracefully.")
}
