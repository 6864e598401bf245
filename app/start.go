package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Black-And-White-Club/taco-rank/app/shared/attr"
)

// Start runs the event router, the ranking module and the HTTP server until
// ctx is cancelled, then shuts everything down.
func (app *App) Start(ctx context.Context) error {
	logger := app.Observability.Logger

	routerErr := make(chan error, 1)
	go func() {
		routerErr <- app.EventRouter.Run(ctx)
	}()
	select {
	case <-app.EventRouter.Running():
	case err := <-routerErr:
		app.Close()
		return fmt.Errorf("event router: %w", err)
	}

	app.wg.Add(1)
	go app.RankingModule.Run(ctx, &app.wg)

	srv := &http.Server{
		Addr:              app.Config.HTTP.Address,
		Handler:           app.Handler(),
		ReadHeaderTimeout: app.Config.HTTP.ReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", attr.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	case err := <-routerErr:
		if err != nil {
			runErr = fmt.Errorf("event router: %w", err)
		}
	}

	app.WaitForShutdown(srv)
	return runErr
}
