package main

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/txgw/internal/observability"
)

// runGateway starts the gateway and blocks until ctx is cancelled or the
// server fails, then shuts everything down.
func runGateway(ctx context.Context, app *application) error {
	logger := app.logger

	if err := app.gateway.Start(ctx); err != nil {
		_ = app.close(context.Background())
		return err
	}
	logger.Info("gateway listening", observability.String("address", app.gateway.Addr()))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case <-app.gateway.Done():
		serveErr = app.gateway.Err()
		logger.Error("gateway stopped unexpectedly", observability.Error(serveErr))
	}

	return errors.Join(serveErr, shutdown(app))
}

// shutdown stops the gateway, draining in-flight requests, then releases
// the remaining components.
func shutdown(app *application) error {
	timeout := app.config.Spec.Server.ShutdownTimeout.Duration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if app.gateway.IsRunning() {
		if err := app.gateway.Stop(shutdownCtx); err != nil {
			app.logger.Error("failed to stop gateway gracefully", observability.Error(err))
			errs = append(errs, err)
		}
	}
	if err := app.close(shutdownCtx); err != nil {
		app.logger.Error("failed to release resources", observability.Error(err))
		errs = append(errs, err)
	}

	app.logger.Info("gateway stopped")
	return errors.Join(errs...)
}
