package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/novellus/pilates-booking/internal/app/bootstrap"
	appconfig "github.com/novellus/pilates-booking/internal/config"
	"github.com/novellus/pilates-booking/internal/observability/tracing"
	"github.com/novellus/pilates-booking/pkg/logging"
)

func main() {
	// .env is optional outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting pilates booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		ServiceName: "pilates-booking-api",
		Environment: cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Error("failed to initialise tracing", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Deps{})
	if err != nil {
		logger.Error("failed to initialise application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", "error", err)
		app.Close()
		os.Exit(1)
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		app.Close()
		os.Exit(1)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
