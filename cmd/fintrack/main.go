package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	b := cli.InitBackend(context.Background(), logger, cfg)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:    b.Ledger,
		Analytics: b.Analytics,
		Ready:     b.Ready,
		Logger:    logger,
	})
	if err != nil {
		logger.LogError(context.Background(), "Failed to build HTTP server", err, log.ErrorTypeConfiguration, log.OpStartup, nil)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if b.Worker != nil {
			if err := b.Worker.Stop(ctx); err != nil {
				logger.Error("Change worker shutdown error", log.FieldError, err)
			}
		}
		if err := b.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	// Writes made by fintrack-ctl reach this process's cache through the
	// change queue.
	if b.Worker != nil {
		if err := b.Worker.Start(ctx); err != nil {
			logger.Error("Failed to start change worker", log.FieldError, err)
		}
	}

	logger.Info("Starting fintrack server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
