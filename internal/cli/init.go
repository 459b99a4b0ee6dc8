// Package cli provides common CLI initialization utilities shared by
// cmd/fintrack and cmd/fintrack-ctl.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// sets it as the default. An unknown level falls back to info.
func SetupLogger(cfg *config.Config) *log.Logger {
	return setupLogger(cfg, os.Stdout)
}

func setupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Format: cfg.LogFormat, Output: out})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads .env and the environment, sets up logging and
// validates the result. It exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.LogError(context.Background(), "Configuration validation failed", err,
			log.ErrorTypeConfiguration, log.OpStartup, nil)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend wires the backend selected by cfg.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.Backend {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.LogError(ctx, "Invalid backend configuration", err, log.ErrorTypeConfiguration, log.OpStartup, nil)
		os.Exit(1)
	}
	b, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bc)
	if err != nil {
		logger.LogError(ctx, "Failed to initialize backend", err, log.ErrorTypeDatabase, log.OpStartup,
			log.NewFields().With(log.FieldBackend, cfg.DataBackend))
		os.Exit(1)
	}
	return b
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM; cleanup then runs
// with a deadline of timeout, and done is closed when it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
