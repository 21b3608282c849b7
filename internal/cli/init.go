// Package cli holds the start-up steps shared by the gagyebu binaries.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gagyebu/internal/config"
	applog "gagyebu/internal/log"
)

// SetupLogger builds the process logger at the given level and installs it
// as the slog default.
func SetupLogger(level slog.Level) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     level,
		Component: applog.ComponentApp,
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Bootstrap runs LoadEnvFile, LoadAndValidateConfig and SetupLogger in order,
// so the logger honours LOG_LEVEL from the environment or .env.
func Bootstrap(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	boot := SetupLogger(slog.LevelInfo)
	cfg := LoadAndValidateConfig(boot)
	return cfg, SetupLogger(cfg.Level()).WithComponent(component)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
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

		if cleanup == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			cleanup(shutdownCtx)
			close(finished)
		}()
		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup ran.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
