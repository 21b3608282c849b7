package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gagyebu/internal/amqp"
	"gagyebu/internal/backend"
	"gagyebu/internal/cli"
	apphttp "gagyebu/internal/http"
	"gagyebu/internal/ledger"
	applog "gagyebu/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger.Slog()).CreateBackend(startCtx, backendCfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	opts := []ledger.Option{ledger.WithLogger(logger.Slog())}

	// Change events are optional; the server works without a broker.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Slog())
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", "error", err)
			amqpClient = nil
		} else {
			opts = append(opts, ledger.WithNotifier(amqpClient))
		}
	}

	store := ledger.New(context.Background(), result.Persistence, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, store, apphttp.Options{
		Logger:             logger,
		Ready:              result.Persistence.Ping,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := result.Close(ctx); err != nil {
			logger.Warn("Backend close error", "error", err)
		}
	})

	logger.Info("Starting gagyebu server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"records", store.Len(),
		"change_events", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
