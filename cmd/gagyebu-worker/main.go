package main

import (
	"context"
	"os"
	"time"

	"gagyebu/internal/amqp"
	"gagyebu/internal/backend"
	"gagyebu/internal/cli"
	applog "gagyebu/internal/log"
	gsheet "gagyebu/internal/sheets/google"
	"gagyebu/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting gagyebu-worker")

	if !cfg.SheetsConfigured() {
		logger.Error("Google Sheets mirror requires GOOGLE_SPREADSHEET_ID and credentials")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	// The worker reads what the server wrote; a private in-memory slot
	// would always be empty.
	if backendCfg.Type == backend.MemoryBackend {
		logger.Error("The mirror worker needs a shared backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	result, err := backend.NewFactory(logger.Slog()).CreateBackend(startCtx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	sheetsClient, err := gsheet.NewFromEnv(startCtx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	// Without a broker the worker still mirrors on its ticker.
	var changes worker.ChangeSource
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Slog())
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		changes = amqpClient
	} else {
		logger.Info("AMQP disabled, mirroring on interval only", "interval", cfg.MirrorInterval)
	}

	mirror := worker.NewMirrorWorker(result.Persistence, sheetsClient, cfg.MirrorInterval, logger.Slog())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := result.Close(ctx); err != nil {
			logger.Warn("Backend close error", "error", err)
		}
	})

	if err := mirror.Run(ctx, changes); err != nil {
		logger.Error("Mirror worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
