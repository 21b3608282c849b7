// Command gagyebu-cli reads and edits the ledger from a terminal, using the
// same persistence backend as the server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gagyebu/internal/backend"
	"gagyebu/internal/cli"
	"gagyebu/internal/ledger"
	applog "gagyebu/internal/log"
	"gagyebu/internal/sheets"
	gsheet "gagyebu/internal/sheets/google"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		usage(os.Stderr)
		os.Exit(2)
	}

	// Output belongs to the command; only warnings are logged, to stderr.
	cli.LoadEnvFile()
	logger := applog.New(applog.Config{
		Level:     slog.LevelWarn,
		Component: applog.ComponentApp,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		fatal(logger, "Invalid backend configuration", err)
	}
	result, err := backend.NewFactory(logger.Slog()).CreateBackend(ctx, backendCfg)
	if err != nil {
		fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = result.Close(closeCtx)
	}()

	a := &app{
		store: ledger.New(ctx, result.Persistence, ledger.WithLogger(logger.Slog())),
		out:   os.Stdout,
		in:    os.Stdin,
		now:   time.Now,
		sheet: func(ctx context.Context) (sheets.GridSource, error) {
			return gsheet.NewFromEnv(ctx)
		},
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "gagyebu-cli:", err)
		os.Exit(1)
	}
}

func fatal(logger *applog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
