// Package worker mirrors the canonical ledger into a spreadsheet.
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gagyebu/internal/amqp"
	"gagyebu/internal/core"
	applog "gagyebu/internal/log"
	"gagyebu/internal/sheets"
)

// Loader reads the canonical list from the shared backend.
type Loader interface {
	Load(ctx context.Context) []core.Transaction
}

// ChangeSource delivers ledger change events, e.g. *amqp.Client.
type ChangeSource interface {
	ConsumeLedgerChanges(ctx context.Context, handler func(context.Context, *amqp.LedgerChangedMessage) error) error
}

// MirrorWorker overwrites a sheet with the ledger whenever it changes and on
// every tick. It is a one-way export.
type MirrorWorker struct {
	loader   Loader
	mirror   sheets.LedgerMirror
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	lastDigest [sha256.Size]byte
	mirrored   bool
}

func NewMirrorWorker(loader Loader, mirror sheets.LedgerMirror, interval time.Duration, logger *slog.Logger) *MirrorWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{
		loader:   loader,
		mirror:   mirror,
		interval: interval,
		logger:   logger.With("component", "mirror"),
	}
}

// Mirror re-reads the ledger and rewrites the sheet. The write is skipped
// when the list is identical to the last one mirrored.
func (w *MirrorWorker) Mirror(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	items := w.loader.Load(ctx)
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	digest := sha256.Sum256(data)
	if w.mirrored && digest == w.lastDigest {
		w.logger.DebugContext(ctx, "Ledger unchanged, skipping mirror", "count", len(items))
		return nil
	}

	if err := w.mirror.ReplaceLedger(ctx, items); err != nil {
		return fmt.Errorf("replace sheet: %w", err)
	}
	w.lastDigest, w.mirrored = digest, true

	w.logger.InfoContext(ctx, "Ledger mirrored", "count", len(items))
	return nil
}

// HandleChange mirrors after a change event. Failures are logged and the
// message is still acknowledged; the next tick retries.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	fields := applog.NewFields().WithChange(msg.Op, msg.Count, msg.Month, msg.Version)
	w.logger.DebugContext(ctx, "Ledger change received", fields.ToSlice()...)

	if err := w.Mirror(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Mirror after change failed", fields.WithError(err).ToSlice()...)
	}
	return nil
}

// Run mirrors once, then on every tick and every change event from changes
// (which may be nil) until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, changes ChangeSource) error {
	if err := w.Mirror(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup mirror failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.Mirror(ctx); err != nil {
					w.logger.ErrorContext(ctx, "Periodic mirror failed", "error", err)
				}
			}
		}
	})

	if changes != nil {
		g.Go(func() error {
			return changes.ConsumeLedgerChanges(ctx, w.HandleChange)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
