// Package storage persists the ledger as one JSON array under a single key.
//
// A Slot is the raw key/value cell (file, SQLite row, Mongo document or
// memory). Persistence sits on top of a Slot and gives the ledger its
// best-effort Load/Save contract: reads never fail and write failures are
// logged, not returned.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"gagyebu/internal/core"
)

// ErrSlotEmpty is returned by Slot.Read when nothing was ever written.
var ErrSlotEmpty = errors.New("slot empty")

// Slot stores one opaque blob.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// Pinger is implemented by slots backed by a server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Persistence adapts a Slot to the ledger's Load/Save contract.
type Persistence struct {
	slot   Slot
	logger *slog.Logger
}

// NewPersistence wraps slot. A nil logger means slog.Default.
func NewPersistence(slot Slot, logger *slog.Logger) *Persistence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistence{slot: slot, logger: logger.With("component", "storage")}
}

// Load returns the stored records. A missing key, unreadable storage,
// malformed JSON or a non-array value all yield an empty list. Elements
// that do not decode as records are dropped.
func (p *Persistence) Load(ctx context.Context) []core.Transaction {
	data, err := p.slot.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrSlotEmpty) {
			p.logger.WarnContext(ctx, "Ledger read failed, starting empty", "operation", "load", "error", err)
		}
		return []core.Transaction{}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		p.logger.WarnContext(ctx, "Stored ledger is not a JSON array, starting empty", "operation", "load", "error", err)
		return []core.Transaction{}
	}

	out := make([]core.Transaction, 0, len(elems))
	dropped := 0
	for _, el := range elems {
		var t core.Transaction
		if err := json.Unmarshal(el, &t); err != nil || t.ID == "" {
			dropped++
			continue
		}
		out = append(out, t)
	}
	if dropped > 0 {
		p.logger.WarnContext(ctx, "Dropped undecodable stored records", "operation", "load", "dropped", dropped)
	}
	return out
}

// Save overwrites the slot with the full list. Failures are logged only;
// the caller's in-memory state stays authoritative.
func (p *Persistence) Save(ctx context.Context, items []core.Transaction) {
	if items == nil {
		items = []core.Transaction{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to encode ledger", "operation", "save", "error", err)
		return
	}
	if err := p.slot.Write(ctx, data); err != nil {
		p.logger.ErrorContext(ctx, "Failed to persist ledger", "operation", "save", "count", len(items), "error", err)
		return
	}
	p.logger.DebugContext(ctx, "Ledger persisted", "operation", "save", "count", len(items))
}

// Ping checks the backing store when it supports it.
func (p *Persistence) Ping(ctx context.Context) error {
	if pg, ok := p.slot.(Pinger); ok {
		return pg.Ping(ctx)
	}
	return nil
}
