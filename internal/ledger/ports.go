package ledger

import (
	"context"
	"time"

	"gagyebu/internal/core"
)

// Persister loads and saves the canonical list. Load never fails and Save
// swallows its own errors; see storage.Persistence.
type Persister interface {
	Load(ctx context.Context) []core.Transaction
	Save(ctx context.Context, items []core.Transaction)
}

// Op names a store mutation.
type Op string

const (
	OpAdd        Op = "add"
	OpUpdate     Op = "update"
	OpRemove     Op = "remove"
	OpClearMonth Op = "clear_month"
	OpImport     Op = "import"
)

// Change describes one applied mutation.
type Change struct {
	Op      Op
	Count   int    // records touched by the mutation
	Total   int    // size of the list afterwards
	Month   string // set for clear_month
	Version uint64 // increases by one per applied mutation
	At      time.Time
}

// Notifier is told about every applied mutation. Errors are logged and
// otherwise ignored.
type Notifier interface {
	LedgerChanged(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change) error

func (f NotifierFunc) LedgerChanged(ctx context.Context, c Change) error { return f(ctx, c) }
