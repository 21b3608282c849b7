// Package ledger owns the canonical transaction list.
//
// The list is kept sorted by date, most recent first, with ties in insertion
// order. Every mutation re-establishes that order, saves the full list and
// then notifies listeners. Record ids are unique: adding or importing a
// record whose id already exists replaces the stored record.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gagyebu/internal/core"
	"gagyebu/internal/importer"
)

// writeTimeout bounds one save or notification. Both ignore the caller's
// cancellation: a mutation applied in memory is always handed to the slot.
const writeTimeout = 15 * time.Second

// Store is the in-memory ledger, safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	items     []core.Transaction
	selected  string
	version   uint64
	persist   Persister
	notifiers []Notifier
	logger    *slog.Logger
	newID     importer.IDFunc
	now       func() time.Time
	imports   *semaphore.Weighted
}

// New loads the persisted list once and returns a ready store.
func New(ctx context.Context, p Persister, opts ...Option) *Store {
	s := &Store{
		persist: p,
		logger:  slog.Default(),
		newID:   importer.NewID,
		now:     time.Now,
		imports: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ledger")

	s.items = p.Load(ctx)
	if s.items == nil {
		s.items = []core.Transaction{}
	}
	sortByDateDesc(s.items)
	s.selected = core.CurrentMonth(s.now())

	s.logger.InfoContext(ctx, "Ledger loaded", "operation", "load", "count", len(s.items), "selected_month", s.selected)
	return s
}

// Add validates tx and inserts it at the front before re-sorting. A missing
// id is generated. When the id already exists the stored record is replaced.
func (s *Store) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if strings.TrimSpace(tx.ID) == "" {
		tx.ID = s.newID()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	if i := s.indexOf(tx.ID); i >= 0 {
		s.items[i] = tx
	} else {
		s.items = slices.Insert(s.items, 0, tx)
	}
	c := s.commitLocked(ctx, OpAdd, 1, "")
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction added", "operation", OpAdd,
		"transaction_id", tx.ID, "month", core.MonthKey(tx.Date), "type", tx.Type)
	s.notify(ctx, c)
	return tx, nil
}

// Update replaces the record with the same id. It reports false, and
// changes nothing, when no record matches.
func (s *Store) Update(ctx context.Context, tx core.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	i := s.indexOf(tx.ID)
	if i < 0 {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Update ignored, unknown id", "operation", OpUpdate, "transaction_id", tx.ID)
		return false, nil
	}
	s.items[i] = tx
	c := s.commitLocked(ctx, OpUpdate, 1, "")
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction updated", "operation", OpUpdate, "transaction_id", tx.ID)
	s.notify(ctx, c)
	return true, nil
}

// Remove drops the record with the given id and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	c := s.commitLocked(ctx, OpRemove, 1, "")
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Transaction removed", "operation", OpRemove, "transaction_id", id)
	s.notify(ctx, c)
	return true
}

// ClearMonth drops every record dated in month ym and returns how many
// were removed.
func (s *Store) ClearMonth(ctx context.Context, ym string) (int, error) {
	if !core.ValidMonthKey(ym) {
		return 0, core.ErrInvalidMonth
	}

	s.mu.Lock()
	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(t core.Transaction) bool { return t.InMonth(ym) })
	removed := before - len(s.items)
	if removed == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	c := s.commitLocked(ctx, OpClearMonth, removed, ym)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Month cleared", "operation", OpClearMonth, "month", ym, "removed", removed)
	s.notify(ctx, c)
	return removed, nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return core.Transaction{}, false
}

// All returns a copy of the canonical list in store order.
func (s *Store) All() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// MonthView returns the records dated in month ym, in store order. It is
// computed from the canonical list on every call.
func (s *Store) MonthView(ym string) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Transaction{}
	for _, t := range s.items {
		if t.InMonth(ym) {
			out = append(out, t)
		}
	}
	return out
}

// Totals sums the whole ledger.
func (s *Store) Totals() core.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Summarize(s.items)
}

// MonthTotals sums the records of month ym.
func (s *Store) MonthTotals(ym string) core.Totals {
	return core.Summarize(s.MonthView(ym))
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Version increases by one for every applied mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SelectedMonth is the month the consumer is looking at. It starts as the
// current UTC month.
func (s *Store) SelectedMonth() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SetSelectedMonth changes the selected month. It is not persisted.
func (s *Store) SetSelectedMonth(ym string) error {
	if !core.ValidMonthKey(ym) {
		return core.ErrInvalidMonth
	}
	s.mu.Lock()
	s.selected = ym
	s.mu.Unlock()
	return nil
}

// commitLocked re-sorts, persists and records the mutation. The caller
// holds s.mu.
func (s *Store) commitLocked(ctx context.Context, op Op, count int, month string) Change {
	sortByDateDesc(s.items)
	wctx, cancel := detached(ctx)
	s.persist.Save(wctx, slices.Clone(s.items))
	cancel()
	s.version++
	return Change{Op: op, Count: count, Total: len(s.items), Month: month, Version: s.version, At: s.now().UTC()}
}

func (s *Store) notify(ctx context.Context, c Change) {
	if len(s.notifiers) == 0 {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	for _, n := range s.notifiers {
		if err := n.LedgerChanged(ctx, c); err != nil {
			s.logger.WarnContext(ctx, "Change notification failed", "operation", c.Op, "version", c.Version, "error", err)
		}
	}
}

// detached keeps ctx's values (request id, logger) but not its deadline
// or cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.items, func(t core.Transaction) bool { return t.ID == id })
}

func sortByDateDesc(items []core.Transaction) {
	slices.SortStableFunc(items, func(a, b core.Transaction) int {
		return strings.Compare(b.Date, a.Date)
	})
}

// IsValidationError reports whether err came from record validation.
func IsValidationError(err error) bool {
	for _, target := range []error{
		core.ErrMissingID, core.ErrInvalidDate, core.ErrInvalidType,
		core.ErrEmptyCategory, core.ErrInvalidAmount, core.ErrInvalidMonth,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
