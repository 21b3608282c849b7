package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gagyebu/internal/core"
	"gagyebu/internal/storage"
)

// fakePersister records every save.
type fakePersister struct {
	mu      sync.Mutex
	initial []core.Transaction
	saved   [][]core.Transaction
}

func (f *fakePersister) Load(context.Context) []core.Transaction {
	return append([]core.Transaction(nil), f.initial...)
}

func (f *fakePersister) Save(_ context.Context, items []core.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, items)
}

func (f *fakePersister) saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakePersister) last() []core.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

var fixedNow = time.Date(2025, 3, 15, 23, 30, 0, 0, time.FixedZone("KST", 9*3600))

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newStore(t *testing.T, p Persister, opts ...Option) *Store {
	t.Helper()
	n := 0
	base := []Option{
		WithLogger(quiet()),
		WithClock(func() time.Time { return fixedNow }),
		WithIDFunc(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	}
	return New(context.Background(), p, append(base, opts...)...)
}

func tx(id, date string, typ core.TxType, category string, amount float64) core.Transaction {
	return core.Transaction{ID: id, Date: date, Type: typ, Category: category, Amount: amount}
}

func ids(items []core.Transaction) []string {
	out := make([]string, len(items))
	for i, t := range items {
		out[i] = t.ID
	}
	return out
}

func requireSortedUnique(t *testing.T, items []core.Transaction) {
	t.Helper()
	seen := map[string]bool{}
	for i, it := range items {
		require.False(t, seen[it.ID], "duplicate id %s", it.ID)
		seen[it.ID] = true
		if i > 0 {
			require.GreaterOrEqual(t, items[i-1].Date, it.Date, "not date-descending at %d", i)
		}
	}
}

func TestNewSortsLoadedRecordsStably(t *testing.T) {
	p := &fakePersister{initial: []core.Transaction{
		tx("a", "2025-01-01", core.Expense, "식비", 1),
		tx("b", "2025-02-01", core.Expense, "식비", 1),
		tx("c", "2025-01-01", core.Income, "급여", 1),
		tx("d", "2025-02-01", core.Income, "급여", 1),
	}}
	s := newStore(t, p)

	require.Equal(t, []string{"b", "d", "a", "c"}, ids(s.All()))
	require.Equal(t, 0, p.saves(), "loading must not write back")
}

func TestSelectedMonthDefaultsToCurrentUTCMonth(t *testing.T) {
	s := newStore(t, &fakePersister{})
	require.Equal(t, "2025-03", s.SelectedMonth())

	require.NoError(t, s.SetSelectedMonth("2024-12"))
	require.Equal(t, "2024-12", s.SelectedMonth())
	require.ErrorIs(t, s.SetSelectedMonth("2024-1"), core.ErrInvalidMonth)
	require.Equal(t, "2024-12", s.SelectedMonth())
}

func TestAdd(t *testing.T) {
	p := &fakePersister{}
	s := newStore(t, p)
	ctx := context.Background()

	first, err := s.Add(ctx, tx("", "2025-03-01", core.Expense, "식비", 12000))
	require.NoError(t, err)
	require.Equal(t, "id-1", first.ID)

	_, err = s.Add(ctx, tx("x", "2025-03-05", core.Income, "급여", 3000000))
	require.NoError(t, err)
	_, err = s.Add(ctx, tx("y", "2025-03-01", core.Expense, "교통", 1450))
	require.NoError(t, err)

	// same date: the newer record comes first
	require.Equal(t, []string{"x", "y", "id-1"}, ids(s.All()))
	require.Equal(t, 3, p.saves())
	require.Equal(t, ids(s.All()), ids(p.last()))
	require.Equal(t, uint64(3), s.Version())
}

func TestAddReplacesExistingID(t *testing.T) {
	s := newStore(t, &fakePersister{})
	ctx := context.Background()

	_, err := s.Add(ctx, tx("a", "2025-03-01", core.Expense, "식비", 1000))
	require.NoError(t, err)
	_, err = s.Add(ctx, tx("a", "2025-03-02", core.Expense, "카페", 4500))
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 1)
	require.Equal(t, "카페", all[0].Category)
}

func TestAddRejectsInvalidRecords(t *testing.T) {
	p := &fakePersister{}
	s := newStore(t, p)
	ctx := context.Background()

	cases := []struct {
		name string
		in   core.Transaction
		want error
	}{
		{"zero amount", tx("", "2025-03-01", core.Expense, "식비", 0), core.ErrInvalidAmount},
		{"negative amount", tx("", "2025-03-01", core.Expense, "식비", -5), core.ErrInvalidAmount},
		{"blank category", tx("", "2025-03-01", core.Expense, "   ", 5), core.ErrEmptyCategory},
		{"bad date", tx("", "2025/03/01", core.Expense, "식비", 5), core.ErrInvalidDate},
		{"bad type", tx("", "2025-03-01", core.TxType("transfer"), "식비", 5), core.ErrInvalidType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Add(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
			require.True(t, IsValidationError(err))
		})
	}
	require.Zero(t, s.Len())
	require.Zero(t, p.saves())
}

func TestUpdate(t *testing.T) {
	p := &fakePersister{initial: []core.Transaction{
		tx("a", "2025-03-03", core.Expense, "식비", 1000),
		tx("b", "2025-03-02", core.Expense, "교통", 2000),
	}}
	s := newStore(t, p)
	ctx := context.Background()

	ok, err := s.Update(ctx, tx("a", "2025-03-01", core.Expense, "식비", 1500))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"b", "a"}, ids(s.All()), "update must re-sort")
	require.Equal(t, 1, p.saves())

	ok, err = s.Update(ctx, tx("missing", "2025-03-01", core.Expense, "식비", 1))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 2, s.Len())
	require.Equal(t, 1, p.saves(), "unknown id is a no-op")

	_, err = s.Update(ctx, tx("a", "2025-03-01", core.Expense, "식비", 0))
	require.ErrorIs(t, err, core.ErrInvalidAmount)
	got, _ := s.Get("a")
	require.Equal(t, 1500.0, got.Amount)
}

func TestRemove(t *testing.T) {
	p := &fakePersister{initial: []core.Transaction{
		tx("a", "2025-03-03", core.Expense, "식비", 1000),
		tx("b", "2025-03-02", core.Expense, "교통", 2000),
	}}
	s := newStore(t, p)
	ctx := context.Background()

	require.True(t, s.Remove(ctx, "a"))
	require.Equal(t, []string{"b"}, ids(s.All()))
	require.False(t, s.Remove(ctx, "a"))
	require.False(t, s.Remove(ctx, ""))
	require.Equal(t, 1, p.saves())
}

func TestMonthViewAndClearMonth(t *testing.T) {
	p := &fakePersister{initial: []core.Transaction{
		tx("a", "2025-03-31", core.Expense, "식비", 1),
		tx("b", "2025-02-28", core.Expense, "식비", 2),
		tx("c", "2025-03-01", core.Income, "급여", 3),
		tx("d", "2024-03-15", core.Expense, "교통", 4),
	}}
	s := newStore(t, p)
	ctx := context.Background()

	require.Equal(t, []string{"a", "c"}, ids(s.MonthView("2025-03")))
	require.Empty(t, s.MonthView("2025-04"))
	require.NotNil(t, s.MonthView("2025-04"))

	_, err := s.ClearMonth(ctx, "2025-3")
	require.ErrorIs(t, err, core.ErrInvalidMonth)

	n, err := s.ClearMonth(ctx, "2025-03")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"b", "d"}, ids(s.All()))

	n, err = s.ClearMonth(ctx, "2025-03")
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 1, p.saves())
}

func TestTotals(t *testing.T) {
	s := newStore(t, &fakePersister{initial: []core.Transaction{
		tx("a", "2025-03-31", core.Expense, "식비", 12000),
		tx("b", "2025-03-10", core.Income, "급여", 3000000),
		tx("c", "2025-03-01", core.Expense, "교통", 1450),
		tx("d", "2025-02-01", core.Income, "용돈", 50000),
	}})

	m := s.MonthTotals("2025-03")
	require.Equal(t, core.Totals{Income: 3000000, Expense: 13450, Balance: 3000000 - 13450}, m)

	all := s.Totals()
	require.Equal(t, 3050000.0, all.Income)
	require.Equal(t, all.Income-all.Expense, all.Balance)
}

func TestPersistenceFailureKeepsMemoryAuthoritative(t *testing.T) {
	slot := storage.NewMemorySlot()
	slot.WriteErr = errors.New("quota exceeded")
	s := newStore(t, storage.NewPersistence(slot, quiet()))

	_, err := s.Add(context.Background(), tx("a", "2025-03-01", core.Expense, "식비", 1000))
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())
}

func TestCorruptedPersistenceStartsEmpty(t *testing.T) {
	slot := storage.NewMemorySlot()
	require.NoError(t, slot.Write(context.Background(), []byte("{{{ not json")))

	s := newStore(t, storage.NewPersistence(slot, quiet()))
	require.Zero(t, s.Len())

	_, err := s.Add(context.Background(), tx("a", "2025-03-01", core.Expense, "식비", 1000))
	require.NoError(t, err)
	reloaded := newStore(t, storage.NewPersistence(slot, quiet()))
	require.Equal(t, []string{"a"}, ids(reloaded.All()))
}

func TestCanceledCallerStillPersists(t *testing.T) {
	slot, err := storage.NewSQLiteSlot(filepath.Join(t.TempDir(), "ledger.db"), "budget:tx:v1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = slot.Close() })

	var notified error
	s := newStore(t, storage.NewPersistence(slot, quiet()),
		WithNotifier(NotifierFunc(func(ctx context.Context, _ Change) error {
			notified = ctx.Err()
			return nil
		})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Add(ctx, tx("a", "2025-03-01", core.Expense, "식비", 1000))
	require.NoError(t, err)
	require.NoError(t, notified)

	removed, err := s.ClearMonth(ctx, "2025-02")
	require.NoError(t, err)
	require.Zero(t, removed)

	reloaded := storage.NewPersistence(slot, quiet()).Load(context.Background())
	require.Equal(t, []string{"a"}, ids(reloaded))
}

func TestNotifiers(t *testing.T) {
	var mu sync.Mutex
	var got []Change
	record := NotifierFunc(func(_ context.Context, c Change) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
		return nil
	})
	failing := NotifierFunc(func(context.Context, Change) error { return errors.New("broker down") })

	s := newStore(t, &fakePersister{}, WithNotifier(failing), WithNotifier(record))
	ctx := context.Background()

	_, err := s.Add(ctx, tx("a", "2025-03-01", core.Expense, "식비", 1000))
	require.NoError(t, err)
	_, err = s.Add(ctx, tx("b", "2025-02-01", core.Expense, "식비", 1000))
	require.NoError(t, err)
	_, err = s.ClearMonth(ctx, "2025-02")
	require.NoError(t, err)
	s.Remove(ctx, "missing")

	require.Len(t, got, 3)
	require.Equal(t, OpAdd, got[0].Op)
	require.Equal(t, uint64(1), got[0].Version)
	require.Equal(t, Change{Op: OpClearMonth, Count: 1, Total: 1, Month: "2025-02", Version: 3, At: fixedNow.UTC()}, got[2])
}

// Random add/update/remove sequences keep the list sorted and ids unique.
func TestRandomMutationsKeepInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	s := newStore(t, &fakePersister{})
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("r%d", r.IntN(40))
		date := fmt.Sprintf("2025-%02d-%02d", 1+r.IntN(12), 1+r.IntN(28))
		typ := core.Expense
		if r.IntN(2) == 0 {
			typ = core.Income
		}
		rec := tx(id, date, typ, "기타", float64(1+r.IntN(100000)))
		switch r.IntN(4) {
		case 0, 1:
			_, err := s.Add(ctx, rec)
			require.NoError(t, err)
		case 2:
			_, err := s.Update(ctx, rec)
			require.NoError(t, err)
		case 3:
			s.Remove(ctx, id)
		}
		requireSortedUnique(t, s.All())
	}
}

func TestConcurrentAdds(t *testing.T) {
	s := newStore(t, &fakePersister{}, WithIDFunc(nil))
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				date := fmt.Sprintf("2025-03-%02d", 1+(w*25+i)%28)
				_, err := s.Add(ctx, tx(fmt.Sprintf("w%d-%d", w, i), date, core.Expense, "식비", 1))
				if err != nil {
					t.Errorf("add: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 200, s.Len())
	requireSortedUnique(t, s.All())
	require.True(t, strings.HasPrefix(s.All()[0].Date, "2025-03-28"))
}
