package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gagyebu/internal/amqp"
	"gagyebu/internal/core"
	"gagyebu/internal/sheets/memory"
	"gagyebu/internal/storage"
)

type stubLoader struct {
	mu    sync.Mutex
	items []core.Transaction
	loads int
}

func (s *stubLoader) Load(context.Context) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return append([]core.Transaction(nil), s.items...)
}

func (s *stubLoader) set(items ...core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

// chanSource feeds messages from a channel to the handler.
type chanSource struct {
	msgs chan *amqp.LedgerChangedMessage
	err  error
}

func (c *chanSource) ConsumeLedgerChanges(ctx context.Context, handler func(context.Context, *amqp.LedgerChangedMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-c.msgs:
			if !ok {
				return c.err
			}
			_ = handler(ctx, m)
		}
	}
}

func record(id, date string) core.Transaction {
	return core.Transaction{ID: id, Date: date, Type: core.Expense, Category: "식비", Amount: 1000}
}

func TestMirrorWritesHeaderAndRows(t *testing.T) {
	loader := &stubLoader{items: []core.Transaction{record("b", "2025-03-02"), record("a", "2025-03-01")}}
	sheet := memory.New(nil)
	w := NewMirrorWorker(loader, sheet, time.Minute, nil)

	if err := w.Mirror(context.Background()); err != nil {
		t.Fatalf("mirror: %v", err)
	}
	rows, _ := sheet.ReadGrid(context.Background())
	if len(rows) != 3 || rows[0][0] != "id" || rows[1][0] != "b" || rows[2][0] != "a" {
		t.Fatalf("unexpected sheet: %v", rows)
	}
}

func TestMirrorSkipsUnchangedLedger(t *testing.T) {
	loader := &stubLoader{items: []core.Transaction{record("a", "2025-03-01")}}
	sheet := memory.New(nil)
	w := NewMirrorWorker(loader, sheet, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := w.Mirror(ctx); err != nil {
			t.Fatalf("mirror: %v", err)
		}
	}
	if sheet.Writes() != 1 {
		t.Fatalf("expected a single write, got %d", sheet.Writes())
	}

	loader.set(record("a", "2025-03-01"), record("c", "2025-02-01"))
	if err := w.Mirror(ctx); err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if sheet.Writes() != 2 {
		t.Fatalf("changed ledger must be written, writes=%d", sheet.Writes())
	}
}

func TestMirrorRetriesAfterFailure(t *testing.T) {
	loader := &stubLoader{items: []core.Transaction{record("a", "2025-03-01")}}
	sheet := memory.New(nil)
	sheet.Err = errors.New("quota exceeded")
	w := NewMirrorWorker(loader, sheet, time.Minute, nil)
	ctx := context.Background()

	if err := w.Mirror(ctx); err == nil {
		t.Fatal("expected error")
	}
	sheet.Err = nil
	if err := w.Mirror(ctx); err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if sheet.Writes() != 1 {
		t.Fatalf("failed write must not mark the ledger mirrored, writes=%d", sheet.Writes())
	}
}

func TestHandleChangeSwallowsErrors(t *testing.T) {
	sheet := memory.New(nil)
	sheet.Err = errors.New("403")
	w := NewMirrorWorker(&stubLoader{}, sheet, time.Minute, nil)

	if err := w.HandleChange(context.Background(), &amqp.LedgerChangedMessage{Op: "add", Version: 1}); err != nil {
		t.Fatalf("handler must ack even when the sheet fails, got %v", err)
	}
}

func TestRunMirrorsOnChangeEvents(t *testing.T) {
	slot := storage.NewMemorySlot()
	persist := storage.NewPersistence(slot, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persist.Save(ctx, []core.Transaction{record("a", "2025-03-01")})

	sheet := memory.New(nil)
	src := &chanSource{msgs: make(chan *amqp.LedgerChangedMessage)}
	w := NewMirrorWorker(persist, sheet, time.Hour, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, src) }()

	persist.Save(ctx, []core.Transaction{record("b", "2025-03-02"), record("a", "2025-03-01")})
	src.msgs <- &amqp.LedgerChangedMessage{Op: "add", Count: 1, Version: 1}

	deadline := time.After(2 * time.Second)
	for {
		rows, _ := sheet.ReadGrid(context.Background())
		if len(rows) == 3 && rows[1][0] == "b" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sheet never caught up: %v", rows)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run returned %v", err)
	}
}

func TestRunTicksWithoutChangeSource(t *testing.T) {
	loader := &stubLoader{items: []core.Transaction{record("a", "2025-03-01")}}
	sheet := memory.New(nil)
	w := NewMirrorWorker(loader, sheet, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx, nil); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run: %v", err)
	}

	loader.mu.Lock()
	loads := loader.loads
	loader.mu.Unlock()
	if loads < 2 {
		t.Fatalf("expected periodic reloads, got %d", loads)
	}
	if sheet.Writes() != 1 {
		t.Fatalf("unchanged ledger must be written once, got %d", sheet.Writes())
	}
}

func TestRunStopsWhenConsumerFails(t *testing.T) {
	src := &chanSource{msgs: make(chan *amqp.LedgerChangedMessage), err: errors.New("queue deleted")}
	close(src.msgs)
	w := NewMirrorWorker(&stubLoader{}, memory.New(nil), time.Hour, nil)

	err := w.Run(context.Background(), src)
	if err == nil || err.Error() != "queue deleted" {
		t.Fatalf("expected consumer error, got %v", err)
	}
}
