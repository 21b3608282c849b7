package memory

import (
	"context"
	"sync"

	"gagyebu/internal/core"
	ports "gagyebu/internal/sheets"
)

var (
	_ ports.GridSource   = (*Sheet)(nil)
	_ ports.LedgerMirror = (*Sheet)(nil)
)

// Sheet is an in-process worksheet used in tests and when no spreadsheet
// is configured.
type Sheet struct {
	mu     sync.Mutex
	rows   [][]any
	writes int
	// Err, when set, is returned by every call.
	Err error
}

func New(rows [][]any) *Sheet {
	return &Sheet{rows: cloneGrid(rows)}
}

// ReadGrid returns a copy of the current grid.
func (s *Sheet) ReadGrid(_ context.Context) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return cloneGrid(s.rows), nil
}

// ReplaceLedger overwrites the grid with the header and one row per record.
func (s *Sheet) ReplaceLedger(_ context.Context, items []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.rows = ports.Rows(items)
	s.writes++
	return nil
}

// Writes reports how many times ReplaceLedger succeeded.
func (s *Sheet) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func cloneGrid(in [][]any) [][]any {
	out := make([][]any, len(in))
	for i, row := range in {
		out[i] = append([]any(nil), row...)
	}
	return out
}
