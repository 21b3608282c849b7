package sheets

import (
	"context"

	"gagyebu/internal/core"
)

// Ports for outbound spreadsheet adapters.
type (
	// GridSource yields the first worksheet as rows of cells. Row 0 is the
	// header. Cells are float64, string, bool, time.Time or nil.
	GridSource interface {
		ReadGrid(ctx context.Context) ([][]any, error)
	}

	// LedgerMirror overwrites a sheet with the full ledger, header included.
	LedgerMirror interface {
		ReplaceLedger(ctx context.Context, items []core.Transaction) error
	}
)

// Header is the column layout written by mirrors. It is also accepted by
// the grid importer, so a mirrored sheet can be imported back.
var Header = []any{"id", "date", "type", "category", "amount", "memo", "merchant"}

// Rows renders records in Header order.
func Rows(items []core.Transaction) [][]any {
	out := make([][]any, 0, len(items)+1)
	out = append(out, Header)
	for _, t := range items {
		merchant := ""
		if t.Merchant != nil {
			merchant = t.Merchant.Name
		}
		out = append(out, []any{t.ID, t.Date, string(t.Type), t.Category, t.Amount, t.Memo, merchant})
	}
	return out
}
