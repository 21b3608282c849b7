package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gagyebu/internal/core"
)

// serialEpochOffset is the number of days between the spreadsheet serial
// epoch (day 0 = 1899-12-30) and 1970-01-01.
const serialEpochOffset = 25569

type column int

const (
	colID column = iota
	colDate
	colType
	colCategory
	colAmount
	colMemo
	numColumns
)

// headerSynonyms lists every accepted (normalized) header per logical column.
var headerSynonyms = [numColumns][]string{
	colID:       {"id", "아이디", "번호"},
	colDate:     {"date", "날짜"},
	colType:     {"type", "구분"},
	colCategory: {"category", "카테고리"},
	colAmount:   {"amount", "금액"},
	colMemo:     {"memo", "메모"},
}

// layout maps logical columns to grid indexes; -1 means absent.
type layout [numColumns]int

// NormalizeGrid converts a worksheet grid into records. Row 0 is the header;
// column order is free and headers may be English or Korean. Rows that fail
// validation are reported in Rejected by their grid index. Rows with no
// content at all are skipped silently.
func NormalizeGrid(rows [][]any, newID IDFunc) Result {
	newID = orDefault(newID)
	res := Result{}
	if len(rows) == 0 {
		return res
	}

	cols := resolveLayout(rows[0])
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		tx := buildRow(row, cols, newID)
		if err := tx.Validate(); err != nil {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Err: err})
			continue
		}
		res.Accepted = append(res.Accepted, tx)
	}
	return res
}

func resolveLayout(header []any) layout {
	var l layout
	for c := range l {
		l[c] = -1
	}
	for idx, cell := range header {
		name := normalizeHeader(cellText(cell))
		if name == "" {
			continue
		}
		for c, names := range headerSynonyms {
			if l[c] != -1 {
				continue
			}
			for _, syn := range names {
				if name == syn {
					l[c] = idx
					break
				}
			}
		}
	}
	return l
}

func normalizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(s))
}

func buildRow(row []any, cols layout, newID IDFunc) core.Transaction {
	get := func(c column) any {
		idx := cols[c]
		if idx < 0 || idx >= len(row) {
			return nil
		}
		return row[idx]
	}

	id := strings.TrimSpace(cellText(get(colID)))
	if id == "" {
		id = newID()
	}
	return core.Transaction{
		ID:       id,
		Date:     normalizeDate(get(colDate)),
		Type:     classifyType(get(colType)),
		Category: strings.TrimSpace(cellText(get(colCategory))),
		Amount:   normalizeAmount(get(colAmount)),
		Memo:     strings.TrimSpace(cellText(get(colMemo))),
	}
}

// normalizeDate accepts serial day numbers and y-m-d strings with '-', '.'
// or '/' separators. Anything else yields "" and fails validation later.
func normalizeDate(v any) string {
	if n, ok := numeric(v); ok {
		return serialToDate(n)
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.DateOnly)
	case string:
		return normalizeDateString(t)
	default:
		return ""
	}
}

func serialToDate(serial float64) string {
	ms := math.Round((serial - serialEpochOffset) * 86400 * 1000)
	return time.UnixMilli(int64(ms)).UTC().Format(time.DateOnly)
}

func normalizeDateString(s string) string {
	s = strings.NewReplacer(".", "-", "/", "-").Replace(strings.TrimSpace(s))
	parts := strings.Split(s, "-")
	// "2024.05.01." leaves a trailing empty part
	if len(parts) == 4 && strings.TrimSpace(parts[3]) == "" {
		parts = parts[:3]
	}
	if len(parts) != 3 {
		return ""
	}
	y := strings.TrimSpace(parts[0])
	m := padTwo(strings.TrimSpace(parts[1]))
	d := padTwo(strings.TrimSpace(parts[2]))
	return y + "-" + m + "-" + d
}

func padTwo(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// normalizeAmount keeps numbers as they are and strips strings down to
// digits, '.' and '-' before parsing. Unparsable input becomes 0.
func normalizeAmount(v any) float64 {
	if n, ok := numeric(v); ok {
		return n
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return n
}

// classifyType reads Korean or English labels. Anything unrecognized,
// including a missing column, counts as an expense.
func classifyType(v any) core.TxType {
	s := strings.ToLower(strings.TrimSpace(cellText(v)))
	switch {
	case strings.Contains(s, "지출") || s == "expense":
		return core.Expense
	case strings.Contains(s, "수입") || s == "income":
		return core.Income
	default:
		return core.Expense
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func blankRow(row []any) bool {
	for _, cell := range row {
		if strings.TrimSpace(cellText(cell)) != "" {
			return false
		}
	}
	return true
}
