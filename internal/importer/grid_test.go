package importer

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gagyebu/internal/core"
)

func seqIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want string
	}{
		{"serial number", 44927.0, "2023-01-01"},
		{"serial int", 44927, "2023-01-01"},
		{"serial with time of day", 44927.75, "2023-01-01"},
		{"epoch", 25569.0, "1970-01-01"},
		{"slashes", "2023/01/01", "2023-01-01"},
		{"dots", "2023.01.01", "2023-01-01"},
		{"dashes unpadded", "2023-1-5", "2023-01-05"},
		{"korean style with spaces", "2023. 1. 5", "2023-01-05"},
		{"trailing dot", "2023.01.05.", "2023-01-05"},
		{"time value", time.Date(2024, 2, 29, 13, 0, 0, 0, time.UTC), "2024-02-29"},
		{"two parts", "2023-01", ""},
		{"nil", nil, ""},
		{"bool", true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, normalizeDate(tc.in))
		})
	}
}

func TestNormalizeAmount(t *testing.T) {
	t.Parallel()

	require.Equal(t, 12000.0, normalizeAmount(12000.0))
	require.Equal(t, 12000.0, normalizeAmount("₩12,000"))
	require.Equal(t, 12000.5, normalizeAmount(" 12,000.50원 "))
	require.Equal(t, -300.0, normalizeAmount("-300"))
	require.Equal(t, 0.0, normalizeAmount("무료"))
	require.Equal(t, 0.0, normalizeAmount(""))
	require.Equal(t, 0.0, normalizeAmount(nil))
}

func TestClassifyType(t *testing.T) {
	t.Parallel()

	require.Equal(t, core.Expense, classifyType("지출"))
	require.Equal(t, core.Expense, classifyType("식비지출"))
	require.Equal(t, core.Expense, classifyType("Expense"))
	require.Equal(t, core.Income, classifyType("수입"))
	require.Equal(t, core.Income, classifyType(" INCOME "))
	require.Equal(t, core.Expense, classifyType("transfer"))
	require.Equal(t, core.Expense, classifyType(nil))
}

func TestResolveLayout(t *testing.T) {
	t.Parallel()

	l := resolveLayout([]any{"\ufeff날짜", " 금액 ", "CATEGORY", "unused", "메모", "구분"})
	require.Equal(t, -1, l[colID])
	require.Equal(t, 0, l[colDate])
	require.Equal(t, 1, l[colAmount])
	require.Equal(t, 2, l[colCategory])
	require.Equal(t, 4, l[colMemo])
	require.Equal(t, 5, l[colType])

	l = resolveLayout([]any{"번호", "Date"})
	require.Equal(t, 0, l[colID])
	require.Equal(t, 1, l[colDate])
}

func TestNormalizeGrid(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{"번호", "날짜", "구분", "카테고리", "금액", "메모"},
		{"x1", 44927.0, "수입", "급여", 3000000.0, "1월 급여"},
		{"", "2023/01/02", "식비지출", "식비", "₩12,000", "  "},
		{nil, "2023.01.03", "", "교통", 1450.0, nil},
		{},
		{"x4", "2023-01-04", "지출", "", 5000.0, "no category"},
		{"x5", "2023-01-05", "지출", "쇼핑", 0.0, "zero amount"},
	}
	res := NormalizeGrid(rows, seqIDs())

	require.Len(t, res.Accepted, 3)
	require.Equal(t, core.Transaction{
		ID: "x1", Date: "2023-01-01", Type: core.Income, Category: "급여", Amount: 3000000, Memo: "1월 급여",
	}, res.Accepted[0])
	require.Equal(t, core.Transaction{
		ID: "gen-1", Date: "2023-01-02", Type: core.Expense, Category: "식비", Amount: 12000,
	}, res.Accepted[1])
	require.Equal(t, "gen-2", res.Accepted[2].ID)
	require.Equal(t, core.Expense, res.Accepted[2].Type)
	require.Empty(t, res.Accepted[2].Memo)

	require.Equal(t, []int{5, 6}, res.RejectedIndexes())
	require.True(t, errors.Is(res.Rejected[0].Err, core.ErrEmptyCategory))
	require.True(t, errors.Is(res.Rejected[1].Err, core.ErrInvalidAmount))
}

func TestNormalizeGridPartialImport(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{"date", "type", "category", "amount"},
		{"2024-05-01", "expense", "식비", 1000.0},
		{"2024-05-02", "expense", "식비", nil},
		{"2024-05-03", "income", "용돈", 50000.0},
		{"2024-05-04", "expense", "교통", ""},
		{"2024-05-05", "expense", "문화", 15000.0},
	}
	res := NormalizeGrid(rows, nil)
	require.Len(t, res.Accepted, 3)
	require.Equal(t, []int{2, 4}, res.RejectedIndexes())
	for _, tx := range res.Accepted {
		require.NotEmpty(t, tx.ID)
	}
}

func TestNormalizeGridMissingRequiredColumns(t *testing.T) {
	t.Parallel()

	rows := [][]any{
		{"id", "memo"},
		{"a", "lunch"},
		{"b", "dinner"},
	}
	res := NormalizeGrid(rows, seqIDs())
	require.Empty(t, res.Accepted)
	require.Len(t, res.Rejected, 2)
}

func TestNormalizeGridEmpty(t *testing.T) {
	t.Parallel()

	res := NormalizeGrid(nil, nil)
	require.Empty(t, res.Accepted)
	require.Empty(t, res.Rejected)

	res = NormalizeGrid([][]any{{"date", "amount"}}, nil)
	require.Empty(t, res.Accepted)
	require.Empty(t, res.Rejected)
}
