package core

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Totals is the income/expense aggregate over a set of records.
type Totals struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// DayGroup is every record sharing one date, with that day's totals.
type DayGroup struct {
	Date   string        `json:"date"`
	Items  []Transaction `json:"items"`
	Totals Totals        `json:"totals"`
}

// FilterType selects which record types a Filter keeps.
type FilterType string

const (
	FilterAll     FilterType = "all"
	FilterIncome  FilterType = "income"
	FilterExpense FilterType = "expense"
)

// Filter narrows a record list by type and a free-text query.
type Filter struct {
	Type  FilterType
	Query string
}

// DefaultCategories is the curated taxonomy offered by entry forms.
// The store itself accepts any non-empty category.
var DefaultCategories = map[TxType][]string{
	Income:  {"급여", "보너스", "용돈", "기타"},
	Expense: {"식비", "교통", "주거", "문화", "쇼핑", "기타"},
}

// Summarize sums amounts per type. Balance is always Income - Expense.
func Summarize(records []Transaction) Totals {
	var t Totals
	for _, r := range records {
		switch r.Type {
		case Income:
			t.Income += r.Amount
		case Expense:
			t.Expense += r.Amount
		}
	}
	t.Balance = t.Income - t.Expense
	return t
}

// Apply returns the records matching the filter, keeping their order.
// The query is matched case-insensitively against category and memo.
func (f Filter) Apply(records []Transaction) []Transaction {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		if f.Type == FilterIncome && r.Type != Income {
			continue
		}
		if f.Type == FilterExpense && r.Type != Expense {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(r.Category), q) &&
			!strings.Contains(strings.ToLower(r.Memo), q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ParseFilterType maps a query value to a FilterType, defaulting to all.
func ParseFilterType(s string) FilterType {
	switch FilterType(strings.ToLower(strings.TrimSpace(s))) {
	case FilterIncome:
		return FilterIncome
	case FilterExpense:
		return FilterExpense
	default:
		return FilterAll
	}
}

// GroupByDay buckets records by date, most recent day first. Items keep
// their relative order within a day.
func GroupByDay(records []Transaction) []DayGroup {
	index := map[string]int{}
	var groups []DayGroup
	for _, r := range records {
		i, ok := index[r.Date]
		if !ok {
			i = len(groups)
			index[r.Date] = i
			groups = append(groups, DayGroup{Date: r.Date})
		}
		groups[i].Items = append(groups[i].Items, r)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Date > groups[b].Date })
	for i := range groups {
		groups[i].Totals = Summarize(groups[i].Items)
	}
	return groups
}

// MapURL links to the merchant on a map: coordinates when both are known,
// otherwise a search for the address or name. Empty when nothing is known.
func (m *Merchant) MapURL() string {
	if m == nil {
		return ""
	}
	if m.Lat != nil && m.Lon != nil {
		return fmt.Sprintf("https://maps.google.com/?q=%v,%v", *m.Lat, *m.Lon)
	}
	q := m.Address
	if q == "" {
		q = m.Name
	}
	if q == "" {
		return ""
	}
	return "https://maps.google.com/?q=" + url.QueryEscape(q)
}
