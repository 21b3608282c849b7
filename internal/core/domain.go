package core

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

type (
	// TxType tells whether a record adds to or subtracts from the balance.
	TxType string

	// Merchant is optional display data attached to a record. Nothing validates it.
	Merchant struct {
		Name    string   `json:"name,omitempty"`
		Address string   `json:"address,omitempty"`
		Lat     *float64 `json:"lat,omitempty"`
		Lon     *float64 `json:"lon,omitempty"`
	}

	// Transaction is one ledger entry. Amount is always a positive magnitude;
	// the sign comes from Type.
	Transaction struct {
		ID       string    `json:"id"`
		Date     string    `json:"date"` // YYYY-MM-DD
		Type     TxType    `json:"type"`
		Category string    `json:"category"`
		Amount   float64   `json:"amount"`
		Memo     string    `json:"memo,omitempty"`
		Merchant *Merchant `json:"merchant,omitempty"`
	}
)

var (
	ErrMissingID     = errors.New("missing id")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidType   = errors.New("invalid type")
	ErrEmptyCategory = errors.New("empty category")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMonth  = errors.New("invalid month key")
)

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// Valid reports whether t is one of the two known types.
func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Validate is the single acceptance check shared by manual entry and imports.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if !ValidDate(t.Date) {
		return ErrInvalidDate
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) || t.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Signed returns the amount with the sign implied by the type.
func (t Transaction) Signed() float64 {
	if t.Type == Expense {
		return -t.Amount
	}
	return t.Amount
}

// ValidDate reports whether s has the YYYY-MM-DD shape. Only the shape is
// checked; ordering and month filtering work on the string itself.
func ValidDate(s string) bool {
	return datePattern.MatchString(s)
}

// ValidMonthKey reports whether ym has the YYYY-MM shape.
func ValidMonthKey(ym string) bool {
	return monthPattern.MatchString(ym)
}

// MonthKey returns the YYYY-MM prefix of a date string.
func MonthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// InMonth reports whether the record's date starts with ym.
func (t Transaction) InMonth(ym string) bool {
	return strings.HasPrefix(t.Date, ym)
}

// Today formats now as a UTC calendar date.
func Today(now time.Time) string {
	return now.UTC().Format(time.DateOnly)
}

// CurrentMonth formats now as a UTC month key.
func CurrentMonth(now time.Time) string {
	return now.UTC().Format("2006-01")
}
