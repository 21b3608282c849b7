// Package importer turns external data (JSON exports, spreadsheet grids)
// into validated ledger records.
//
// Normalizers are pure: they never touch the store. Invalid input rows are
// dropped individually and reported in Result.Rejected; only structurally
// unusable input (a JSON document that is not an array) fails the call.
package importer

import (
	"fmt"

	"github.com/google/uuid"

	"gagyebu/internal/core"
)

// IDFunc generates identifiers for rows that do not carry one.
type IDFunc func() string

// Rejection records why one input element was dropped.
type Rejection struct {
	Index int   // array index (JSON) or grid row index (spreadsheet, header = 0)
	Err   error
}

// Result is the outcome of a best-effort bulk normalization.
type Result struct {
	Accepted []core.Transaction
	Rejected []Rejection
}

// RejectedIndexes lists the indexes of dropped elements in input order.
func (r Result) RejectedIndexes() []int {
	out := make([]int, len(r.Rejected))
	for i, rej := range r.Rejected {
		out[i] = rej.Index
	}
	return out
}

// FormatError reports import input whose overall shape is wrong.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid import format: %s: %v", e.Reason, e.Err)
	}
	return "invalid import format: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// NewID is the default IDFunc.
func NewID() string {
	return uuid.NewString()
}

func orDefault(f IDFunc) IDFunc {
	if f == nil {
		return NewID
	}
	return f
}
