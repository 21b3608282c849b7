// Package core provides amount parsing and formatting utilities.
//
// Amounts are stored as float64 magnitudes in a single currency unit (won).
// This file converts user-typed amounts into that form and renders them
// back for display.
package core

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var krwPrinter = message.NewPrinter(language.Korean)

// ParseAmount converts an entry-form amount into a positive magnitude.
//
// Thousands separators and surrounding whitespace are accepted. Anything
// that is not a finite number greater than zero is rejected.
//
// Examples:
//
//	ParseAmount("12000")   -> 12000, nil
//	ParseAmount("12,000")  -> 12000, nil
//	ParseAmount("0")       -> 0, ErrInvalidAmount
//	ParseAmount("abc")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatKRW renders an amount the way ko-KR currency formatting does:
// a won sign, grouped thousands and no fraction digits.
func FormatKRW(amount float64) string {
	n := int64(math.Round(amount))
	if n < 0 {
		return "-₩" + krwPrinter.Sprintf("%d", -n)
	}
	return "₩" + krwPrinter.Sprintf("%d", n)
}
