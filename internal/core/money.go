// Package core holds the loan domain model and the repayment engine.
//
// This file contains the currency helpers shared by every calculator: parsing of
// user supplied amounts and rounding to the currency minor unit. All currency
// arithmetic uses decimal values so that schedules spanning hundreds of periods
// do not accumulate binary floating point drift.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of fractional digits of the minor currency unit.
const CurrencyPlaces = 2

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)

	// MinorUnit is the smallest representable currency amount (0.01).
	MinorUnit = decimal.New(1, -CurrencyPlaces)
)

// RoundCurrency rounds d to the minor currency unit, half away from zero.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// MonthlyRate converts an annual percentage rate into a monthly fraction.
//
//	MonthlyRate(12) -> 0.01
func MonthlyRate(annualPercent decimal.Decimal) decimal.Decimal {
	return annualPercent.Div(hundred).Div(twelve)
}

// ParseAmount converts a decimal string into a positive currency amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to the minor unit. Signed, empty, zero or malformed input returns
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = RoundCurrency(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseRate parses an annual percentage rate. Zero is allowed, negatives are not.
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, ErrInvalidInput
	}
	return d, nil
}

// ratioOf returns part/whole*100, or zero when whole is not positive.
func ratioOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// percentOf is ratioOf rounded for display.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	return ratioOf(part, whole).Round(CurrencyPlaces)
}
