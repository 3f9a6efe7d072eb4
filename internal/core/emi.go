package core

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// CalculateEMI returns the equated monthly installment that repays principal
// at the given annual percentage rate over tenureMonths periods, rounded to the
// minor currency unit.
//
// The growth factor (1+i)^n is first evaluated in float64 only to detect
// overflow; a non-finite factor is reported as ErrNumericOverflow instead of
// leaking NaN or Inf into the result. The installment itself is computed from
// the exact decimal power.
func CalculateEMI(principal, annualRate decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidInput, principal)
	}
	if tenureMonths <= 0 || tenureMonths > MaxSchedulePeriods {
		return decimal.Zero, fmt.Errorf("%w: tenure must be between 1 and %d months, got %d",
			ErrInvalidInput, MaxSchedulePeriods, tenureMonths)
	}
	if annualRate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: interest rate must not be negative, got %s", ErrInvalidInput, annualRate)
	}

	i := MonthlyRate(annualRate)
	if i.IsZero() {
		return RoundCurrency(principal.Div(decimal.NewFromInt(int64(tenureMonths)))), nil
	}

	if f := math.Pow(1+i.InexactFloat64(), float64(tenureMonths)); math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero, fmt.Errorf("%w: (1+%s)^%d is not finite", ErrNumericOverflow, i, tenureMonths)
	}

	growth := growthFactor(i, tenureMonths)
	emi := principal.Mul(i).Mul(growth).DivRound(growth.Sub(one), ratioPlaces)
	return RoundCurrency(emi), nil
}

// ratioPlaces is the working precision of annuity divisions.
const ratioPlaces = 12

var one = decimal.NewFromInt(1)

// growthFactor returns (1+i)^n exactly. n is bounded by MaxSchedulePeriods.
func growthFactor(i decimal.Decimal, n int) decimal.Decimal {
	g, _ := one.Add(i).PowInt32(int32(n))
	return g
}

// accumulationFactor returns ((1+i)^n - 1) / i, the future value of n unit
// payments; n when i is zero.
func accumulationFactor(i decimal.Decimal, n int) decimal.Decimal {
	if i.IsZero() {
		return decimal.NewFromInt(int64(n))
	}
	return growthFactor(i, n).Sub(one).DivRound(i, ratioPlaces)
}
