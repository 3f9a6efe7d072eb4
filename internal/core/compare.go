package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type (
	// RepaymentPlan is one strategy applied to a loan.
	RepaymentPlan struct {
		ExtraPayment      decimal.Decimal `json:"extra_payment"`
		Schedule          Schedule        `json:"schedule"`
		PayoffMonths      int             `json:"payoff_months"`
		TotalInterestPaid decimal.Decimal `json:"total_interest_paid"`
		TotalPayment      decimal.Decimal `json:"total_payment"`
	}

	// RepaymentComparison contrasts paying as scheduled with paying extra.
	RepaymentComparison struct {
		Standard         RepaymentPlan   `json:"standard"`
		Accelerated      RepaymentPlan   `json:"accelerated"`
		InterestSaved    decimal.Decimal `json:"interest_saved"`
		TimeSavedMonths  int             `json:"time_saved_months"`
		NewMonthlyOutlay decimal.Decimal `json:"new_monthly_outlay"`
	}
)

func planFrom(r ScheduleResult) RepaymentPlan {
	return RepaymentPlan{
		ExtraPayment:      r.ExtraPayment,
		Schedule:          r.Entries,
		PayoffMonths:      r.PayoffMonths,
		TotalInterestPaid: r.TotalInterestPaid,
		TotalPayment:      r.TotalPayment,
	}
}

// CompareRepayment builds the standard and the accelerated schedule from the
// same snapshot. Paying more never lengthens the payoff or raises the interest:
// with a larger payment every period's balance is no higher, so every rounded
// interest charge is no higher either.
func CompareRepayment(t Terms, extra decimal.Decimal) (RepaymentComparison, error) {
	if extra.IsNegative() {
		return RepaymentComparison{}, fmt.Errorf("%w: extra payment must not be negative", ErrInvalidInput)
	}
	standard, err := BuildSchedule(t, decimal.Zero)
	if err != nil {
		return RepaymentComparison{}, fmt.Errorf("standard schedule: %w", err)
	}
	return compareAgainst(t, standard, extra)
}

// CompareExtraPayments evaluates several candidate extras against one shared
// standard schedule, in the order given.
func CompareExtraPayments(t Terms, extras []decimal.Decimal) ([]RepaymentComparison, error) {
	for _, x := range extras {
		if x.IsNegative() {
			return nil, fmt.Errorf("%w: extra payment must not be negative", ErrInvalidInput)
		}
	}
	standard, err := BuildSchedule(t, decimal.Zero)
	if err != nil {
		return nil, fmt.Errorf("standard schedule: %w", err)
	}
	out := make([]RepaymentComparison, 0, len(extras))
	for _, x := range extras {
		c, err := compareAgainst(t, standard, x)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func compareAgainst(t Terms, standard ScheduleResult, extra decimal.Decimal) (RepaymentComparison, error) {
	accelerated, err := BuildSchedule(t, extra)
	if err != nil {
		return RepaymentComparison{}, fmt.Errorf("accelerated schedule: %w", err)
	}
	return RepaymentComparison{
		Standard:         planFrom(standard),
		Accelerated:      planFrom(accelerated),
		InterestSaved:    standard.TotalInterestPaid.Sub(accelerated.TotalInterestPaid),
		TimeSavedMonths:  standard.PayoffMonths - accelerated.PayoffMonths,
		NewMonthlyOutlay: accelerated.Installment.Add(accelerated.ExtraPayment),
	}, nil
}
