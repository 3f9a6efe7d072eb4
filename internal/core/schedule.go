package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxSchedulePeriods bounds every amortization walk. It is raised to twice the
// nominal tenure for loans longer than half of it.
const MaxSchedulePeriods = 3000

type (
	// Terms is the loan snapshot a schedule is built from.
	Terms struct {
		Balance      decimal.Decimal
		AnnualRate   decimal.Decimal
		Installment  decimal.Decimal
		// TenureMonths is the number of periods the installment was sized for.
		TenureMonths int
		// FirstDueDate dates the entries when set.
		FirstDueDate time.Time
	}

	// AmortizationEntry is one period of a schedule.
	AmortizationEntry struct {
		Month            int             `json:"month"`
		DueDate          *time.Time      `json:"due_date,omitempty"`
		Payment          decimal.Decimal `json:"payment"`
		Interest         decimal.Decimal `json:"interest"`
		Principal        decimal.Decimal `json:"principal"`
		RemainingBalance decimal.Decimal `json:"remaining_balance"`
	}

	// Schedule is an ordered, finite ledger ending at a zero balance.
	Schedule []AmortizationEntry

	// ScheduleResult is a schedule together with its totals.
	ScheduleResult struct {
		Entries           Schedule        `json:"entries"`
		PayoffMonths      int             `json:"payoff_months"`
		TotalInterestPaid decimal.Decimal `json:"total_interest_paid"`
		TotalPayment      decimal.Decimal `json:"total_payment"`
		Installment       decimal.Decimal `json:"installment"`
		ExtraPayment      decimal.Decimal `json:"extra_payment"`
		PayoffDate        *time.Time      `json:"payoff_date,omitempty"`
	}
)

// Validate checks the snapshot before a walk.
func (t Terms) Validate() error {
	if t.Balance.IsNegative() {
		return fmt.Errorf("%w: outstanding balance must not be negative", ErrInvalidInput)
	}
	if t.AnnualRate.IsNegative() {
		return fmt.Errorf("%w: interest rate must not be negative", ErrInvalidInput)
	}
	if !t.Installment.IsPositive() {
		return fmt.Errorf("%w: installment must be positive", ErrInvalidInput)
	}
	if t.TenureMonths < 0 || t.TenureMonths > MaxSchedulePeriods {
		return fmt.Errorf("%w: tenure must be between 0 and %d months, got %d",
			ErrInvalidInput, MaxSchedulePeriods, t.TenureMonths)
	}
	return nil
}

func (t Terms) periodCap() int {
	if 2*t.TenureMonths > MaxSchedulePeriods {
		return 2 * t.TenureMonths
	}
	return MaxSchedulePeriods
}

// BuildSchedule walks the loan period by period, paying the installment plus
// extra each month until the balance reaches zero.
//
// Interest is rounded to the minor unit every period; the final period pays
// exactly the remaining balance so the ledger closes at zero. At the nominal
// last period a residual no larger than the accumulated rounding of the
// installment and interest is folded in; a larger one is walked to term. A
// payment that
// does not exceed the first period's interest fails with
// ErrNonAmortizingPayment since the debt would never shrink.
func BuildSchedule(t Terms, extra decimal.Decimal) (ScheduleResult, error) {
	if err := t.Validate(); err != nil {
		return ScheduleResult{}, err
	}
	if extra.IsNegative() {
		return ScheduleResult{}, fmt.Errorf("%w: extra payment must not be negative", ErrInvalidInput)
	}

	installment := RoundCurrency(t.Installment)
	extra = RoundCurrency(extra)
	payment := installment.Add(extra)
	rate := MonthlyRate(t.AnnualRate)
	balance := RoundCurrency(t.Balance)

	res := ScheduleResult{
		TotalInterestPaid: decimal.Zero,
		TotalPayment:      decimal.Zero,
		Installment:       installment,
		ExtraPayment:      extra,
	}
	if balance.IsZero() {
		res.Entries = Schedule{}
		return res, nil
	}

	limit := t.periodCap()
	entries := make(Schedule, 0, min(t.TenureMonths+1, MaxSchedulePeriods))
	totalInterest := decimal.Zero
	totalPaid := decimal.Zero

	for month := 1; ; month++ {
		if month > limit {
			return ScheduleResult{}, fmt.Errorf("%w: balance %s remains after %d periods",
				ErrScheduleCapExceeded, balance.StringFixed(CurrencyPlaces), limit)
		}

		interest := RoundCurrency(balance.Mul(rate))
		principal := payment.Sub(interest)
		if month == 1 && !principal.IsPositive() {
			return ScheduleResult{}, fmt.Errorf("%w: payment %s, interest %s",
				ErrNonAmortizingPayment, payment.StringFixed(CurrencyPlaces), interest.StringFixed(CurrencyPlaces))
		}

		final := principal.GreaterThanOrEqual(balance)
		// Each period can drift by half a minor unit on the installment and
		// half on the interest, compounded to term.
		if !final && month == t.TenureMonths &&
			balance.Sub(principal).LessThanOrEqual(MinorUnit.Mul(accumulationFactor(rate, month))) {
			final = true
		}
		if final {
			principal = balance
		}
		balance = balance.Sub(principal)

		entry := AmortizationEntry{
			Month:            month,
			Payment:          principal.Add(interest),
			Interest:         interest,
			Principal:        principal,
			RemainingBalance: balance,
		}
		if !t.FirstDueDate.IsZero() {
			due := AddMonths(t.FirstDueDate, month-1)
			entry.DueDate = &due
		}
		entries = append(entries, entry)
		totalInterest = totalInterest.Add(interest)
		totalPaid = totalPaid.Add(entry.Payment)

		if final {
			break
		}
	}

	res.Entries = entries
	res.PayoffMonths = len(entries)
	res.TotalInterestPaid = totalInterest
	res.TotalPayment = totalPaid
	res.PayoffDate = entries[len(entries)-1].DueDate
	return res, nil
}

// TotalPrincipal sums the principal components of s.
func (s Schedule) TotalPrincipal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range s {
		total = total.Add(e.Principal)
	}
	return total
}
