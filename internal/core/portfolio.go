package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	// NextPayment is the earliest upcoming installment across active loans.
	NextPayment struct {
		LoanID   uuid.UUID       `json:"loan_id"`
		LoanName string          `json:"loan_name"`
		Date     time.Time       `json:"date"`
		Amount   decimal.Decimal `json:"amount"`
	}

	// PortfolioSummary rolls a user's loans into dashboard totals.
	PortfolioSummary struct {
		TotalOutstanding     decimal.Decimal `json:"total_outstanding"`
		TotalPrincipal       decimal.Decimal `json:"total_principal"`
		TotalPaid            decimal.Decimal `json:"total_paid"`
		PaidPercent          decimal.Decimal `json:"paid_percent"`
		TotalMonthlyPayments decimal.Decimal `json:"total_monthly_payments"`
		ActiveLoanCount      int             `json:"active_loan_count"`
		LoanCount            int             `json:"loan_count"`
		AverageInterestRate  decimal.Decimal `json:"average_interest_rate"`
		NextPayment          *NextPayment    `json:"next_payment,omitempty"`
		// Degraded lists loans with a missing or malformed field whose
		// contribution was zeroed.
		Degraded []uuid.UUID `json:"degraded,omitempty"`
	}
)

// SummarizePortfolio aggregates loans of every status.
//
// Outstanding balances, installments and rates only count for ACTIVE loans;
// principal counts for all of them so historical payoff stays visible. The
// average rate is a simple mean over ACTIVE loans, not balance weighted.
// Malformed fields zero that loan's contribution and never abort the summary.
func SummarizePortfolio(loans []Loan) PortfolioSummary {
	s := PortfolioSummary{
		TotalOutstanding:     decimal.Zero,
		TotalPrincipal:       decimal.Zero,
		TotalMonthlyPayments: decimal.Zero,
		AverageInterestRate:  decimal.Zero,
		LoanCount:            len(loans),
	}
	rateSum := decimal.Zero

	for _, l := range loans {
		// Without a trustworthy status and balances the loan cannot be
		// placed in any total.
		if !l.Status.IsValid() || l.Principal.IsNegative() ||
			l.Malformed(FieldPrincipal, FieldOutstandingBalance) ||
			(l.Status == StatusActive && l.OutstandingBalance.IsNegative()) {
			s.Degraded = append(s.Degraded, l.ID)
			continue
		}
		degraded := len(l.MalformedFields) > 0
		s.TotalPrincipal = s.TotalPrincipal.Add(l.Principal)

		if l.Status != StatusActive {
			if degraded {
				s.Degraded = append(s.Degraded, l.ID)
			}
			continue
		}

		s.ActiveLoanCount++
		s.TotalOutstanding = s.TotalOutstanding.Add(l.OutstandingBalance)
		if !l.InterestRate.Valid || l.InterestRate.Decimal.IsNegative() {
			degraded = true
		} else {
			rateSum = rateSum.Add(l.InterestRate.Decimal)
		}
		if !l.EMIAmount.Valid || l.EMIAmount.Decimal.IsNegative() {
			degraded = true
		} else {
			s.TotalMonthlyPayments = s.TotalMonthlyPayments.Add(l.EMIAmount.Decimal)
		}

		if l.NextPaymentDate != nil && !l.NextPaymentDate.IsZero() && precedes(l, s.NextPayment) {
			amount := decimal.Zero
			if l.EMIAmount.Valid && !l.EMIAmount.Decimal.IsNegative() {
				amount = l.EMIAmount.Decimal
			}
			s.NextPayment = &NextPayment{
				LoanID:   l.ID,
				LoanName: l.Name,
				Date:     *l.NextPaymentDate,
				Amount:   amount,
			}
		}

		if degraded {
			s.Degraded = append(s.Degraded, l.ID)
		}
	}

	s.TotalPaid = s.TotalPrincipal.Sub(s.TotalOutstanding)
	s.PaidPercent = percentOf(s.TotalPaid, s.TotalPrincipal)
	if s.ActiveLoanCount > 0 {
		s.AverageInterestRate = rateSum.Div(decimal.NewFromInt(int64(s.ActiveLoanCount))).Round(CurrencyPlaces)
	}
	return s
}

// precedes orders candidates by due date, then by loan id, so the pick is
// stable regardless of input order.
func precedes(l Loan, current *NextPayment) bool {
	if current == nil {
		return true
	}
	if !l.NextPaymentDate.Equal(current.Date) {
		return l.NextPaymentDate.Before(current.Date)
	}
	return l.ID.String() < current.LoanID.String()
}
