package core

import (
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func activeLoan(name, balance, rate, emi string, next time.Time) Loan {
	return Loan{
		ID:                 uuid.New(),
		UserID:             "u1",
		Name:               name,
		Principal:          d(balance),
		OutstandingBalance: d(balance),
		InterestRate:       decimal.NewNullDecimal(d(rate)),
		EMIAmount:          decimal.NewNullDecimal(d(emi)),
		TenureMonths:       60,
		IssueDate:          AddMonths(next, -1),
		NextPaymentDate:    &next,
		Status:             StatusActive,
	}
}

func TestSummarizePortfolio(t *testing.T) {
	car := activeLoan("car", "450000", "8.5", "9232.44", time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	home := activeLoan("home", "4200000", "9.2", "38330.41", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	s := SummarizePortfolio([]Loan{car, home})

	tests := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"total outstanding", s.TotalOutstanding, "4650000"},
		{"total principal", s.TotalPrincipal, "4650000"},
		{"total paid", s.TotalPaid, "0"},
		{"total monthly payments", s.TotalMonthlyPayments, "47562.85"},
		{"average rate", s.AverageInterestRate, "8.85"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Equal(d(tt.want)) {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
	if s.ActiveLoanCount != 2 || s.LoanCount != 2 {
		t.Errorf("counts active=%d total=%d", s.ActiveLoanCount, s.LoanCount)
	}
	if s.NextPayment == nil || s.NextPayment.LoanID != home.ID {
		t.Fatalf("next payment = %+v, want the home loan", s.NextPayment)
	}
	if !s.NextPayment.Amount.Equal(d("38330.41")) {
		t.Errorf("next payment amount = %s", s.NextPayment.Amount)
	}
	if len(s.Degraded) != 0 {
		t.Errorf("unexpected degraded loans %v", s.Degraded)
	}
}

func TestSummarizePortfolio_Empty(t *testing.T) {
	s := SummarizePortfolio(nil)
	if !s.TotalOutstanding.IsZero() || !s.AverageInterestRate.IsZero() || !s.PaidPercent.IsZero() {
		t.Errorf("empty portfolio should be all zeros: %+v", s)
	}
	if s.NextPayment != nil {
		t.Errorf("empty portfolio has no next payment")
	}
}

func TestSummarizePortfolio_TerminalLoans(t *testing.T) {
	next := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	active := activeLoan("active", "1000", "10", "100", next)
	active.Principal = d("2000")

	paid := activeLoan("paid", "0", "5", "50", next)
	paid.Principal = d("3000")
	paid.Status = StatusPaidOff
	paid.NextPaymentDate = nil

	defaulted := activeLoan("defaulted", "500", "20", "80", next.AddDate(0, 0, -10))
	defaulted.Principal = d("1000")
	defaulted.Status = StatusDefaulted

	s := SummarizePortfolio([]Loan{active, paid, defaulted})

	if !s.TotalPrincipal.Equal(d("6000")) {
		t.Errorf("TotalPrincipal = %s, want 6000", s.TotalPrincipal)
	}
	if !s.TotalOutstanding.Equal(d("1000")) {
		t.Errorf("TotalOutstanding = %s, want 1000", s.TotalOutstanding)
	}
	if !s.TotalPaid.Equal(d("5000")) || !s.PaidPercent.Equal(d("83.33")) {
		t.Errorf("paid %s (%s%%), want 5000 (83.33%%)", s.TotalPaid, s.PaidPercent)
	}
	if !s.AverageInterestRate.Equal(d("10")) {
		t.Errorf("AverageInterestRate = %s, want 10", s.AverageInterestRate)
	}
	if s.ActiveLoanCount != 1 || s.LoanCount != 3 {
		t.Errorf("counts active=%d total=%d", s.ActiveLoanCount, s.LoanCount)
	}
	if s.NextPayment == nil || s.NextPayment.LoanID != active.ID {
		t.Errorf("next payment must come from an active loan, got %+v", s.NextPayment)
	}
}

func TestSummarizePortfolio_MissingFields(t *testing.T) {
	next := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	good := activeLoan("good", "1000", "12", "100", next)
	noRate := activeLoan("no-rate", "2000", "0", "200", next.AddDate(0, 0, 1))
	noRate.InterestRate = decimal.NullDecimal{}
	noEMI := activeLoan("no-emi", "3000", "6", "0", next.AddDate(0, 0, -1))
	noEMI.EMIAmount = decimal.NullDecimal{}
	broken := activeLoan("broken", "4000", "7", "70", next)
	broken.Status = Status("FROZEN")

	s := SummarizePortfolio([]Loan{good, noRate, noEMI, broken})

	if !s.TotalOutstanding.Equal(d("6000")) {
		t.Errorf("TotalOutstanding = %s, want 6000", s.TotalOutstanding)
	}
	// The unknown-status loan contributes to neither side.
	if !s.TotalPrincipal.Equal(d("6000")) || !s.TotalPaid.IsZero() {
		t.Errorf("principal %s paid %s, want 6000 and 0", s.TotalPrincipal, s.TotalPaid)
	}
	if !s.TotalMonthlyPayments.Equal(d("300")) {
		t.Errorf("TotalMonthlyPayments = %s, want 300", s.TotalMonthlyPayments)
	}
	// (12 + 0 + 6) / 3
	if !s.AverageInterestRate.Equal(d("6")) {
		t.Errorf("AverageInterestRate = %s, want 6", s.AverageInterestRate)
	}
	for _, id := range []uuid.UUID{noRate.ID, noEMI.ID, broken.ID} {
		if !slices.Contains(s.Degraded, id) {
			t.Errorf("loan %s missing from degraded list %v", id, s.Degraded)
		}
	}
	if slices.Contains(s.Degraded, good.ID) {
		t.Errorf("healthy loan reported as degraded")
	}
	if s.NextPayment == nil || s.NextPayment.LoanID != noEMI.ID || !s.NextPayment.Amount.IsZero() {
		t.Errorf("next payment = %+v, want the no-emi loan with zero amount", s.NextPayment)
	}
}

func TestSummarizePortfolio_UnreadableBalances(t *testing.T) {
	next := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	good := activeLoan("good", "1000", "12", "100", next)
	garbage := activeLoan("garbage", "5000", "12", "100", next)
	garbage.Status = Status("GARBAGE")
	lostBalance := activeLoan("lost-balance", "3000", "6", "50", next)
	lostBalance.OutstandingBalance = decimal.Zero
	lostBalance.MalformedFields = []string{FieldOutstandingBalance}
	lostDate := activeLoan("lost-date", "2000", "6", "40", next)
	lostDate.NextPaymentDate = nil
	lostDate.MalformedFields = []string{FieldNextPaymentDate}
	paidLost := activeLoan("paid-lost-principal", "0", "6", "0", next)
	paidLost.Status = StatusPaidOff
	paidLost.MalformedFields = []string{FieldPrincipal}

	s := SummarizePortfolio([]Loan{good, garbage, lostBalance, lostDate, paidLost})

	tests := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"total principal", s.TotalPrincipal, "3000"},
		{"total outstanding", s.TotalOutstanding, "3000"},
		{"total paid", s.TotalPaid, "0"},
		{"monthly payments", s.TotalMonthlyPayments, "140"},
	}
	for _, tt := range tests {
		if !tt.got.Equal(d(tt.want)) {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
	if s.ActiveLoanCount != 2 {
		t.Errorf("ActiveLoanCount = %d, want 2", s.ActiveLoanCount)
	}
	for _, id := range []uuid.UUID{garbage.ID, lostBalance.ID, lostDate.ID, paidLost.ID} {
		if !slices.Contains(s.Degraded, id) {
			t.Errorf("loan %s missing from degraded list %v", id, s.Degraded)
		}
	}
	if slices.Contains(s.Degraded, good.ID) {
		t.Errorf("healthy loan reported as degraded")
	}
}

func TestSummarizePortfolio_NextPaymentTieBreak(t *testing.T) {
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a := activeLoan("a", "100", "1", "10", due)
	b := activeLoan("b", "100", "1", "10", due)
	a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	for _, order := range [][]Loan{{a, b}, {b, a}} {
		s := SummarizePortfolio(order)
		if s.NextPayment == nil || s.NextPayment.LoanID != a.ID {
			t.Fatalf("tie must resolve to the lowest id, got %+v", s.NextPayment)
		}
	}
}
