package core

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusActive    Status = "ACTIVE"
	StatusPaidOff   Status = "PAID_OFF"
	StatusDefaulted Status = "DEFAULTED"
)

// Stored loan field names reported in Loan.MalformedFields.
const (
	FieldPrincipal          = "principal"
	FieldOutstandingBalance = "outstanding_balance"
	FieldInterestRate       = "interest_rate"
	FieldEMIAmount          = "emi_amount"
	FieldIssueDate          = "issue_date"
	FieldNextPaymentDate    = "next_payment_date"
	FieldStatus             = "status"
)

type (
	// Status is the lifecycle state of a loan. ACTIVE is initial, the other two
	// are terminal.
	Status string

	// Loan is a snapshot of a loan record as held by the persistence layer.
	//
	// InterestRate and EMIAmount are nullable because legacy records may lack
	// them; aggregation treats a missing value as a zero contribution.
	Loan struct {
		ID                 uuid.UUID           `json:"id"`
		UserID             string              `json:"user_id"`
		Name               string              `json:"name"`
		Principal          decimal.Decimal     `json:"principal"`
		OutstandingBalance decimal.Decimal     `json:"outstanding_balance"`
		InterestRate       decimal.NullDecimal `json:"interest_rate"`
		TenureMonths       int                 `json:"tenure_months"`
		EMIAmount          decimal.NullDecimal `json:"emi_amount"`
		IssueDate          time.Time           `json:"issue_date"`
		NextPaymentDate    *time.Time          `json:"next_payment_date,omitempty"`
		Status             Status              `json:"status"`
		Version            int64               `json:"version"`
		CreatedAt          time.Time           `json:"created_at"`
		UpdatedAt          time.Time           `json:"updated_at"`
		// MalformedFields names stored fields that could not be decoded and
		// hold zero values.
		MalformedFields []string `json:"malformed_fields,omitempty"`
	}

	// NewLoanParams are the caller supplied terms of a new loan.
	NewLoanParams struct {
		UserID       string
		Name         string
		Principal    decimal.Decimal
		InterestRate decimal.Decimal
		TenureMonths int
		IssueDate    time.Time
	}

	// PaymentReceipt describes the effect of one applied payment.
	PaymentReceipt struct {
		ID             uuid.UUID       `json:"id"`
		LoanID         uuid.UUID       `json:"loan_id"`
		Amount         decimal.Decimal `json:"amount"`
		Applied        decimal.Decimal `json:"applied"`
		Overpayment    decimal.Decimal `json:"overpayment"`
		BalanceBefore  decimal.Decimal `json:"balance_before"`
		BalanceAfter   decimal.Decimal `json:"balance_after"`
		PaidAt         time.Time       `json:"paid_at"`
		ResultedStatus Status          `json:"resulting_status"`
	}
)

// IsValid reports whether s is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaidOff, StatusDefaulted:
		return true
	default:
		return false
	}
}

// Malformed reports whether any of fields failed to decode.
func (l Loan) Malformed(fields ...string) bool {
	for _, f := range fields {
		if slices.Contains(l.MalformedFields, f) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusPaidOff || s == StatusDefaulted
}

// ParseStatus normalizes a stored status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: unknown loan status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// NewLoan validates p, computes the installment and returns an ACTIVE loan
// whose first payment falls one period after the issue date.
func NewLoan(p NewLoanParams) (Loan, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return Loan{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Name) == "" {
		return Loan{}, fmt.Errorf("%w: loan name is required", ErrInvalidInput)
	}
	if len(p.Name) > 200 {
		return Loan{}, fmt.Errorf("%w: loan name too long (max 200 characters)", ErrInvalidInput)
	}
	if p.IssueDate.IsZero() {
		return Loan{}, fmt.Errorf("%w: issue date is required", ErrInvalidInput)
	}
	principal := RoundCurrency(p.Principal)
	emi, err := CalculateEMI(principal, p.InterestRate, p.TenureMonths)
	if err != nil {
		return Loan{}, err
	}

	issue := truncateDay(p.IssueDate)
	next := AddMonths(issue, 1)
	now := time.Now().UTC()
	return Loan{
		ID:                 uuid.New(),
		UserID:             strings.TrimSpace(p.UserID),
		Name:               strings.TrimSpace(p.Name),
		Principal:          principal,
		OutstandingBalance: principal,
		InterestRate:       decimal.NewNullDecimal(p.InterestRate),
		TenureMonths:       p.TenureMonths,
		EMIAmount:          decimal.NewNullDecimal(emi),
		IssueDate:          issue,
		NextPaymentDate:    &next,
		Status:             StatusActive,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// ApplyPayment is the only transition that reduces a balance. A payment that
// clears the balance moves the loan to PAID_OFF; any excess is reported as
// overpayment rather than driving the balance negative.
func ApplyPayment(l Loan, amount decimal.Decimal, paidAt time.Time) (Loan, PaymentReceipt, error) {
	if l.Status != StatusActive {
		return l, PaymentReceipt{}, fmt.Errorf("%w: status is %s", ErrLoanNotActive, l.Status)
	}
	if l.Malformed(FieldPrincipal, FieldOutstandingBalance) {
		return l, PaymentReceipt{}, fmt.Errorf("%w: loan %s has an unreadable balance", ErrInvalidInput, l.ID)
	}
	amount = RoundCurrency(amount)
	if !amount.IsPositive() {
		return l, PaymentReceipt{}, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	before := l.OutstandingBalance
	applied := decimal.Min(amount, before)
	after := before.Sub(applied)

	l.OutstandingBalance = after
	if after.IsZero() {
		l.Status = StatusPaidOff
		l.NextPaymentDate = nil
	} else {
		next := l.followingDueDate(paidAt)
		l.NextPaymentDate = &next
	}
	l.UpdatedAt = time.Now().UTC()

	return l, PaymentReceipt{
		ID:             uuid.New(),
		LoanID:         l.ID,
		Amount:         amount,
		Applied:        applied,
		Overpayment:    amount.Sub(applied),
		BalanceBefore:  before,
		BalanceAfter:   after,
		PaidAt:         paidAt,
		ResultedStatus: l.Status,
	}, nil
}

// MarkDefaulted records an external default determination.
func MarkDefaulted(l Loan) (Loan, error) {
	if l.Status != StatusActive {
		return l, fmt.Errorf("%w: status is %s", ErrLoanNotActive, l.Status)
	}
	l.Status = StatusDefaulted
	l.NextPaymentDate = nil
	l.UpdatedAt = time.Now().UTC()
	return l, nil
}

// RecalculateInstallment recomputes the EMI from the outstanding balance over
// the periods still remaining at asOf. Terminal loans never recompute.
func RecalculateInstallment(l Loan, asOf time.Time) (Loan, error) {
	if l.Status.IsTerminal() {
		return l, fmt.Errorf("%w: status is %s", ErrLoanNotActive, l.Status)
	}
	if !l.InterestRate.Valid {
		return l, fmt.Errorf("%w: loan has no interest rate", ErrInvalidInput)
	}
	if l.Malformed(FieldPrincipal, FieldOutstandingBalance) {
		return l, fmt.Errorf("%w: loan %s has an unreadable balance", ErrInvalidInput, l.ID)
	}
	remaining := l.RemainingMonths(asOf)
	emi, err := CalculateEMI(l.OutstandingBalance, l.InterestRate.Decimal, remaining)
	if err != nil {
		return l, err
	}
	l.EMIAmount = decimal.NewNullDecimal(emi)
	l.UpdatedAt = time.Now().UTC()
	return l, nil
}

// followingDueDate is the due date after the current one, anchored on the
// issue day so that month-end clamping does not drift (31 Jan, 29 Feb, 31 Mar).
func (l Loan) followingDueDate(paidAt time.Time) time.Time {
	if l.NextPaymentDate == nil {
		return AddMonths(truncateDay(paidAt), 1)
	}
	if l.IssueDate.IsZero() {
		return AddMonths(*l.NextPaymentDate, 1)
	}
	return AddMonths(l.IssueDate, MonthsBetween(l.IssueDate, *l.NextPaymentDate)+1)
}

// RemainingMonths is the nominal number of periods left at asOf, never less
// than one.
func (l Loan) RemainingMonths(asOf time.Time) int {
	elapsed := MonthsBetween(l.IssueDate, asOf)
	remaining := l.TenureMonths - elapsed
	if remaining < 1 {
		return 1
	}
	return remaining
}

// scheduledPeriodsLeft counts the installments not yet due, including the
// next one.
func (l Loan) scheduledPeriodsLeft() int {
	if l.NextPaymentDate == nil || l.IssueDate.IsZero() {
		return l.TenureMonths
	}
	left := l.TenureMonths - (MonthsBetween(l.IssueDate, *l.NextPaymentDate) - 1)
	if left < 1 {
		return 1
	}
	return left
}

// Terms returns the schedule snapshot of l.
func (l Loan) Terms() (Terms, error) {
	if !l.InterestRate.Valid {
		return Terms{}, fmt.Errorf("%w: loan %s has no interest rate", ErrInvalidInput, l.ID)
	}
	if !l.EMIAmount.Valid {
		return Terms{}, fmt.Errorf("%w: loan %s has no installment", ErrInvalidInput, l.ID)
	}
	t := Terms{
		Balance:      l.OutstandingBalance,
		AnnualRate:   l.InterestRate.Decimal,
		Installment:  l.EMIAmount.Decimal,
		TenureMonths: l.scheduledPeriodsLeft(),
	}
	if l.NextPaymentDate != nil {
		t.FirstDueDate = *l.NextPaymentDate
	}
	return t, nil
}
