package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"loanwise/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = time.DateOnly
	// Fixed width so that lexical order in SQL matches time order.
	timestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func nullDecimalString(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func nullDateString(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(dateLayout), Valid: true}
}

// loanDecoder turns stored rows into domain loans. Malformed optional fields
// decode as missing and malformed required amounts as zero, each with a
// warning and recorded in malformed, so that one bad record degrades a
// summary instead of failing it.
type loanDecoder struct {
	ctx       context.Context
	id        string
	malformed []string
}

func (d *loanDecoder) warn(field, value string, err error) {
	d.malformed = append(d.malformed, field)
	slog.WarnContext(d.ctx, "Malformed stored loan field",
		"loan_id", d.id,
		"field", field,
		"value", value,
		"error", err)
}

func (d *loanDecoder) decimal(field, value string) decimal.Decimal {
	v, err := decimal.NewFromString(value)
	if err != nil {
		d.warn(field, value, err)
		return decimal.Zero
	}
	return v
}

func (d *loanDecoder) nullDecimal(field string, value sql.NullString) decimal.NullDecimal {
	if !value.Valid || value.String == "" {
		return decimal.NullDecimal{}
	}
	v, err := decimal.NewFromString(value.String)
	if err != nil {
		d.warn(field, value.String, err)
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

func (d *loanDecoder) date(field, value string) time.Time {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		d.warn(field, value, err)
		return time.Time{}
	}
	return t
}

func (d *loanDecoder) nullDate(field string, value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, value.String)
	if err != nil {
		d.warn(field, value.String, err)
		return nil
	}
	return &t
}

func encodeLoan(l core.Loan) LoanRow {
	return LoanRow{
		ID:                 l.ID.String(),
		UserID:             l.UserID,
		Name:               l.Name,
		Principal:          l.Principal.String(),
		OutstandingBalance: l.OutstandingBalance.String(),
		InterestRate:       nullDecimalString(l.InterestRate),
		TenureMonths:       int64(l.TenureMonths),
		EMIAmount:          nullDecimalString(l.EMIAmount),
		IssueDate:          l.IssueDate.UTC().Format(dateLayout),
		NextPaymentDate:    nullDateString(l.NextPaymentDate),
		Status:             string(l.Status),
		Version:            l.Version,
		CreatedAt:          formatTimestamp(l.CreatedAt),
		UpdatedAt:          formatTimestamp(l.UpdatedAt),
	}
}

func decodeLoan(ctx context.Context, r LoanRow) (core.Loan, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return core.Loan{}, err
	}
	d := &loanDecoder{ctx: ctx, id: r.ID}

	// Unknown statuses are kept verbatim; the summary reports them as degraded.
	status, err := core.ParseStatus(r.Status)
	if err != nil {
		d.warn(core.FieldStatus, r.Status, err)
		status = core.Status(r.Status)
	}

	l := core.Loan{
		ID:                 id,
		UserID:             r.UserID,
		Name:               r.Name,
		Principal:          d.decimal(core.FieldPrincipal, r.Principal),
		OutstandingBalance: d.decimal(core.FieldOutstandingBalance, r.OutstandingBalance),
		InterestRate:       d.nullDecimal(core.FieldInterestRate, r.InterestRate),
		TenureMonths:       int(r.TenureMonths),
		EMIAmount:          d.nullDecimal(core.FieldEMIAmount, r.EMIAmount),
		IssueDate:          d.date(core.FieldIssueDate, r.IssueDate),
		NextPaymentDate:    d.nullDate(core.FieldNextPaymentDate, r.NextPaymentDate),
		Status:             status,
		Version:            r.Version,
		CreatedAt:          parseTimestamp(r.CreatedAt),
		UpdatedAt:          parseTimestamp(r.UpdatedAt),
	}
	l.MalformedFields = d.malformed
	return l, nil
}

func encodePayment(p core.PaymentReceipt, now time.Time) PaymentRow {
	return PaymentRow{
		ID:              p.ID.String(),
		LoanID:          p.LoanID.String(),
		Amount:          p.Amount.String(),
		Applied:         p.Applied.String(),
		Overpayment:     p.Overpayment.String(),
		BalanceBefore:   p.BalanceBefore.String(),
		BalanceAfter:    p.BalanceAfter.String(),
		ResultingStatus: string(p.ResultedStatus),
		PaidAt:          formatTimestamp(p.PaidAt),
		CreatedAt:       formatTimestamp(now),
	}
}

func decodePayment(ctx context.Context, r PaymentRow) (core.PaymentReceipt, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return core.PaymentReceipt{}, err
	}
	loanID, err := uuid.Parse(r.LoanID)
	if err != nil {
		return core.PaymentReceipt{}, err
	}
	d := &loanDecoder{ctx: ctx, id: r.LoanID}
	return core.PaymentReceipt{
		ID:             id,
		LoanID:         loanID,
		Amount:         d.decimal("payment.amount", r.Amount),
		Applied:        d.decimal("payment.applied", r.Applied),
		Overpayment:    d.decimal("payment.overpayment", r.Overpayment),
		BalanceBefore:  d.decimal("payment.balance_before", r.BalanceBefore),
		BalanceAfter:   d.decimal("payment.balance_after", r.BalanceAfter),
		PaidAt:         parseTimestamp(r.PaidAt),
		ResultedStatus: core.Status(r.ResultingStatus),
	}, nil
}
