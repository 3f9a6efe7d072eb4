package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the repository's statements against a connection or a
// transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// LoanRow is a loans record as stored, before decoding.
type LoanRow struct {
	ID                 string
	UserID             string
	Name               string
	Principal          string
	OutstandingBalance string
	InterestRate       sql.NullString
	TenureMonths       int64
	EMIAmount          sql.NullString
	IssueDate          string
	NextPaymentDate    sql.NullString
	Status             string
	Version            int64
	ExportedVersion    int64
	CreatedAt          string
	UpdatedAt          string
}

// PaymentRow is a loan_payments record as stored.
type PaymentRow struct {
	ID              string
	LoanID          string
	Amount          string
	Applied         string
	Overpayment     string
	BalanceBefore   string
	BalanceAfter    string
	ResultingStatus string
	PaidAt          string
	CreatedAt       string
}

// ProfileRow is a financial_profiles record as stored.
type ProfileRow struct {
	UserID        string
	MonthlyIncome string
	TotalAssets   string
	CreditScore   sql.NullInt64
	UpdatedAt     string
}

const loanColumns = `id, user_id, name, principal, outstanding_balance, interest_rate,
	tenure_months, emi_amount, issue_date, next_payment_date, status, version,
	exported_version, created_at, updated_at`

func scanLoan(row interface{ Scan(...any) error }) (LoanRow, error) {
	var r LoanRow
	err := row.Scan(
		&r.ID, &r.UserID, &r.Name, &r.Principal, &r.OutstandingBalance, &r.InterestRate,
		&r.TenureMonths, &r.EMIAmount, &r.IssueDate, &r.NextPaymentDate, &r.Status, &r.Version,
		&r.ExportedVersion, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const createLoan = `INSERT INTO loans (` + loanColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateLoan(ctx context.Context, r LoanRow) error {
	_, err := q.db.ExecContext(ctx, createLoan,
		r.ID, r.UserID, r.Name, r.Principal, r.OutstandingBalance, r.InterestRate,
		r.TenureMonths, r.EMIAmount, r.IssueDate, r.NextPaymentDate, r.Status, r.Version,
		r.ExportedVersion, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

const getLoan = `SELECT ` + loanColumns + ` FROM loans WHERE id = ?`

func (q *Queries) GetLoan(ctx context.Context, id string) (LoanRow, error) {
	return scanLoan(q.db.QueryRowContext(ctx, getLoan, id))
}

const listLoansByUser = `SELECT ` + loanColumns + ` FROM loans
WHERE user_id = ?
ORDER BY created_at, id`

func (q *Queries) ListLoansByUser(ctx context.Context, userID string) ([]LoanRow, error) {
	return q.queryLoans(ctx, listLoansByUser, userID)
}

const listUnexportedLoans = `SELECT ` + loanColumns + ` FROM loans
WHERE exported_version < version
ORDER BY updated_at, id
LIMIT ?`

func (q *Queries) ListUnexportedLoans(ctx context.Context, limit int) ([]LoanRow, error) {
	return q.queryLoans(ctx, listUnexportedLoans, limit)
}

func (q *Queries) queryLoans(ctx context.Context, query string, args ...any) ([]LoanRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LoanRow
	for rows.Next() {
		r, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

// updateLoanVersioned bumps version only when the caller's snapshot is current.
const updateLoanVersioned = `UPDATE loans SET
	name = ?, outstanding_balance = ?, interest_rate = ?, emi_amount = ?,
	next_payment_date = ?, status = ?, updated_at = ?, version = version + 1
WHERE id = ? AND version = ?`

func (q *Queries) UpdateLoanVersioned(ctx context.Context, r LoanRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateLoanVersioned,
		r.Name, r.OutstandingBalance, r.InterestRate, r.EMIAmount,
		r.NextPaymentDate, r.Status, r.UpdatedAt, r.ID, r.Version,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// loanStamp changes on every insert and versioned update of a user's loans.
const loanStamp = `SELECT COUNT(*), COALESCE(SUM(version), 0) FROM loans WHERE user_id = ?`

func (q *Queries) LoanStamp(ctx context.Context, userID string) (count, versions int64, err error) {
	err = q.db.QueryRowContext(ctx, loanStamp, userID).Scan(&count, &versions)
	return count, versions, err
}

const loanExists = `SELECT EXISTS(SELECT 1 FROM loans WHERE id = ?)`

func (q *Queries) LoanExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, loanExists, id).Scan(&exists)
	return exists, err
}

const markLoanExported = `UPDATE loans SET exported_version = ?
WHERE id = ? AND exported_version < ?`

func (q *Queries) MarkLoanExported(ctx context.Context, id string, version int64) error {
	_, err := q.db.ExecContext(ctx, markLoanExported, version, id, version)
	return err
}

const createPayment = `INSERT INTO loan_payments (
	id, loan_id, amount, applied, overpayment, balance_before, balance_after,
	resulting_status, paid_at, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreatePayment(ctx context.Context, r PaymentRow) error {
	_, err := q.db.ExecContext(ctx, createPayment,
		r.ID, r.LoanID, r.Amount, r.Applied, r.Overpayment, r.BalanceBefore, r.BalanceAfter,
		r.ResultingStatus, r.PaidAt, r.CreatedAt,
	)
	return err
}

const listPaymentsByLoan = `SELECT id, loan_id, amount, applied, overpayment, balance_before,
	balance_after, resulting_status, paid_at, created_at
FROM loan_payments
WHERE loan_id = ?
ORDER BY paid_at, created_at`

func (q *Queries) ListPaymentsByLoan(ctx context.Context, loanID string) ([]PaymentRow, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentsByLoan, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PaymentRow
	for rows.Next() {
		var r PaymentRow
		if err := rows.Scan(
			&r.ID, &r.LoanID, &r.Amount, &r.Applied, &r.Overpayment, &r.BalanceBefore,
			&r.BalanceAfter, &r.ResultingStatus, &r.PaidAt, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getProfile = `SELECT user_id, monthly_income, total_assets, credit_score, updated_at
FROM financial_profiles WHERE user_id = ?`

func (q *Queries) GetProfile(ctx context.Context, userID string) (ProfileRow, error) {
	var r ProfileRow
	err := q.db.QueryRowContext(ctx, getProfile, userID).Scan(
		&r.UserID, &r.MonthlyIncome, &r.TotalAssets, &r.CreditScore, &r.UpdatedAt,
	)
	return r, err
}

const upsertProfile = `INSERT INTO financial_profiles (user_id, monthly_income, total_assets, credit_score, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	monthly_income = excluded.monthly_income,
	total_assets = excluded.total_assets,
	credit_score = excluded.credit_score,
	updated_at = excluded.updated_at`

func (q *Queries) UpsertProfile(ctx context.Context, r ProfileRow) error {
	_, err := q.db.ExecContext(ctx, upsertProfile, r.UserID, r.MonthlyIncome, r.TotalAssets, r.CreditScore, r.UpdatedAt)
	return err
}
