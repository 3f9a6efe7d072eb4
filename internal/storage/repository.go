package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"loanwise/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps versioned updates
	// from failing with SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateLoan stores a new loan.
func (r *SQLiteRepository) CreateLoan(ctx context.Context, l core.Loan) error {
	if err := r.queries.CreateLoan(ctx, encodeLoan(l)); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}

	slog.InfoContext(ctx, "Loan saved to SQLite",
		"loan_id", l.ID,
		"user_id", l.UserID,
		"principal", l.Principal.StringFixed(2),
		"tenure_months", l.TenureMonths)

	return nil
}

// GetLoan returns core.ErrLoanNotFound when no loan has the id.
func (r *SQLiteRepository) GetLoan(ctx context.Context, id uuid.UUID) (core.Loan, error) {
	row, err := r.queries.GetLoan(ctx, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.Loan{}, fmt.Errorf("%w: %s", core.ErrLoanNotFound, id)
	}
	if err != nil {
		return core.Loan{}, fmt.Errorf("get loan %s: %w", id, err)
	}
	return decodeLoan(ctx, row)
}

// ListLoans returns every loan of userID, oldest first.
func (r *SQLiteRepository) ListLoans(ctx context.Context, userID string) ([]core.Loan, error) {
	rows, err := r.queries.ListLoansByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list loans for user %s: %w", userID, err)
	}
	return r.decodeLoans(ctx, rows), nil
}

// PortfolioStamp identifies the current state of a user's loans. Any write to
// them yields a different stamp.
func (r *SQLiteRepository) PortfolioStamp(ctx context.Context, userID string) (string, error) {
	count, versions, err := r.queries.LoanStamp(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("stamp loans for user %s: %w", userID, err)
	}
	return fmt.Sprintf("%d.%d", count, versions), nil
}

// ListUnexportedLoans returns loans whose latest version has not been exported.
func (r *SQLiteRepository) ListUnexportedLoans(ctx context.Context, limit int) ([]core.Loan, error) {
	rows, err := r.queries.ListUnexportedLoans(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported loans: %w", err)
	}
	return r.decodeLoans(ctx, rows), nil
}

func (r *SQLiteRepository) decodeLoans(ctx context.Context, rows []LoanRow) []core.Loan {
	loans := make([]core.Loan, 0, len(rows))
	for _, row := range rows {
		l, err := decodeLoan(ctx, row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping loan with unreadable id", "id", row.ID, "error", err)
			continue
		}
		loans = append(loans, l)
	}
	return loans
}

// UpdateLoan writes l if the stored version still equals l.Version and
// returns the loan with its new version. A stale snapshot yields
// core.ErrVersionConflict.
func (r *SQLiteRepository) UpdateLoan(ctx context.Context, l core.Loan) (core.Loan, error) {
	l, err := r.updateLoan(ctx, r.queries, l)
	if err != nil {
		return core.Loan{}, err
	}
	slog.InfoContext(ctx, "Loan updated", "loan_id", l.ID, "status", l.Status, "version", l.Version)
	return l, nil
}

func (r *SQLiteRepository) updateLoan(ctx context.Context, q *Queries, l core.Loan) (core.Loan, error) {
	// Writing back would replace the unreadable amounts with zero.
	if l.Malformed(core.FieldPrincipal, core.FieldOutstandingBalance) {
		return core.Loan{}, fmt.Errorf("%w: loan %s has unreadable balances", core.ErrInvalidInput, l.ID)
	}
	l.UpdatedAt = r.now()
	affected, err := q.UpdateLoanVersioned(ctx, encodeLoan(l))
	if err != nil {
		return core.Loan{}, fmt.Errorf("update loan %s: %w", l.ID, err)
	}
	if affected == 0 {
		exists, err := q.LoanExists(ctx, l.ID.String())
		if err != nil {
			return core.Loan{}, fmt.Errorf("check loan %s: %w", l.ID, err)
		}
		if !exists {
			return core.Loan{}, fmt.Errorf("%w: %s", core.ErrLoanNotFound, l.ID)
		}
		return core.Loan{}, fmt.Errorf("%w: %s at version %d", core.ErrVersionConflict, l.ID, l.Version)
	}
	l.Version++
	return l, nil
}

// SavePayment persists the post-payment loan and its receipt atomically.
func (r *SQLiteRepository) SavePayment(ctx context.Context, l core.Loan, receipt core.PaymentReceipt) (core.Loan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Loan{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	updated, err := r.updateLoan(ctx, q, l)
	if err != nil {
		return core.Loan{}, err
	}
	if err := q.CreatePayment(ctx, encodePayment(receipt, r.now())); err != nil {
		return core.Loan{}, fmt.Errorf("create payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Loan{}, fmt.Errorf("commit payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved to SQLite",
		"loan_id", updated.ID,
		"payment_id", receipt.ID,
		"applied", receipt.Applied.StringFixed(2),
		"balance_after", receipt.BalanceAfter.StringFixed(2),
		"version", updated.Version)

	return updated, nil
}

// ListPayments returns the payments of a loan in the order they were made.
func (r *SQLiteRepository) ListPayments(ctx context.Context, loanID uuid.UUID) ([]core.PaymentReceipt, error) {
	rows, err := r.queries.ListPaymentsByLoan(ctx, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("list payments for loan %s: %w", loanID, err)
	}
	payments := make([]core.PaymentReceipt, 0, len(rows))
	for _, row := range rows {
		p, err := decodePayment(ctx, row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable payment", "id", row.ID, "error", err)
			continue
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// MarkExported records that version of a loan reached the export target.
// Older versions never overwrite a newer mark.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id uuid.UUID, version int64) error {
	if err := r.queries.MarkLoanExported(ctx, id.String(), version); err != nil {
		return fmt.Errorf("mark loan exported: %w", err)
	}
	slog.DebugContext(ctx, "Loan marked as exported", "loan_id", id, "version", version)
	return nil
}

// GetProfile returns core.ErrProfileNotFound for users without a profile.
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.UserFinancialProfile, error) {
	row, err := r.queries.GetProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserFinancialProfile{}, fmt.Errorf("%w: %s", core.ErrProfileNotFound, userID)
	}
	if err != nil {
		return core.UserFinancialProfile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}

	d := loanDecoder{ctx: ctx, id: "profile:" + userID}
	p := core.UserFinancialProfile{
		UserID:        row.UserID,
		MonthlyIncome: d.decimal("monthly_income", row.MonthlyIncome),
		TotalAssets:   d.decimal("total_assets", row.TotalAssets),
	}
	if row.CreditScore.Valid {
		score := int(row.CreditScore.Int64)
		p.CreditScore = &score
	}
	return p, nil
}

// UpsertProfile creates or replaces the financial profile of p.UserID.
func (r *SQLiteRepository) UpsertProfile(ctx context.Context, p core.UserFinancialProfile) error {
	row := ProfileRow{
		UserID:        p.UserID,
		MonthlyIncome: p.MonthlyIncome.String(),
		TotalAssets:   p.TotalAssets.String(),
		UpdatedAt:     formatTimestamp(r.now()),
	}
	if p.CreditScore != nil {
		row.CreditScore = sql.NullInt64{Int64: int64(*p.CreditScore), Valid: true}
	}
	if err := r.queries.UpsertProfile(ctx, row); err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.UserID, err)
	}
	slog.InfoContext(ctx, "Financial profile saved", "user_id", p.UserID)
	return nil
}
