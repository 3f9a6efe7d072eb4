// Package services orchestrates the repayment engine with persistence,
// messaging and caching.
package services

import (
	"context"

	"loanwise/internal/amqp"
	"loanwise/internal/core"

	"github.com/google/uuid"
)

type (
	// LoanStore is implemented by storage.SQLiteRepository.
	LoanStore interface {
		CreateLoan(ctx context.Context, l core.Loan) error
		GetLoan(ctx context.Context, id uuid.UUID) (core.Loan, error)
		ListLoans(ctx context.Context, userID string) ([]core.Loan, error)
		UpdateLoan(ctx context.Context, l core.Loan) (core.Loan, error)
		SavePayment(ctx context.Context, l core.Loan, receipt core.PaymentReceipt) (core.Loan, error)
		ListPayments(ctx context.Context, loanID uuid.UUID) ([]core.PaymentReceipt, error)
		// PortfolioStamp changes whenever any of the user's loans is written.
		PortfolioStamp(ctx context.Context, userID string) (string, error)
	}

	ProfileStore interface {
		GetProfile(ctx context.Context, userID string) (core.UserFinancialProfile, error)
		UpsertProfile(ctx context.Context, p core.UserFinancialProfile) error
	}

	// EventPublisher is implemented by amqp.Client.
	EventPublisher interface {
		PublishLoanEvent(ctx context.Context, ev *amqp.LoanEvent) error
	}
)

// portfolioKey names a summary by the loan state it was computed from, so a
// summary racing a write is stored under a stamp no later read asks for.
func portfolioKey(userID, stamp string) string {
	return "portfolio:" + userID + ":" + stamp
}
