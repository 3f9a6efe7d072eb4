package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loanwise/internal/amqp"
	"loanwise/internal/core"
	"loanwise/internal/log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxWriteAttempts bounds the read-modify-write loop of a loan mutation.
const maxWriteAttempts = 3

// LoanService runs loan lifecycle transitions against the store. Every
// mutation reads the current snapshot, applies the engine transition and
// writes it back with a version check, so two concurrent payments on the same
// loan are serialized instead of one overwriting the other.
type LoanService struct {
	store     LoanStore
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

// NewLoanService wires the service. publisher may be nil.
func NewLoanService(store LoanStore, publisher EventPublisher, logger *log.Logger) *LoanService {
	return &LoanService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLoan),
		now:       time.Now,
	}
}

// CreateLoan validates p, saves the new loan and announces it.
func (s *LoanService) CreateLoan(ctx context.Context, p core.NewLoanParams) (core.Loan, error) {
	loan, err := core.NewLoan(p)
	if err != nil {
		return core.Loan{}, err
	}
	if err := s.store.CreateLoan(ctx, loan); err != nil {
		return core.Loan{}, fmt.Errorf("save loan: %w", err)
	}

	s.logger.InfoContext(ctx, "Loan created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithLoan(loan.ID.String(), loan.UserID, string(loan.Status), loan.Version).
			WithAmounts(loan.Principal, loan.OutstandingBalance).
			ToSlice()...)

	s.afterWrite(ctx, amqp.EventLoanCreated, loan)
	return loan, nil
}

func (s *LoanService) GetLoan(ctx context.Context, id uuid.UUID) (core.Loan, error) {
	return s.store.GetLoan(ctx, id)
}

func (s *LoanService) ListLoans(ctx context.Context, userID string) ([]core.Loan, error) {
	return s.store.ListLoans(ctx, userID)
}

func (s *LoanService) ListPayments(ctx context.Context, loanID uuid.UUID) ([]core.PaymentReceipt, error) {
	if _, err := s.store.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, loanID)
}

// ApplyPayment records a payment. A zero paidAt means now.
func (s *LoanService) ApplyPayment(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal, paidAt time.Time) (core.Loan, core.PaymentReceipt, error) {
	if paidAt.IsZero() {
		paidAt = s.now().UTC()
	}

	var (
		saved   core.Loan
		receipt core.PaymentReceipt
	)
	err := s.retryOnConflict(ctx, loanID, log.OpPayment, func() error {
		loan, err := s.store.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		updated, r, err := core.ApplyPayment(loan, amount, paidAt)
		if err != nil {
			return err
		}
		saved, err = s.store.SavePayment(ctx, updated, r)
		receipt = r
		return err
	})
	if err != nil {
		return core.Loan{}, core.PaymentReceipt{}, err
	}

	log.NewStructuredLogger(s.logger).LogPaymentApplied(ctx,
		saved.ID.String(), saved.UserID, string(saved.Status), saved.Version,
		receipt.Applied, receipt.BalanceAfter)

	event := amqp.EventPaymentApplied
	if saved.Status == core.StatusPaidOff {
		event = amqp.EventLoanPaidOff
	}
	s.afterWrite(ctx, event, saved)
	return saved, receipt, nil
}

// MarkDefaulted moves an ACTIVE loan to DEFAULTED.
func (s *LoanService) MarkDefaulted(ctx context.Context, loanID uuid.UUID) (core.Loan, error) {
	loan, err := s.mutate(ctx, loanID, log.OpDefault, core.MarkDefaulted)
	if err != nil {
		return core.Loan{}, err
	}
	s.logger.WarnContext(ctx, "Loan marked as defaulted",
		log.FieldLoanID, loan.ID,
		log.FieldUserID, loan.UserID,
		log.FieldBalance, loan.OutstandingBalance.StringFixed(2))
	s.afterWrite(ctx, amqp.EventLoanDefaulted, loan)
	return loan, nil
}

// RecalculateInstallment recomputes the EMI of an ACTIVE loan from its
// outstanding balance and remaining tenure.
func (s *LoanService) RecalculateInstallment(ctx context.Context, loanID uuid.UUID) (core.Loan, error) {
	asOf := s.now().UTC()
	loan, err := s.mutate(ctx, loanID, log.OpRecalculate, func(l core.Loan) (core.Loan, error) {
		return core.RecalculateInstallment(l, asOf)
	})
	if err != nil {
		return core.Loan{}, err
	}
	s.logger.InfoContext(ctx, "Installment recalculated",
		log.FieldLoanID, loan.ID,
		"emi", loan.EMIAmount.Decimal.StringFixed(2),
		"remaining_months", loan.RemainingMonths(asOf))
	s.afterWrite(ctx, amqp.EventLoanRecalc, loan)
	return loan, nil
}

func (s *LoanService) mutate(ctx context.Context, loanID uuid.UUID, op string, fn func(core.Loan) (core.Loan, error)) (core.Loan, error) {
	var saved core.Loan
	err := s.retryOnConflict(ctx, loanID, op, func() error {
		loan, err := s.store.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		updated, err := fn(loan)
		if err != nil {
			return err
		}
		saved, err = s.store.UpdateLoan(ctx, updated)
		return err
	})
	return saved, err
}

// retryOnConflict reruns attempt while it fails with a version conflict.
func (s *LoanService) retryOnConflict(ctx context.Context, loanID uuid.UUID, op string, attempt func() error) error {
	var err error
	for i := 1; i <= maxWriteAttempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = attempt()
		if !errors.Is(err, core.ErrVersionConflict) {
			return err
		}
		s.logger.WarnContext(ctx, "Loan changed during update, retrying",
			log.FieldLoanID, loanID,
			log.FieldOperation, op,
			log.FieldAttempt, i)
	}
	return fmt.Errorf("%s after %d attempts: %w", op, maxWriteAttempts, err)
}

// afterWrite runs the non-critical side effects of a committed change.
// Failures are logged; the write already succeeded.
func (s *LoanService) afterWrite(ctx context.Context, event amqp.EventType, loan core.Loan) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No event publisher configured, skipping event",
			log.FieldEventType, event, log.FieldLoanID, loan.ID)
		return
	}
	if err := s.publisher.PublishLoanEvent(ctx, amqp.NewLoanEvent(event, loan)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish loan event",
			log.FieldEventType, event,
			log.FieldLoanID, loan.ID,
			log.FieldVersion, loan.Version,
			log.FieldError, err)
	}
}
