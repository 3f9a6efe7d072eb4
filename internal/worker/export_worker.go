// Package worker keeps the spreadsheet export in step with the loan store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"loanwise/internal/amqp"
	"loanwise/internal/core"
	"loanwise/internal/log"
	"loanwise/internal/sheets"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// exportConcurrency bounds parallel schedule exports during reconciliation.
const exportConcurrency = 4

type (
	// ExportStore tracks which loan versions reached the export target.
	ExportStore interface {
		ListUnexportedLoans(ctx context.Context, limit int) ([]core.Loan, error)
		MarkExported(ctx context.Context, id uuid.UUID, version int64) error
	}

	// Dashboard is implemented by services.DashboardService.
	Dashboard interface {
		Schedule(ctx context.Context, loanID uuid.UUID, extra decimal.Decimal) (core.Loan, core.ScheduleResult, error)
		Overview(ctx context.Context, userID string) (core.PortfolioSummary, core.DebtHealthResult, error)
	}
)

// ExportWorker writes loan schedules and portfolio snapshots to the
// configured exporter, driven by loan events and a periodic sweep.
type ExportWorker struct {
	store     ExportStore
	dashboard Dashboard
	exporter  sheets.Exporter
	batchSize int
	logger    *log.Logger
}

func NewExportWorker(store ExportStore, dashboard Dashboard, exporter sheets.Exporter, batchSize int, logger *log.Logger) *ExportWorker {
	if batchSize < 1 {
		batchSize = 20
	}
	return &ExportWorker{
		store:     store,
		dashboard: dashboard,
		exporter:  exporter,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLoanEvent exports the changed loan and its owner's portfolio. The
// loan is reloaded so the export always reflects the latest version, not the
// snapshot carried by the event. Returning an error requeues the message.
func (w *ExportWorker) HandleLoanEvent(ctx context.Context, ev *amqp.LoanEvent) error {
	w.logger.InfoContext(ctx, "Processing loan event",
		log.FieldMessageID, ev.ID,
		log.FieldEventType, ev.Type,
		log.FieldLoanID, ev.LoanID,
		log.FieldVersion, ev.Version)

	loan, err := w.exportLoan(ctx, ev.LoanID)
	if errors.Is(err, core.ErrLoanNotFound) {
		// Nothing to export; redelivery would not change that.
		w.logger.WarnContext(ctx, "Loan from event no longer exists", log.FieldLoanID, ev.LoanID)
		return nil
	}
	if err != nil {
		return err
	}

	return w.exportPortfolio(ctx, loan.UserID)
}

// Reconcile exports loans whose latest version was never exported, a backup
// for lost or failed event deliveries. It returns the number of loans
// exported.
func (w *ExportWorker) Reconcile(ctx context.Context) (int, error) {
	pending, err := w.store.ListUnexportedLoans(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unexported loans: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Reconciling unexported loans",
		log.FieldOperation, log.OpReconcile,
		log.FieldCount, len(pending))

	var (
		mu       sync.Mutex
		exported int
		users    = make(map[string]struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for _, l := range pending {
		g.Go(func() error {
			loan, err := w.exportLoan(gctx, l.ID)
			if err != nil {
				// One failing loan must not block the rest of the batch.
				w.logger.ErrorContext(gctx, "Failed to export loan",
					log.FieldLoanID, l.ID, log.FieldError, err)
				return nil
			}
			mu.Lock()
			exported++
			users[loan.UserID] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for userID := range users {
		if err := w.exportPortfolio(ctx, userID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export portfolio",
				log.FieldUserID, userID, log.FieldError, err)
		}
	}

	w.logger.InfoContext(ctx, "Reconciliation completed",
		"total", len(pending),
		"exported", exported,
		"errors", len(pending)-exported)

	return exported, ctx.Err()
}

// Run reconciles immediately and then every interval until ctx is done.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.reconcileOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcileOnce(ctx)
		}
	}
}

func (w *ExportWorker) reconcileOnce(ctx context.Context) {
	if _, err := w.Reconcile(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "Reconciliation failed", log.FieldError, err)
	}
}

// exportLoan writes the current schedule of a loan and records the exported
// version. Loans that are no longer ACTIVE, or whose stored terms are
// incomplete, export an empty schedule.
func (w *ExportWorker) exportLoan(ctx context.Context, id uuid.UUID) (core.Loan, error) {
	loan, res, err := w.dashboard.Schedule(ctx, id, decimal.Zero)
	switch {
	case errors.Is(err, core.ErrLoanNotFound):
		return core.Loan{}, err
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrNonAmortizingPayment),
		errors.Is(err, core.ErrScheduleCapExceeded),
		errors.Is(err, core.ErrNumericOverflow):
		w.logger.WarnContext(ctx, "Loan has no computable schedule, exporting status only",
			log.FieldLoanID, id, log.FieldError, err)
		res = core.ScheduleResult{Entries: core.Schedule{}}
	case err != nil:
		return core.Loan{}, fmt.Errorf("build schedule for %s: %w", id, err)
	}

	ref, err := w.exporter.ExportSchedule(ctx, loan, res)
	if err != nil {
		return core.Loan{}, fmt.Errorf("export schedule for %s: %w", id, err)
	}

	if err := w.store.MarkExported(ctx, loan.ID, loan.Version); err != nil {
		// The sheet is already written; the next sweep exports it again.
		w.logger.WarnContext(ctx, "Failed to mark loan as exported",
			log.FieldLoanID, loan.ID, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Loan schedule exported",
		log.FieldLoanID, loan.ID,
		log.FieldVersion, loan.Version,
		log.FieldLoanStatus, loan.Status,
		log.FieldExportRef, ref)
	return loan, nil
}

func (w *ExportWorker) exportPortfolio(ctx context.Context, userID string) error {
	summary, health, err := w.dashboard.Overview(ctx, userID)
	if err != nil {
		return fmt.Errorf("summarize portfolio of %s: %w", userID, err)
	}
	ref, err := w.exporter.ExportPortfolio(ctx, userID, summary, health)
	if err != nil {
		return fmt.Errorf("export portfolio of %s: %w", userID, err)
	}
	w.logger.InfoContext(ctx, "Portfolio exported",
		log.FieldUserID, userID,
		log.FieldExportRef, ref,
		"classification", health.Classification)
	return nil
}
