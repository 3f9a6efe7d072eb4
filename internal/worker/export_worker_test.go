package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"loanwise/internal/amqp"
	"loanwise/internal/core"
	"loanwise/internal/log"
	"loanwise/internal/services"
	"loanwise/internal/sheets/memory"
	"loanwise/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// failingExporter rejects every schedule export.
type failingExporter struct {
	*memory.Store
}

func (failingExporter) ExportSchedule(context.Context, core.Loan, core.ScheduleResult) (string, error) {
	return "", errors.New("quota exceeded")
}

type fixture struct {
	repo     *storage.SQLiteRepository
	loans    *services.LoanService
	exported *memory.Store
	worker   *ExportWorker
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "loanwise.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.Discard()
	dashboard := services.NewDashboardService(repo, repo, nil, core.DefaultThresholds(), logger)
	exported := memory.New()
	return fixture{
		repo:     repo,
		loans:    services.NewLoanService(repo, nil, logger),
		exported: exported,
		worker:   NewExportWorker(repo, dashboard, exported, 10, logger),
	}
}

func (f fixture) createLoan(t *testing.T, userID string, principal int64) core.Loan {
	t.Helper()
	loan, err := f.loans.CreateLoan(context.Background(), core.NewLoanParams{
		UserID:       userID,
		Name:         "loan",
		Principal:    decimal.NewFromInt(principal),
		InterestRate: decimal.NewFromInt(12),
		TenureMonths: 12,
		IssueDate:    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateLoan() error = %v", err)
	}
	return loan
}

func TestExportWorker_HandleLoanEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loan := f.createLoan(t, "alice", 100000)

	if err := f.worker.HandleLoanEvent(ctx, amqp.NewLoanEvent(amqp.EventLoanCreated, loan)); err != nil {
		t.Fatalf("HandleLoanEvent() error = %v", err)
	}

	rows, ok := f.exported.Schedule(loan.ID)
	if !ok {
		t.Fatal("expected schedule export")
	}
	// header + 12 periods + totals
	if len(rows) != 14 {
		t.Errorf("schedule rows = %d, want 14", len(rows))
	}
	snaps := f.exported.Snapshots("alice")
	if len(snaps) != 1 || !snaps[0].Summary.TotalOutstanding.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("unexpected portfolio snapshots: %+v", snaps)
	}

	pending, err := f.repo.ListUnexportedLoans(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnexportedLoans() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected loan to be marked exported, %d pending", len(pending))
	}
}

func TestExportWorker_HandleLoanEventMissingLoan(t *testing.T) {
	f := newFixture(t)
	ev := &amqp.LoanEvent{ID: uuid.New(), Type: amqp.EventLoanCreated, LoanID: uuid.New(), UserID: "ghost", Version: 1}

	if err := f.worker.HandleLoanEvent(context.Background(), ev); err != nil {
		t.Fatalf("missing loan should be acknowledged, got %v", err)
	}
	if len(f.exported.Snapshots("ghost")) != 0 {
		t.Error("no portfolio should be exported for a missing loan")
	}
}

func TestExportWorker_ExportFailureRequeues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loan := f.createLoan(t, "alice", 50000)
	dashboard := services.NewDashboardService(f.repo, f.repo, nil, core.DefaultThresholds(), log.Discard())
	w := NewExportWorker(f.repo, dashboard, failingExporter{memory.New()}, 10, log.Discard())

	if err := w.HandleLoanEvent(ctx, amqp.NewLoanEvent(amqp.EventLoanCreated, loan)); err == nil {
		t.Fatal("expected export failure to be returned")
	}
	pending, _ := f.repo.ListUnexportedLoans(ctx, 10)
	if len(pending) != 1 {
		t.Errorf("failed export must leave the loan pending, got %d", len(pending))
	}
}

func TestExportWorker_Reconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createLoan(t, "alice", 100000)
	f.createLoan(t, "alice", 20000)
	f.createLoan(t, "bob", 5000)

	n, err := f.worker.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if n != 3 {
		t.Errorf("exported = %d, want 3", n)
	}
	if got := len(f.exported.Snapshots("alice")); got != 1 {
		t.Errorf("alice snapshots = %d, want 1", got)
	}
	if got := len(f.exported.Snapshots("bob")); got != 1 {
		t.Errorf("bob snapshots = %d, want 1", got)
	}

	if n, _ := f.worker.Reconcile(ctx); n != 0 {
		t.Errorf("second reconcile exported %d, want 0", n)
	}

	// A new version makes the loan pending again.
	if _, err := f.loans.MarkDefaulted(ctx, first.ID); err != nil {
		t.Fatalf("MarkDefaulted() error = %v", err)
	}
	if n, _ := f.worker.Reconcile(ctx); n != 1 {
		t.Errorf("reconcile after default exported %d, want 1", n)
	}
	rows, _ := f.exported.Schedule(first.ID)
	if len(rows) != 2 || rows[1][1] != "DEFAULTED" {
		t.Errorf("defaulted loan should export its status only, got %v", rows)
	}
}

func TestExportWorker_RunStopsWithContext(t *testing.T) {
	f := newFixture(t)
	f.createLoan(t, "alice", 1000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for len(f.exported.Snapshots("alice")) == 0 {
		select {
		case <-deadline:
			t.Fatal("initial reconciliation did not run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
