package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"loanwise/internal/cache"
	"loanwise/internal/core"
	"loanwise/internal/log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type dashboardFixture struct {
	loans     *LoanService
	dashboard *DashboardService
	store     *fakeStore
	portfolio *cache.LRUCache[core.PortfolioSummary]
}

func newDashboardFixture(t *testing.T) dashboardFixture {
	t.Helper()
	store := newFakeStore()
	portfolio := cache.NewLRUCache[core.PortfolioSummary](10, time.Minute)
	return dashboardFixture{
		loans:     NewLoanService(store, nil, log.Discard()),
		dashboard: NewDashboardService(store, store, portfolio, core.DefaultThresholds(), log.Discard()),
		store:     store,
		portfolio: portfolio,
	}
}

func TestDashboardService_PortfolioIsCachedUntilWrite(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()
	loan, err := f.loans.CreateLoan(ctx, carLoanParams())
	if err != nil {
		t.Fatalf("CreateLoan() error = %v", err)
	}

	first, err := f.dashboard.Portfolio(ctx, "alice")
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if !first.TotalOutstanding.Equal(decimal.NewFromInt(100000)) || first.ActiveLoanCount != 1 {
		t.Errorf("unexpected summary: %+v", first)
	}
	if _, err := f.dashboard.Portfolio(ctx, "alice"); err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if f.store.listCalls != 1 {
		t.Errorf("ListLoans calls = %d, want 1 (second read from cache)", f.store.listCalls)
	}

	if _, _, err := f.loans.ApplyPayment(ctx, loan.ID, decimal.NewFromInt(5000), time.Time{}); err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	after, err := f.dashboard.Portfolio(ctx, "alice")
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if !after.TotalOutstanding.Equal(decimal.NewFromInt(95000)) {
		t.Errorf("outstanding after payment = %s, want 95000", after.TotalOutstanding)
	}
	if f.store.listCalls != 2 {
		t.Errorf("ListLoans calls = %d, want 2", f.store.listCalls)
	}
}

func TestDashboardService_PortfolioIgnoresSummaryRacingWrite(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()
	loan, err := f.loans.CreateLoan(ctx, carLoanParams())
	if err != nil {
		t.Fatalf("CreateLoan() error = %v", err)
	}

	// A reader computed this summary before the payment committed and
	// stores it afterwards.
	staleStamp, _ := f.store.PortfolioStamp(ctx, "alice")
	if _, _, err := f.loans.ApplyPayment(ctx, loan.ID, decimal.NewFromInt(5000), time.Time{}); err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	f.portfolio.Set(ctx, portfolioKey("alice", staleStamp), core.PortfolioSummary{
		TotalOutstanding: decimal.NewFromInt(100000),
		ActiveLoanCount:  1,
	})

	got, err := f.dashboard.Portfolio(ctx, "alice")
	if err != nil {
		t.Fatalf("Portfolio() error = %v", err)
	}
	if !got.TotalOutstanding.Equal(decimal.NewFromInt(95000)) {
		t.Errorf("outstanding = %s, want 95000 from the committed payment", got.TotalOutstanding)
	}
}

func TestDashboardService_DebtHealth(t *testing.T) {
	tests := []struct {
		name      string
		profile   *core.UserFinancialProfile
		wantDTI   string
		wantClass core.HealthClass
	}{
		{
			name:      "no profile",
			wantDTI:   "0",
			wantClass: core.HealthHealthy,
		},
		{
			name:      "comfortable income",
			profile:   &core.UserFinancialProfile{UserID: "alice", MonthlyIncome: decimal.NewFromInt(40000), TotalAssets: decimal.NewFromInt(200000)},
			wantDTI:   "22.21",
			wantClass: core.HealthHealthy,
		},
		{
			name:      "tight income",
			profile:   &core.UserFinancialProfile{UserID: "alice", MonthlyIncome: decimal.NewFromInt(10000)},
			wantDTI:   "88.85",
			wantClass: core.HealthCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDashboardFixture(t)
			ctx := context.Background()
			if _, err := f.loans.CreateLoan(ctx, carLoanParams()); err != nil {
				t.Fatalf("CreateLoan() error = %v", err)
			}
			if tt.profile != nil {
				_ = f.store.UpsertProfile(ctx, *tt.profile)
			}

			res, err := f.dashboard.DebtHealth(ctx, "alice")
			if err != nil {
				t.Fatalf("DebtHealth() error = %v", err)
			}
			if !res.DTIRatio.Equal(decimal.RequireFromString(tt.wantDTI)) {
				t.Errorf("DTI = %s, want %s", res.DTIRatio, tt.wantDTI)
			}
			if res.Classification != tt.wantClass {
				t.Errorf("classification = %s, want %s", res.Classification, tt.wantClass)
			}
			if !res.TotalDebt.Equal(decimal.NewFromInt(100000)) {
				t.Errorf("total debt = %s, want 100000", res.TotalDebt)
			}
		})
	}
}

func TestDashboardService_DebtHealthProfileError(t *testing.T) {
	f := newDashboardFixture(t)
	f.store.profileErr = errors.New("disk on fire")

	if _, err := f.dashboard.DebtHealth(context.Background(), "alice"); err == nil {
		t.Fatal("expected profile load error to surface")
	}
}

func TestDashboardService_Schedule(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()
	loan, _ := f.loans.CreateLoan(ctx, carLoanParams())

	_, res, err := f.dashboard.Schedule(ctx, loan.ID, decimal.Zero)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if res.PayoffMonths != 12 {
		t.Errorf("payoff months = %d, want 12", res.PayoffMonths)
	}
	if first := res.Entries[0].DueDate; first == nil || !first.Equal(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first due date = %v, want 2026-02-15", first)
	}

	_, faster, err := f.dashboard.Schedule(ctx, loan.ID, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("Schedule() with extra error = %v", err)
	}
	if faster.PayoffMonths != 11 {
		t.Errorf("payoff months with extra = %d, want 11", faster.PayoffMonths)
	}

	if _, err := f.loans.MarkDefaulted(ctx, loan.ID); err != nil {
		t.Fatalf("MarkDefaulted() error = %v", err)
	}
	got, empty, err := f.dashboard.Schedule(ctx, loan.ID, decimal.Zero)
	if err != nil {
		t.Fatalf("Schedule() on defaulted loan error = %v", err)
	}
	if got.Status != core.StatusDefaulted || len(empty.Entries) != 0 {
		t.Errorf("expected empty schedule for defaulted loan, got %d entries", len(empty.Entries))
	}

	if _, _, err := f.dashboard.Schedule(ctx, uuid.New(), decimal.Zero); !errors.Is(err, core.ErrLoanNotFound) {
		t.Errorf("expected ErrLoanNotFound, got %v", err)
	}
}

func TestDashboardService_Compare(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()
	loan, _ := f.loans.CreateLoan(ctx, carLoanParams())

	cmp, err := f.dashboard.Compare(ctx, loan.ID, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if cmp.TimeSavedMonths != 1 || !cmp.InterestSaved.IsPositive() {
		t.Errorf("unexpected comparison: saved %d months, %s interest", cmp.TimeSavedMonths, cmp.InterestSaved)
	}

	many, err := f.dashboard.CompareMany(ctx, loan.ID, []decimal.Decimal{decimal.Zero, decimal.NewFromInt(1000), decimal.NewFromInt(20000)})
	if err != nil {
		t.Fatalf("CompareMany() error = %v", err)
	}
	if len(many) != 3 {
		t.Fatalf("comparisons = %d, want 3", len(many))
	}
	for i := 1; i < len(many); i++ {
		if many[i].Accelerated.PayoffMonths > many[i-1].Accelerated.PayoffMonths {
			t.Errorf("larger extra must not lengthen payoff: %d > %d", many[i].Accelerated.PayoffMonths, many[i-1].Accelerated.PayoffMonths)
		}
	}

	if _, _, err := f.loans.ApplyPayment(ctx, loan.ID, decimal.NewFromInt(100000), time.Time{}); err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}
	if _, err := f.dashboard.Compare(ctx, loan.ID, decimal.NewFromInt(1000)); !errors.Is(err, core.ErrLoanNotActive) {
		t.Errorf("expected ErrLoanNotActive for paid off loan, got %v", err)
	}
}
