package services

import (
	"context"
	"errors"
	"fmt"

	"loanwise/internal/cache"
	"loanwise/internal/core"
	"loanwise/internal/log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DashboardService serves the read side: portfolio totals, debt health and
// what-if schedules. All figures come from the engine; this layer only loads
// inputs and caches portfolio summaries per user.
type DashboardService struct {
	loans      LoanStore
	profiles   ProfileStore
	portfolio  cache.Cache[core.PortfolioSummary]
	thresholds core.Thresholds
	logger     *log.Logger
}

func NewDashboardService(loans LoanStore, profiles ProfileStore, portfolio cache.Cache[core.PortfolioSummary], thresholds core.Thresholds, logger *log.Logger) *DashboardService {
	return &DashboardService{
		loans:      loans,
		profiles:   profiles,
		portfolio:  portfolio,
		thresholds: thresholds,
		logger:     logger.WithComponent(log.ComponentDashboard),
	}
}

// Portfolio summarizes every loan of userID.
func (s *DashboardService) Portfolio(ctx context.Context, userID string) (core.PortfolioSummary, error) {
	var key string
	if s.portfolio != nil {
		stamp, err := s.loans.PortfolioStamp(ctx, userID)
		if err != nil {
			return core.PortfolioSummary{}, fmt.Errorf("stamp loans: %w", err)
		}
		key = portfolioKey(userID, stamp)
		if summary, ok := s.portfolio.Get(ctx, key); ok {
			return summary, nil
		}
	}

	loans, err := s.loans.ListLoans(ctx, userID)
	if err != nil {
		return core.PortfolioSummary{}, fmt.Errorf("load loans: %w", err)
	}
	summary := core.SummarizePortfolio(loans)
	if len(summary.Degraded) > 0 {
		s.logger.WarnContext(ctx, "Portfolio computed with incomplete loan data",
			log.FieldUserID, userID,
			log.FieldDegradedLoans, summary.Degraded)
	}

	if s.portfolio != nil {
		s.portfolio.Set(ctx, key, summary)
	}
	return summary, nil
}

// DebtHealth evaluates the user's ratios. A user without a financial
// profile is evaluated against zero income and assets.
func (s *DashboardService) DebtHealth(ctx context.Context, userID string) (core.DebtHealthResult, error) {
	_, health, err := s.Overview(ctx, userID)
	return health, err
}

// Overview returns the portfolio summary together with the debt health
// derived from it. Loans and profile are loaded concurrently.
func (s *DashboardService) Overview(ctx context.Context, userID string) (core.PortfolioSummary, core.DebtHealthResult, error) {
	var (
		summary core.PortfolioSummary
		profile core.UserFinancialProfile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = s.Portfolio(gctx, userID)
		return err
	})
	g.Go(func() error {
		p, err := s.profiles.GetProfile(gctx, userID)
		if errors.Is(err, core.ErrProfileNotFound) {
			s.logger.DebugContext(gctx, "No financial profile, using empty one", log.FieldUserID, userID)
			profile = core.UserFinancialProfile{UserID: userID, MonthlyIncome: decimal.Zero, TotalAssets: decimal.Zero}
			return nil
		}
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		profile = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.PortfolioSummary{}, core.DebtHealthResult{}, err
	}

	health := core.EvaluateDebtHealth(core.BuildDebtHealthProfile(summary, profile), s.thresholds)
	return summary, health, nil
}

// Schedule builds the remaining schedule of a loan with an optional extra
// payment per period. Loans that are no longer ACTIVE have an empty schedule.
func (s *DashboardService) Schedule(ctx context.Context, loanID uuid.UUID, extra decimal.Decimal) (core.Loan, core.ScheduleResult, error) {
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return core.Loan{}, core.ScheduleResult{}, err
	}
	if loan.Status != core.StatusActive {
		return loan, core.ScheduleResult{Entries: core.Schedule{}, TotalInterestPaid: decimal.Zero, TotalPayment: decimal.Zero}, nil
	}
	terms, err := loan.Terms()
	if err != nil {
		return loan, core.ScheduleResult{}, err
	}
	res, err := core.BuildSchedule(terms, extra)
	if err != nil {
		return loan, core.ScheduleResult{}, err
	}
	return loan, res, nil
}

// Compare contrasts the loan's standard schedule with one that pays extra.
func (s *DashboardService) Compare(ctx context.Context, loanID uuid.UUID, extra decimal.Decimal) (core.RepaymentComparison, error) {
	terms, err := s.activeTerms(ctx, loanID)
	if err != nil {
		return core.RepaymentComparison{}, err
	}
	return core.CompareRepayment(terms, extra)
}

// CompareMany evaluates several extra amounts against one standard schedule.
func (s *DashboardService) CompareMany(ctx context.Context, loanID uuid.UUID, extras []decimal.Decimal) ([]core.RepaymentComparison, error) {
	terms, err := s.activeTerms(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return core.CompareExtraPayments(terms, extras)
}

func (s *DashboardService) activeTerms(ctx context.Context, loanID uuid.UUID) (core.Terms, error) {
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return core.Terms{}, err
	}
	if loan.Status != core.StatusActive {
		return core.Terms{}, fmt.Errorf("%w: status is %s", core.ErrLoanNotActive, loan.Status)
	}
	return loan.Terms()
}
