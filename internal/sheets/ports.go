package sheets

import (
	"context"

	"loanwise/internal/core"
)

// Ports for outbound export adapters.
type (
	// ScheduleExporter publishes the amortization schedule of one loan,
	// replacing whatever was exported for it before.
	ScheduleExporter interface {
		ExportSchedule(ctx context.Context, loan core.Loan, schedule core.ScheduleResult) (ref string, err error)
	}

	// PortfolioExporter records a snapshot of a user's portfolio.
	PortfolioExporter interface {
		ExportPortfolio(ctx context.Context, userID string, summary core.PortfolioSummary, health core.DebtHealthResult) (ref string, err error)
	}

	Exporter interface {
		ScheduleExporter
		PortfolioExporter
	}
)
