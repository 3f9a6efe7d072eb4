package sheets

import (
	"fmt"
	"time"

	"loanwise/internal/core"
)

// ScheduleHeader is the first row of every exported schedule.
var ScheduleHeader = []any{"Month", "Due date", "Payment", "Interest", "Principal", "Remaining balance"}

// PortfolioHeader names the columns of a portfolio snapshot row.
var PortfolioHeader = []any{
	"Exported at", "User", "Loans", "Active loans", "Outstanding", "Principal", "Paid",
	"Paid %", "Monthly payments", "Average rate", "DTI %", "Debt/assets %", "Health",
	"Next payment", "Degraded loans",
}

// ScheduleRows renders a schedule as sheet rows: header, one row per period
// and a totals row. Loans that no longer amortize get a status row instead.
func ScheduleRows(loan core.Loan, res core.ScheduleResult) [][]any {
	rows := [][]any{ScheduleHeader}
	if len(res.Entries) == 0 {
		return append(rows, []any{"Status", string(loan.Status)})
	}
	for _, e := range res.Entries {
		due := ""
		if e.DueDate != nil {
			due = e.DueDate.Format(time.DateOnly)
		}
		rows = append(rows, []any{
			e.Month,
			due,
			e.Payment.StringFixed(2),
			e.Interest.StringFixed(2),
			e.Principal.StringFixed(2),
			e.RemainingBalance.StringFixed(2),
		})
	}
	return append(rows, []any{
		"Total",
		"",
		res.TotalPayment.StringFixed(2),
		res.TotalInterestPaid.StringFixed(2),
		res.Entries.TotalPrincipal().StringFixed(2),
		"",
	})
}

// PortfolioRow renders one snapshot row matching PortfolioHeader.
func PortfolioRow(at time.Time, userID string, s core.PortfolioSummary, h core.DebtHealthResult) []any {
	next := ""
	if s.NextPayment != nil {
		next = fmt.Sprintf("%s %s (%s)", s.NextPayment.Date.Format(time.DateOnly), s.NextPayment.Amount.StringFixed(2), s.NextPayment.LoanName)
	}
	return []any{
		at.UTC().Format(time.RFC3339),
		userID,
		s.LoanCount,
		s.ActiveLoanCount,
		s.TotalOutstanding.StringFixed(2),
		s.TotalPrincipal.StringFixed(2),
		s.TotalPaid.StringFixed(2),
		s.PaidPercent.StringFixed(2),
		s.TotalMonthlyPayments.StringFixed(2),
		s.AverageInterestRate.StringFixed(2),
		h.DTIRatio.StringFixed(2),
		h.DebtToAssetsRatio.StringFixed(2),
		string(h.Classification),
		next,
		len(s.Degraded),
	}
}
