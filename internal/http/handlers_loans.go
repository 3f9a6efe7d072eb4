package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loanwise/internal/core"
)

type createLoanRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Principal    decimal.Decimal `json:"principal" validate:"gt=0"`
	AnnualRate   decimal.Decimal `json:"annual_rate" validate:"gte=0,lte=100"`
	TenureMonths int             `json:"tenure_months" validate:"min=1,max=1200"`
	IssueDate    string          `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	PaidAt string          `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
}

type paymentResponse struct {
	Loan    core.Loan           `json:"loan"`
	Receipt core.PaymentReceipt `json:"receipt"`
}

type loansResponse struct {
	Loans []core.Loan `json:"loans"`
}

type paymentsResponse struct {
	Payments []core.PaymentReceipt `json:"payments"`
}

type loanScheduleResponse struct {
	LoanID   uuid.UUID           `json:"loan_id"`
	Status   core.Status         `json:"status"`
	Schedule core.ScheduleResult `json:"schedule"`
}

// loanID parses the {loanID} path segment. Malformed IDs cannot name a loan.
func loanID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("loanID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", core.ErrLoanNotFound, raw)
	}
	return id, nil
}

// maxComparedExtras matches the extra_payments limit of the calculator API.
const maxComparedExtras = 20

// extraParam reads the optional ?extra= amount.
func extraParam(r *http.Request) (decimal.Decimal, error) {
	return parseExtra(r.URL.Query().Get("extra"))
}

// parseExtra reads one extra payment amount. Absent or zero, in any
// spelling, means none.
func parseExtra(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	if v, err := core.ParseRate(raw); err == nil && core.RoundCurrency(v).IsZero() {
		return decimal.Zero, nil
	}
	extra, err := core.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("extra %q: %w", raw, err)
	}
	return extra, nil
}

// dateOr parses a validated date, defaulting to today.
func (s *Server) dateOr(raw string) time.Time {
	if d, err := time.Parse(dateLayout, raw); err == nil {
		return d
	}
	return s.now().UTC()
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := s.deps.Loans.CreateLoan(r.Context(), core.NewLoanParams{
		UserID:       r.PathValue("userID"),
		Name:         req.Name,
		Principal:    req.Principal,
		InterestRate: req.AnnualRate,
		TenureMonths: req.TenureMonths,
		IssueDate:    s.dateOr(req.IssueDate),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/loans/"+loan.ID.String())
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.deps.Loans.ListLoans(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []core.Loan{}
	}
	writeJSON(w, http.StatusOK, loansResponse{Loans: loans})
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := s.deps.Loans.GetLoan(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleLoanSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	extra, err := extraParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loan, result, err := s.deps.Dashboard.Schedule(r.Context(), id, extra)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loanScheduleResponse{LoanID: loan.ID, Status: loan.Status, Schedule: result})
}

// handleLoanCompare accepts a repeated ?extra= to weigh several amounts in one
// call.
func (s *Server) handleLoanCompare(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if raws := r.URL.Query()["extra"]; len(raws) > 1 {
		if len(raws) > maxComparedExtras {
			writeError(w, r, fmt.Errorf("%w: at most %d extra amounts per comparison, got %d",
				core.ErrInvalidInput, maxComparedExtras, len(raws)))
			return
		}
		extras := make([]decimal.Decimal, 0, len(raws))
		for _, raw := range raws {
			extra, err := parseExtra(raw)
			if err != nil {
				writeError(w, r, err)
				return
			}
			extras = append(extras, extra)
		}
		cmps, err := s.deps.Dashboard.CompareMany(r.Context(), id, extras)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, comparisonsResponse{Comparisons: cmps})
		return
	}
	extra, err := extraParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cmp, err := s.deps.Dashboard.Compare(r.Context(), id, extra)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleApplyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req paymentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loan, receipt, err := s.deps.Loans.ApplyPayment(r.Context(), id, req.Amount, s.dateOr(req.PaidAt))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResponse{Loan: loan, Receipt: receipt})
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payments, err := s.deps.Loans.ListPayments(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if payments == nil {
		payments = []core.PaymentReceipt{}
	}
	writeJSON(w, http.StatusOK, paymentsResponse{Payments: payments})
}

func (s *Server) handleMarkDefaulted(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := s.deps.Loans.MarkDefaulted(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := s.deps.Loans.RecalculateInstallment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}
