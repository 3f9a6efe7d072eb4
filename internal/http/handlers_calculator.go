package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"loanwise/internal/core"
)

const dateLayout = time.DateOnly

type emiRequest struct {
	Principal    decimal.Decimal `json:"principal" validate:"gt=0"`
	AnnualRate   decimal.Decimal `json:"annual_rate" validate:"gte=0,lte=100"`
	TenureMonths int             `json:"tenure_months" validate:"min=1,max=1200"`
}

type emiResponse struct {
	EMI          decimal.Decimal `json:"emi"`
	Principal    decimal.Decimal `json:"principal"`
	AnnualRate   decimal.Decimal `json:"annual_rate"`
	TenureMonths int             `json:"tenure_months"`
}

// TermsRequest is an ad-hoc loan snapshot for the calculator endpoints. It is
// exported so the validator can read the fields it promotes.
type TermsRequest struct {
	Balance      decimal.Decimal `json:"balance" validate:"gte=0"`
	AnnualRate   decimal.Decimal `json:"annual_rate" validate:"gte=0,lte=100"`
	Installment  decimal.Decimal `json:"installment" validate:"gt=0"`
	TenureMonths int             `json:"tenure_months" validate:"min=1,max=1200"`
	FirstDueDate string          `json:"first_due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (t TermsRequest) terms() core.Terms {
	terms := core.Terms{
		Balance:      t.Balance,
		AnnualRate:   t.AnnualRate,
		Installment:  t.Installment,
		TenureMonths: t.TenureMonths,
	}
	// The validator already checked the layout.
	if d, err := time.Parse(dateLayout, t.FirstDueDate); err == nil {
		terms.FirstDueDate = d
	}
	return terms
}

type scheduleRequest struct {
	TermsRequest
	ExtraPayment decimal.Decimal `json:"extra_payment" validate:"gte=0"`
}

type compareRequest struct {
	TermsRequest
	ExtraPayment  decimal.Decimal   `json:"extra_payment" validate:"gte=0"`
	ExtraPayments []decimal.Decimal `json:"extra_payments" validate:"max=20"`
}

type comparisonsResponse struct {
	Comparisons []core.RepaymentComparison `json:"comparisons"`
}

func (s *Server) handleCalculateEMI(w http.ResponseWriter, r *http.Request) {
	var req emiRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	emi, err := core.CalculateEMI(req.Principal, req.AnnualRate, req.TenureMonths)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emiResponse{
		EMI:          emi,
		Principal:    req.Principal,
		AnnualRate:   req.AnnualRate,
		TenureMonths: req.TenureMonths,
	})
}

func (s *Server) handleCalculateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := core.BuildSchedule(req.terms(), req.ExtraPayment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCalculateCompare answers with a single comparison, or with one per
// candidate when extra_payments is given.
func (s *Server) handleCalculateCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.ExtraPayments) > 0 {
		cmps, err := core.CompareExtraPayments(req.terms(), req.ExtraPayments)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, comparisonsResponse{Comparisons: cmps})
		return
	}
	cmp, err := core.CompareRepayment(req.terms(), req.ExtraPayment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
