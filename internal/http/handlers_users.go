package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"loanwise/internal/core"
)

type profileRequest struct {
	MonthlyIncome decimal.Decimal `json:"monthly_income" validate:"gte=0"`
	TotalAssets   decimal.Decimal `json:"total_assets" validate:"gte=0"`
	CreditScore   *int            `json:"credit_score" validate:"omitempty,min=300,max=850"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Dashboard.Portfolio(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDebtHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Dashboard.DebtHealth(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.deps.Profiles.Get(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := s.deps.Profiles.Upsert(r.Context(), core.UserFinancialProfile{
		UserID:        r.PathValue("userID"),
		MonthlyIncome: req.MonthlyIncome,
		TotalAssets:   req.TotalAssets,
		CreditScore:   req.CreditScore,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
