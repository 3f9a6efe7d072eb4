package services

import (
	"context"
	"fmt"
	"strings"

	"loanwise/internal/core"
	"loanwise/internal/log"
)

// Accepted credit score range.
const (
	MinCreditScore = 300
	MaxCreditScore = 850
)

type ProfileService struct {
	store  ProfileStore
	logger *log.Logger
}

func NewProfileService(store ProfileStore, logger *log.Logger) *ProfileService {
	return &ProfileService{store: store, logger: logger.WithComponent(log.ComponentProfile)}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (core.UserFinancialProfile, error) {
	return s.store.GetProfile(ctx, userID)
}

// Upsert validates and stores p.
func (s *ProfileService) Upsert(ctx context.Context, p core.UserFinancialProfile) (core.UserFinancialProfile, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return core.UserFinancialProfile{}, fmt.Errorf("%w: user id is required", core.ErrInvalidInput)
	}
	if p.MonthlyIncome.IsNegative() {
		return core.UserFinancialProfile{}, fmt.Errorf("%w: monthly income must not be negative", core.ErrInvalidInput)
	}
	if p.TotalAssets.IsNegative() {
		return core.UserFinancialProfile{}, fmt.Errorf("%w: total assets must not be negative", core.ErrInvalidInput)
	}
	if p.CreditScore != nil && (*p.CreditScore < MinCreditScore || *p.CreditScore > MaxCreditScore) {
		return core.UserFinancialProfile{}, fmt.Errorf("%w: credit score must be between %d and %d", core.ErrInvalidInput, MinCreditScore, MaxCreditScore)
	}
	p.MonthlyIncome = core.RoundCurrency(p.MonthlyIncome)
	p.TotalAssets = core.RoundCurrency(p.TotalAssets)

	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return core.UserFinancialProfile{}, fmt.Errorf("save profile: %w", err)
	}
	s.logger.InfoContext(ctx, "Financial profile updated", log.FieldUserID, p.UserID, log.FieldOperation, log.OpUpdate)
	return p, nil
}
