package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Default debt-to-income classification bounds, in percent.
const (
	DefaultHealthyDTIMax = 35
	DefaultCautionDTIMax = 43
)

const (
	HealthHealthy  HealthClass = "healthy"
	HealthCaution  HealthClass = "caution"
	HealthCritical HealthClass = "critical"
)

type (
	// HealthClass is the verdict on a debt-to-income ratio.
	HealthClass string

	// Thresholds are the inclusive upper DTI bounds of each class.
	Thresholds struct {
		HealthyMax decimal.Decimal
		CautionMax decimal.Decimal
	}

	// UserFinancialProfile is supplied by the profile store. CreditScore may
	// be missing.
	UserFinancialProfile struct {
		UserID        string          `json:"user_id"`
		MonthlyIncome decimal.Decimal `json:"monthly_income"`
		TotalAssets   decimal.Decimal `json:"total_assets"`
		CreditScore   *int            `json:"credit_score,omitempty"`
	}

	// DebtHealthProfile is the input of the evaluator.
	DebtHealthProfile struct {
		TotalDebt            decimal.Decimal `json:"total_debt"`
		TotalMonthlyPayments decimal.Decimal `json:"total_monthly_payments"`
		MonthlyIncome        decimal.Decimal `json:"monthly_income"`
		TotalAssets          decimal.Decimal `json:"total_assets"`
		CreditScore          *int            `json:"credit_score,omitempty"`
	}

	// DebtHealthResult carries the ratios and their classification.
	DebtHealthResult struct {
		DebtHealthProfile
		DTIRatio          decimal.Decimal `json:"dti_ratio"`
		DebtToAssetsRatio decimal.Decimal `json:"debt_to_assets_ratio"`
		Classification    HealthClass     `json:"classification"`
	}
)

// DefaultThresholds returns the 35/43 bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HealthyMax: decimal.NewFromInt(DefaultHealthyDTIMax),
		CautionMax: decimal.NewFromInt(DefaultCautionDTIMax),
	}
}

// Validate checks that both bounds are positive and ordered.
func (t Thresholds) Validate() error {
	if !t.HealthyMax.IsPositive() || !t.CautionMax.IsPositive() {
		return fmt.Errorf("%w: DTI thresholds must be positive", ErrInvalidInput)
	}
	if !t.HealthyMax.LessThan(t.CautionMax) {
		return fmt.Errorf("%w: healthy DTI bound %s must be below caution bound %s",
			ErrInvalidInput, t.HealthyMax, t.CautionMax)
	}
	return nil
}

// Classify maps a DTI percentage to its class.
func (t Thresholds) Classify(dti decimal.Decimal) HealthClass {
	switch {
	case dti.LessThanOrEqual(t.HealthyMax):
		return HealthHealthy
	case dti.LessThanOrEqual(t.CautionMax):
		return HealthCaution
	default:
		return HealthCritical
	}
}

// BuildDebtHealthProfile combines a portfolio summary with the user's profile.
func BuildDebtHealthProfile(s PortfolioSummary, p UserFinancialProfile) DebtHealthProfile {
	return DebtHealthProfile{
		TotalDebt:            s.TotalOutstanding,
		TotalMonthlyPayments: s.TotalMonthlyPayments,
		MonthlyIncome:        p.MonthlyIncome,
		TotalAssets:          p.TotalAssets,
		CreditScore:          p.CreditScore,
	}
}

// EvaluateDebtHealth computes the ratios of p.
//
// A non-positive income or asset figure yields a ratio of 0 rather than an
// error: an empty profile is a normal dashboard state. Negative debt or
// payment figures count as zero.
func EvaluateDebtHealth(p DebtHealthProfile, t Thresholds) DebtHealthResult {
	p.TotalDebt = nonNegative(p.TotalDebt)
	p.TotalMonthlyPayments = nonNegative(p.TotalMonthlyPayments)

	// Classified before rounding so 35.004 is not healthy.
	dti := ratioOf(p.TotalMonthlyPayments, p.MonthlyIncome)
	return DebtHealthResult{
		DebtHealthProfile: p,
		DTIRatio:          dti.Round(CurrencyPlaces),
		DebtToAssetsRatio: percentOf(p.TotalDebt, p.TotalAssets),
		Classification:    t.Classify(dti),
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
