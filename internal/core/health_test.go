package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEvaluateDebtHealth(t *testing.T) {
	tests := []struct {
		name        string
		profile     DebtHealthProfile
		wantDTI     string
		wantAssets  string
		wantVerdict HealthClass
	}{
		{
			name:        "healthy",
			profile:     DebtHealthProfile{TotalDebt: d("100000"), TotalMonthlyPayments: d("3000"), MonthlyIncome: d("10000"), TotalAssets: d("400000")},
			wantDTI:     "30",
			wantAssets:  "25",
			wantVerdict: HealthHealthy,
		},
		{
			name:        "exactly at healthy bound",
			profile:     DebtHealthProfile{TotalMonthlyPayments: d("3500"), MonthlyIncome: d("10000")},
			wantDTI:     "35",
			wantAssets:  "0",
			wantVerdict: HealthHealthy,
		},
		{
			name:        "caution",
			profile:     DebtHealthProfile{TotalMonthlyPayments: d("3501"), MonthlyIncome: d("10000")},
			wantDTI:     "35.01",
			wantAssets:  "0",
			wantVerdict: HealthCaution,
		},
		{
			name:        "just above healthy bound rounds down for display",
			profile:     DebtHealthProfile{TotalMonthlyPayments: d("3500.4"), MonthlyIncome: d("10000")},
			wantDTI:     "35",
			wantAssets:  "0",
			wantVerdict: HealthCaution,
		},
		{
			name:        "exactly at caution bound",
			profile:     DebtHealthProfile{TotalMonthlyPayments: d("4300"), MonthlyIncome: d("10000")},
			wantDTI:     "43",
			wantAssets:  "0",
			wantVerdict: HealthCaution,
		},
		{
			name:        "critical",
			profile:     DebtHealthProfile{TotalDebt: d("900"), TotalMonthlyPayments: d("6000"), MonthlyIncome: d("10000"), TotalAssets: d("300")},
			wantDTI:     "60",
			wantAssets:  "300",
			wantVerdict: HealthCritical,
		},
		{
			name:        "zero income",
			profile:     DebtHealthProfile{TotalDebt: d("5000"), TotalMonthlyPayments: d("500")},
			wantDTI:     "0",
			wantAssets:  "0",
			wantVerdict: HealthHealthy,
		},
		{
			name:        "negative figures count as zero",
			profile:     DebtHealthProfile{TotalDebt: d("-10"), TotalMonthlyPayments: d("-10"), MonthlyIncome: d("1000"), TotalAssets: d("1000")},
			wantDTI:     "0",
			wantAssets:  "0",
			wantVerdict: HealthHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateDebtHealth(tt.profile, DefaultThresholds())
			if !got.DTIRatio.Equal(d(tt.wantDTI)) {
				t.Errorf("DTIRatio = %s, want %s", got.DTIRatio, tt.wantDTI)
			}
			if !got.DebtToAssetsRatio.Equal(d(tt.wantAssets)) {
				t.Errorf("DebtToAssetsRatio = %s, want %s", got.DebtToAssetsRatio, tt.wantAssets)
			}
			if got.Classification != tt.wantVerdict {
				t.Errorf("Classification = %s, want %s", got.Classification, tt.wantVerdict)
			}
		})
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}
	bad := []Thresholds{
		{HealthyMax: d("43"), CautionMax: d("35")},
		{HealthyMax: d("40"), CautionMax: d("40")},
		{HealthyMax: decimal.Zero, CautionMax: d("40")},
	}
	for _, th := range bad {
		if err := th.Validate(); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Validate(%v/%v) = %v, want ErrInvalidInput", th.HealthyMax, th.CautionMax, err)
		}
	}
}

func TestThresholds_Custom(t *testing.T) {
	th := Thresholds{HealthyMax: d("20"), CautionMax: d("30")}
	if got := th.Classify(d("25")); got != HealthCaution {
		t.Errorf("Classify(25) = %s, want caution", got)
	}
	if got := th.Classify(d("30.01")); got != HealthCritical {
		t.Errorf("Classify(30.01) = %s, want critical", got)
	}
}

func TestBuildDebtHealthProfile(t *testing.T) {
	score := 720
	s := PortfolioSummary{TotalOutstanding: d("4650000"), TotalMonthlyPayments: d("47562.85")}
	p := BuildDebtHealthProfile(s, UserFinancialProfile{UserID: "u1", MonthlyIncome: d("150000"), TotalAssets: d("9300000"), CreditScore: &score})

	res := EvaluateDebtHealth(p, DefaultThresholds())
	if !res.DTIRatio.Equal(d("31.71")) {
		t.Errorf("DTIRatio = %s, want 31.71", res.DTIRatio)
	}
	if !res.DebtToAssetsRatio.Equal(d("50")) {
		t.Errorf("DebtToAssetsRatio = %s, want 50", res.DebtToAssetsRatio)
	}
	if res.CreditScore == nil || *res.CreditScore != 720 {
		t.Errorf("credit score not carried through")
	}
}
