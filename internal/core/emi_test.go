package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateEMI(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		months    int
		want      string
	}{
		{"zero rate worked example", "1200000", "0", 24, "50000"},
		{"zero rate rounds to minor unit", "1000", "0", 3, "333.33"},
		{"one percent monthly", "100000", "12", 12, "8884.88"},
		{"ten year loan", "1000000", "10", 120, "13215.07"},
		{"single period", "1000", "12", 1, "1010"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateEMI(d(tt.principal), d(tt.rate), tt.months)
			if err != nil {
				t.Fatalf("CalculateEMI() error = %v", err)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("CalculateEMI() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCalculateEMI_ZeroRateIsPrincipalOverTenure(t *testing.T) {
	for _, p := range []string{"1", "99.99", "1200000", "4200000.55"} {
		for _, n := range []int{1, 7, 12, 24, 360} {
			got, err := CalculateEMI(d(p), decimal.Zero, n)
			if err != nil {
				t.Fatalf("CalculateEMI(%s, 0, %d) error = %v", p, n, err)
			}
			want := d(p).Div(decimal.NewFromInt(int64(n))).Round(2)
			if !got.Equal(want) {
				t.Errorf("CalculateEMI(%s, 0, %d) = %s, want %s", p, n, got, want)
			}
		}
	}
}

func TestCalculateEMI_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		months    int
	}{
		{"zero principal", "0", "5", 12},
		{"negative principal", "-100", "5", 12},
		{"zero tenure", "1000", "5", 0},
		{"negative tenure", "1000", "5", -3},
		{"negative rate", "1000", "-0.5", 12},
		{"tenure beyond schedule cap", "1000", "5", MaxSchedulePeriods + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalculateEMI(d(tt.principal), d(tt.rate), tt.months)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCalculateEMI_Overflow(t *testing.T) {
	// 1200% a year is 100% a month; 2^2000 does not fit in a float64.
	_, err := CalculateEMI(d("1000"), d("1200"), 2000)
	if !errors.Is(err, ErrNumericOverflow) {
		t.Fatalf("expected ErrNumericOverflow, got %v", err)
	}
}

func TestCalculateEMI_LargeButFiniteGrowth(t *testing.T) {
	// 2^600 is finite: the installment tends to principal * i.
	got, err := CalculateEMI(d("1000"), d("1200"), 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d("1000")) {
		t.Fatalf("CalculateEMI() = %s, want 1000", got)
	}
}

func TestCalculateEMI_LargePrincipalRoundsExactly(t *testing.T) {
	// 1e12 at 12% over 12 months is 88,848,788,678.3417... per month.
	got, err := CalculateEMI(d("1000000000000"), d("12"), 12)
	if err != nil {
		t.Fatalf("CalculateEMI() error = %v", err)
	}
	if !got.Equal(d("88848788678.34")) {
		t.Errorf("CalculateEMI() = %s, want 88848788678.34", got)
	}
}

func TestAccumulationFactor(t *testing.T) {
	tests := []struct {
		rate   string
		months int
		want   string
	}{
		{"0", 12, "12"},
		{"0.01", 2, "2.01"},
		{"0.1", 3, "3.31"},
	}
	for _, tt := range tests {
		if got := accumulationFactor(d(tt.rate), tt.months); !got.Equal(d(tt.want)) {
			t.Errorf("accumulationFactor(%s, %d) = %s, want %s", tt.rate, tt.months, got, tt.want)
		}
	}
}
