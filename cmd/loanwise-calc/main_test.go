package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"loanwise/internal/core"
)

func TestRun_Table(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-principal", "100000", "-rate", "12", "-months", "12", "-extra", "1000"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"8884.88", "Paid off in:", "11 months", "Time saved:"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRun_JSON(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-principal", "100000", "-rate", "12", "-months", "12", "-json"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	var rep report
	if err := json.Unmarshal(out.Bytes(), &rep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rep.Schedule.PayoffMonths != 12 {
		t.Errorf("payoff months = %d, want 12", rep.Schedule.PayoffMonths)
	}
	if rep.Comparison != nil {
		t.Error("comparison present without -extra")
	}
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing principal", []string{"-months", "12"}, core.ErrInvalidAmount},
		{"negative rate", []string{"-principal", "1000", "-rate", "-1", "-months", "12"}, core.ErrInvalidInput},
		{"zero months", []string{"-principal", "1000", "-rate", "5"}, core.ErrInvalidInput},
		{"bad extra", []string{"-principal", "1000", "-months", "12", "-extra", "abc"}, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := run(tt.args, &out); !errors.Is(err, tt.want) {
				t.Errorf("run() error = %v, want %v", err, tt.want)
			}
		})
	}
}
