//go:build integration

package google

import (
	"context"
	"os"
	"strings"
	"testing"

	"loanwise/internal/log"
)

// Integration tests require a real spreadsheet shared with a service account.
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ExportLoan(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	creds := Credentials{
		JSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		File: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if creds.JSON == "" && creds.File == "" {
		t.Skip("service account not configured, skipping integration test")
	}

	ctx := context.Background()
	client, err := NewWithCredentials(ctx, spreadsheetID, "Integration", creds, log.Discard())
	if err != nil {
		t.Fatalf("NewWithCredentials() error = %v", err)
	}

	loan, res := testLoan(t)
	ref, err := client.ExportSchedule(ctx, loan, res)
	if err != nil {
		t.Fatalf("ExportSchedule() error = %v", err)
	}
	if !strings.Contains(ref, loan.ID.String()) {
		t.Errorf("ref %q does not name the loan sheet", ref)
	}
}
