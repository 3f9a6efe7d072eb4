package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"loanwise/internal/core"
	"loanwise/internal/log"
	ports "loanwise/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultSchedulePrefix = "Schedule"
	portfolioSheet        = "Portfolio"
	sheetListTTL          = 10 * time.Minute
)

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	schedulePrefix string
	logger         *log.Logger
	now            func() time.Time

	// Titles of existing sheets, refreshed at most every sheetListTTL.
	mu            sync.Mutex
	sheetTitles   map[string]bool
	titlesExpires time.Time
}

var _ ports.Exporter = (*Client)(nil)

// Credentials selects the service account used to reach the Sheets API.
// JSON wins over File when both are set.
type Credentials struct {
	JSON string
	File string
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case strings.TrimSpace(c.File) != "":
		data, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// NewWithCredentials authenticates with a service account.
func NewWithCredentials(ctx context.Context, spreadsheetID, schedulePrefix string, creds Credentials, logger *log.Logger) (*Client, error) {
	data, err := creds.load()
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID, schedulePrefix, logger,
		goption.WithCredentialsJSON(data),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

// New creates a client with explicit API options.
func New(ctx context.Context, spreadsheetID, schedulePrefix string, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(schedulePrefix) == "" {
		schedulePrefix = defaultSchedulePrefix
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:            svc,
		spreadsheetID:  spreadsheetID,
		schedulePrefix: strings.TrimSpace(schedulePrefix),
		logger:         logger.WithComponent(log.ComponentSheets),
		now:            time.Now,
	}, nil
}

// ScheduleSheetName is the tab holding the schedule of loan.
func (c *Client) ScheduleSheetName(loan core.Loan) string {
	return fmt.Sprintf("%s %s", c.schedulePrefix, loan.ID)
}

// ExportSchedule rewrites the loan's schedule tab.
func (c *Client) ExportSchedule(ctx context.Context, loan core.Loan, res core.ScheduleResult) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := c.ScheduleSheetName(loan)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	// Clear first so a shorter schedule leaves no stale rows behind.
	clearRange := fmt.Sprintf("'%s'!A:F", sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		// The tab may have been removed by hand since the title list was read.
		c.invalidateSheetTitles()
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := ports.ScheduleRows(loan, res)
	ref := fmt.Sprintf("'%s'!A1:F%d", sheet, len(rows))
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, ref, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write schedule to %s: %w", sheet, err)
	}

	c.logger.InfoContext(ctx, "Schedule exported",
		log.FieldLoanID, loan.ID,
		log.FieldExportRef, ref,
		"periods", len(res.Entries))

	return ref, nil
}

// ExportPortfolio appends a snapshot row to the portfolio tab.
func (c *Client) ExportPortfolio(ctx context.Context, userID string, s core.PortfolioSummary, h core.DebtHealthResult) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	created, err := c.ensureSheetCreated(ctx, portfolioSheet)
	if err != nil {
		return "", err
	}

	rows := [][]any{ports.PortfolioRow(c.now(), userID, s, h)}
	if created {
		rows = append([][]any{ports.PortfolioHeader}, rows...)
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, portfolioSheet+"!A:O", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append portfolio row: %w", err)
	}

	ref := portfolioSheet
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Portfolio exported", log.FieldUserID, userID, log.FieldExportRef, ref)
	return ref, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	_, err := c.ensureSheetCreated(ctx, title)
	return err
}

// ensureSheetCreated adds the tab when missing and reports whether it did.
func (c *Client) ensureSheetCreated(ctx context.Context, title string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sheetTitles == nil || c.now().After(c.titlesExpires) {
		ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
		if err != nil {
			return false, fmt.Errorf("list sheets: %w", err)
		}
		c.sheetTitles = make(map[string]bool, len(ss.Sheets))
		for _, s := range ss.Sheets {
			if s.Properties != nil {
				c.sheetTitles[s.Properties.Title] = true
			}
		}
		c.titlesExpires = c.now().Add(sheetListTTL)
	}
	if c.sheetTitles[title] {
		return false, nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("add sheet %q: %w", title, err)
	}
	c.sheetTitles[title] = true
	c.logger.InfoContext(ctx, "Sheet created", "title", title)
	return true, nil
}

// invalidateSheetTitles forces the next export to re-read the tab list.
func (c *Client) invalidateSheetTitles() {
	c.mu.Lock()
	c.sheetTitles = nil
	c.mu.Unlock()
}
