package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loanwise/internal/core"
	"loanwise/internal/sheets"

	"github.com/google/uuid"
)

// Snapshot is one recorded portfolio export.
type Snapshot struct {
	UserID  string
	At      time.Time
	Summary core.PortfolioSummary
	Health  core.DebtHealthResult
}

// Store keeps exported schedules and portfolio snapshots in process. It is the
// default exporter when no spreadsheet is configured.
type Store struct {
	mu        sync.Mutex
	schedules map[uuid.UUID][][]any
	snapshots []Snapshot
	now       func() time.Time
}

var _ sheets.Exporter = (*Store)(nil)

func New() *Store {
	return &Store{schedules: make(map[uuid.UUID][][]any), now: time.Now}
}

// ExportSchedule replaces the rows held for the loan.
func (s *Store) ExportSchedule(_ context.Context, loan core.Loan, res core.ScheduleResult) (string, error) {
	rows := sheets.ScheduleRows(loan, res)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[loan.ID] = rows
	return fmt.Sprintf("mem:schedule:%s:%d", loan.ID, len(rows)), nil
}

// ExportPortfolio appends a snapshot.
func (s *Store) ExportPortfolio(_ context.Context, userID string, summary core.PortfolioSummary, health core.DebtHealthResult) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", core.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, Snapshot{UserID: userID, At: s.now(), Summary: summary, Health: health})
	return fmt.Sprintf("mem:portfolio:%d", len(s.snapshots)), nil
}

// Schedule returns a copy of the rows last exported for id.
func (s *Store) Schedule(id uuid.UUID) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.schedules[id]
	if !ok {
		return nil, false
	}
	return append([][]any(nil), rows...), true
}

// Snapshots returns the recorded portfolio exports of userID, oldest first.
func (s *Store) Snapshots(userID string) []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Snapshot
	for _, snap := range s.snapshots {
		if snap.UserID == userID {
			out = append(out, snap)
		}
	}
	return out
}
