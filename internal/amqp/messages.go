package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"loanwise/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a loan lifecycle change.
type EventType string

const (
	EventLoanCreated    EventType = "loan.created"
	EventPaymentApplied EventType = "loan.payment_applied"
	EventLoanPaidOff    EventType = "loan.paid_off"
	EventLoanDefaulted  EventType = "loan.defaulted"
	EventLoanRecalc     EventType = "loan.installment_recalculated"
)

func (t EventType) valid() bool {
	switch t {
	case EventLoanCreated, EventPaymentApplied, EventLoanPaidOff, EventLoanDefaulted, EventLoanRecalc:
		return true
	}
	return false
}

// LoanEvent announces that a loan changed. It carries the version written so
// consumers can skip work for snapshots they have already seen; the full
// record is always reloaded from the database.
type LoanEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	LoanID    uuid.UUID       `json:"loan_id"`
	UserID    string          `json:"user_id"`
	Version   int64           `json:"version"`
	Status    core.Status     `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewLoanEvent describes the state of l after a change of kind t.
func NewLoanEvent(t EventType, l core.Loan) *LoanEvent {
	return &LoanEvent{
		ID:        uuid.New(),
		Type:      t,
		LoanID:    l.ID,
		UserID:    l.UserID,
		Version:   l.Version,
		Status:    l.Status,
		Balance:   l.OutstandingBalance,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LoanEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LoanEventFromJSON decodes and checks a message body.
func LoanEventFromJSON(data []byte) (*LoanEvent, error) {
	var msg LoanEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.LoanID == uuid.Nil {
		return nil, fmt.Errorf("loan event %s has no loan id", msg.ID)
	}
	if !msg.Type.valid() {
		return nil, fmt.Errorf("loan event %s has unknown type %q", msg.ID, msg.Type)
	}
	return &msg, nil
}
