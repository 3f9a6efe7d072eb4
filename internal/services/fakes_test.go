package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"loanwise/internal/amqp"
	"loanwise/internal/core"

	"github.com/google/uuid"
)

// fakeStore mimics the versioned writes of storage.SQLiteRepository.
type fakeStore struct {
	mu       sync.Mutex
	loans    map[uuid.UUID]core.Loan
	payments map[uuid.UUID][]core.PaymentReceipt
	profiles map[string]core.UserFinancialProfile

	// conflicts makes the next N writes lose a race against another writer.
	conflicts  int
	writes     int
	listCalls  int
	profileErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		loans:    make(map[uuid.UUID]core.Loan),
		payments: make(map[uuid.UUID][]core.PaymentReceipt),
		profiles: make(map[string]core.UserFinancialProfile),
	}
}

func (f *fakeStore) CreateLoan(_ context.Context, l core.Loan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loans[l.ID] = l
	return nil
}

func (f *fakeStore) GetLoan(_ context.Context, id uuid.UUID) (core.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.loans[id]
	if !ok {
		return core.Loan{}, fmt.Errorf("%w: %s", core.ErrLoanNotFound, id)
	}
	return l, nil
}

func (f *fakeStore) ListLoans(_ context.Context, userID string) ([]core.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []core.Loan
	for _, l := range f.loans {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeStore) PortfolioStamp(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count, versions int64
	for _, l := range f.loans {
		if l.UserID == userID {
			count++
			versions += l.Version
		}
	}
	return fmt.Sprintf("%d.%d", count, versions), nil
}

func (f *fakeStore) write(l core.Loan) (core.Loan, error) {
	f.writes++
	current, ok := f.loans[l.ID]
	if !ok {
		return core.Loan{}, fmt.Errorf("%w: %s", core.ErrLoanNotFound, l.ID)
	}
	if f.conflicts > 0 {
		f.conflicts--
		current.Version++
		f.loans[l.ID] = current
	}
	if current.Version != l.Version {
		return core.Loan{}, fmt.Errorf("%w: %s at version %d", core.ErrVersionConflict, l.ID, l.Version)
	}
	l.Version++
	f.loans[l.ID] = l
	return l, nil
}

func (f *fakeStore) UpdateLoan(_ context.Context, l core.Loan) (core.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(l)
}

func (f *fakeStore) SavePayment(_ context.Context, l core.Loan, r core.PaymentReceipt) (core.Loan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	saved, err := f.write(l)
	if err != nil {
		return core.Loan{}, err
	}
	f.payments[l.ID] = append(f.payments[l.ID], r)
	return saved, nil
}

func (f *fakeStore) ListPayments(_ context.Context, loanID uuid.UUID) ([]core.PaymentReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.PaymentReceipt(nil), f.payments[loanID]...), nil
}

func (f *fakeStore) GetProfile(_ context.Context, userID string) (core.UserFinancialProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return core.UserFinancialProfile{}, f.profileErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		return core.UserFinancialProfile{}, fmt.Errorf("%w: %s", core.ErrProfileNotFound, userID)
	}
	return p, nil
}

func (f *fakeStore) UpsertProfile(_ context.Context, p core.UserFinancialProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = p
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LoanEvent
	err    error
}

func (p *fakePublisher) PublishLoanEvent(_ context.Context, ev *amqp.LoanEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var errBrokerDown = errors.New("broker down")
