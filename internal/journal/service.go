package journal

import (
	"context"
	"time"
)

// Repository defines data access for journal records.
type Repository interface {
	Insert(ctx context.Context, txn Transaction) (Transaction, error)
	GetByNumber(ctx context.Context, number string) (Transaction, error)
	ListForAccount(ctx context.Context, accountNumber string, limit, offset int) ([]Transaction, error)
	UpdateStatus(ctx context.Context, number string, status Status) error
}

// Service records and queries journal entries. Money-moving components
// mint records through New and persist them inside their own atomic
// unit; Record is for standalone annotations such as loan payments.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Record mints and persists a transaction in one step.
func (s *Service) Record(ctx context.Context, input RecordInput) (Transaction, error) {
	txn, err := New(input, s.now())
	if err != nil {
		return Transaction{}, err
	}
	return s.repo.Insert(ctx, txn)
}

// Get returns a transaction by its number.
func (s *Service) Get(ctx context.Context, number string) (Transaction, error) {
	return s.repo.GetByNumber(ctx, number)
}

// ListForAccount returns transactions touching the account, newest first.
func (s *Service) ListForAccount(ctx context.Context, accountNumber string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForAccount(ctx, accountNumber, limit, offset)
}

// UpdateStatus applies the single allowed status transition.
func (s *Service) UpdateStatus(ctx context.Context, number string, status Status) (Transaction, error) {
	txn, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return Transaction{}, err
	}
	if err := txn.Transition(status); err != nil {
		return Transaction{}, err
	}
	if err := s.repo.UpdateStatus(ctx, number, status); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}
