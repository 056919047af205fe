// Package notify is the best-effort side channel for user alerts. Sinks
// are invoked only after an atomic unit commits; a sink failure never
// rolls back a completed money movement, so the interface returns
// nothing and implementations log their own errors.
package notify

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridianbank/internal/journal"
)

// Sink receives fire-and-forget notifications.
type Sink interface {
	TransactionCompleted(ctx context.Context, userID int64, txn journal.Transaction, message string)
	LowBalance(ctx context.Context, userID int64, accountNumber string, balance decimal.Decimal)
	LoanDecision(ctx context.Context, userID int64, loanNumber, message string)
}

// Noop discards every notification.
type Noop struct{}

func (Noop) TransactionCompleted(context.Context, int64, journal.Transaction, string) {}
func (Noop) LowBalance(context.Context, int64, string, decimal.Decimal)               {}
func (Noop) LoanDecision(context.Context, int64, string, string)                      {}
