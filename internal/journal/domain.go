// Package journal is the append-only record of money movement. It is
// the only component that mints Transaction values; once persisted a
// transaction is immutable except for the single allowed status
// transition out of PENDING.
package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridianbank/internal/shared"
)

// Type enumerates money-movement kinds.
type Type string

const (
	TypeDeposit    Type = "DEPOSIT"
	TypeWithdrawal Type = "WITHDRAWAL"
	TypeTransfer   Type = "TRANSFER"
	TypePayment    Type = "PAYMENT"
	TypeInterest   Type = "INTEREST"
	TypeFee        Type = "FEE"
)

// Status enumerates transaction states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Transaction model. SourceAccount/TargetAccount hold account numbers;
// an empty string means no account on that side.
type Transaction struct {
	ID            int64
	Number        string
	Type          Type
	Amount        decimal.Decimal
	SourceAccount string
	TargetAccount string
	Description   string
	Reference     string
	Status        Status
	CreatedAt     time.Time
}

// RecordInput describes a transaction to be minted.
type RecordInput struct {
	Type          Type
	Amount        decimal.Decimal
	SourceAccount string
	TargetAccount string
	Description   string
	Status        Status
}

// New mints a Transaction from input, assigning the transaction and
// reference numbers. It enforces the journal invariants: strictly
// positive amount, at least one account side, both sides only for
// TRANSFER and PAYMENT.
func New(input RecordInput, at time.Time) (Transaction, error) {
	if input.Amount.Sign() <= 0 {
		return Transaction{}, fmt.Errorf("%w: transaction amount must be positive", shared.ErrValidation)
	}
	if input.SourceAccount == "" && input.TargetAccount == "" {
		return Transaction{}, fmt.Errorf("%w: transaction requires a source or target account", shared.ErrValidation)
	}
	if input.SourceAccount != "" && input.TargetAccount != "" &&
		input.Type != TypeTransfer && input.Type != TypePayment {
		return Transaction{}, fmt.Errorf("%w: %s transaction cannot reference two accounts", shared.ErrValidation, input.Type)
	}
	status := input.Status
	if status == "" {
		status = StatusPending
	}
	return Transaction{
		Number:        TransactionNumber(),
		Type:          input.Type,
		Amount:        input.Amount,
		SourceAccount: input.SourceAccount,
		TargetAccount: input.TargetAccount,
		Description:   input.Description,
		Reference:     ReferenceNumber(),
		Status:        status,
		CreatedAt:     at,
	}, nil
}

// Transition moves the transaction out of PENDING. Terminal states are
// immutable.
func (t *Transaction) Transition(to Status) error {
	if t.Status != StatusPending {
		return fmt.Errorf("%w: transaction %s is %s", shared.ErrInvalidStateTransition, t.Number, t.Status)
	}
	switch to {
	case StatusCompleted, StatusFailed, StatusCancelled:
		t.Status = to
		return nil
	default:
		return fmt.Errorf("%w: cannot move transaction %s to %s", shared.ErrInvalidStateTransition, t.Number, to)
	}
}
