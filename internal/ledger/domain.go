// Package ledger owns the balance-mutation rules for accounts: deposit,
// withdrawal, transfer, freezing, and interest accrual. Every mutation
// and its journal entry commit as one unit or not at all.
package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates account products.
type AccountType string

const (
	TypeSavings      AccountType = "SAVINGS"
	TypeChecking     AccountType = "CHECKING"
	TypeFixedDeposit AccountType = "FIXED_DEPOSIT"
	TypeLoan         AccountType = "LOAN"
)

// Account model. Accounts are never deleted, only deactivated.
type Account struct {
	ID             int64
	Number         string
	Type           AccountType
	Name           string
	Balance        decimal.Decimal
	MinimumBalance decimal.Decimal
	InterestRate   decimal.Decimal // annual, percent
	Active         bool
	OwnerID        int64
	JointHolderIDs []int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HeldBy reports whether the user owns or jointly holds the account.
func (a *Account) HeldBy(userID int64) bool {
	if a.OwnerID == userID {
		return true
	}
	for _, id := range a.JointHolderIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// typeDefaults carries per-product floor and rate applied at opening.
type typeDefaults struct {
	minimumBalance decimal.Decimal
	interestRate   decimal.Decimal
}

var accountDefaults = map[AccountType]typeDefaults{
	TypeSavings:      {minimumBalance: decimal.New(10000, -2), interestRate: decimal.New(25, -1)}, // 100.00 floor, 2.5%
	TypeChecking:     {minimumBalance: decimal.New(5000, -2), interestRate: decimal.Zero},         // 50.00 floor
	TypeFixedDeposit: {minimumBalance: decimal.Zero, interestRate: decimal.New(55, -1)},           // 5.5%
	TypeLoan:         {minimumBalance: decimal.Zero, interestRate: decimal.Zero},
}

// NewAccountNumber returns a fresh 10-digit account number.
func NewAccountNumber() string {
	id := uuid.New()
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteByte('0' + id[i]%10)
	}
	return b.String()
}
