package shared

import "errors"

var (
	// ErrValidation indicates a malformed or out-of-range input such as a
	// non-positive amount, an invalid term, or a self-transfer.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unresolved account, loan, or transaction number.
	ErrNotFound = errors.New("not found")
	// ErrInactiveAccount indicates an operation against a frozen account.
	ErrInactiveAccount = errors.New("account is inactive")
	// ErrBelowMinimumBalance indicates a debit that would breach the account floor.
	ErrBelowMinimumBalance = errors.New("balance would fall below minimum")
	// ErrInsufficientFunds indicates a debit exceeding the balance on an
	// account with no minimum-balance floor.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidStateTransition indicates a loan status misuse.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrOwnershipMismatch indicates the account does not belong to the loan holder.
	ErrOwnershipMismatch = errors.New("account does not belong to holder")
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicate indicates a uniqueness conflict on insert.
	ErrDuplicate = errors.New("duplicate entry")
)
