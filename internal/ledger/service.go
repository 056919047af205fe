package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridianbank/meridianbank/internal/journal"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/notify"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// Repository defines data access for accounts.
type Repository interface {
	GetByNumber(ctx context.Context, number string) (Account, error)
	ListByHolder(ctx context.Context, userID int64) ([]Account, error)
	ListActiveByType(ctx context.Context, accountType AccountType) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within one atomic unit. A
// balance mutation and its journal entry always share a unit.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, number string) (Account, error)
	InsertAccount(ctx context.Context, account Account) (Account, error)
	UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal, at time.Time) error
	SetActive(ctx context.Context, accountID int64, active bool, at time.Time) error
	AddJointHolder(ctx context.Context, accountID, userID int64) error
	InsertTransaction(ctx context.Context, txn journal.Transaction) (journal.Transaction, error)
}

// Service enforces the balance-mutation rules.
type Service struct {
	repo   Repository
	sink   notify.Sink
	logger *slog.Logger
	locks  *accountLocks
	now    func() time.Time
}

// NewService builds a Service instance. A nil sink disables notifications.
func NewService(repo Repository, sink notify.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sink: sink, logger: logger, locks: newAccountLocks(), now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OpenAccountInput describes an account-opening request.
type OpenAccountInput struct {
	Type           AccountType
	Name           string
	InitialDeposit decimal.Decimal
	JointHolderIDs []int64
}

// OpenAccount creates an account with product defaults. The initial
// deposit must already satisfy the product's minimum-balance floor.
func (s *Service) OpenAccount(ctx context.Context, owner shared.Identity, input OpenAccountInput) (Account, error) {
	defaults, ok := accountDefaults[input.Type]
	if !ok {
		return Account{}, fmt.Errorf("%w: unknown account type %q", shared.ErrValidation, input.Type)
	}
	if owner.Anonymous() {
		return Account{}, fmt.Errorf("%w: account owner required", shared.ErrValidation)
	}
	if input.InitialDeposit.Sign() < 0 {
		return Account{}, fmt.Errorf("%w: initial deposit cannot be negative", shared.ErrValidation)
	}
	if input.InitialDeposit.LessThan(defaults.minimumBalance) {
		return Account{}, fmt.Errorf("%w: initial deposit %s is under the %s floor %s",
			shared.ErrBelowMinimumBalance, input.InitialDeposit, input.Type, defaults.minimumBalance)
	}

	now := s.now()
	account := Account{
		Number:         NewAccountNumber(),
		Type:           input.Type,
		Name:           input.Name,
		Balance:        money.RoundMinor(input.InitialDeposit),
		MinimumBalance: defaults.minimumBalance,
		InterestRate:   defaults.interestRate,
		Active:         true,
		OwnerID:        owner.UserID,
		JointHolderIDs: input.JointHolderIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var opened Account
	var txn journal.Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertAccount(ctx, account)
		if err != nil {
			return err
		}
		opened = inserted
		if input.InitialDeposit.Sign() > 0 {
			entry, err := journal.New(journal.RecordInput{
				Type:          journal.TypeDeposit,
				Amount:        opened.Balance,
				TargetAccount: opened.Number,
				Description:   "Initial deposit",
				Status:        journal.StatusCompleted,
			}, now)
			if err != nil {
				return err
			}
			txn, err = tx.InsertTransaction(ctx, entry)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	if txn.Number != "" {
		s.sink.TransactionCompleted(ctx, opened.OwnerID, txn,
			fmt.Sprintf("Account %s opened with initial deposit of $%s", opened.Number, opened.Balance.StringFixed(money.MinorScale)))
	}
	return opened, nil
}

// Deposit credits the account and records a COMPLETED DEPOSIT.
func (s *Service) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (journal.Transaction, error) {
	return s.DepositTx(ctx, accountNumber, amount, nil)
}

// DepositTx credits the account, records a COMPLETED DEPOSIT and runs
// link inside the same atomic unit. The context handed to link carries
// the unit, so repository calls made from link join it. A link error
// rolls back the credit together with its journal entry.
func (s *Service) DepositTx(ctx context.Context, accountNumber string, amount decimal.Decimal, link func(context.Context) error) (journal.Transaction, error) {
	if !money.IsPositive(amount) {
		return journal.Transaction{}, fmt.Errorf("%w: deposit amount must be positive", shared.ErrValidation)
	}
	amount = money.RoundMinor(amount)

	release := s.locks.acquire(accountNumber)
	defer release()

	var account Account
	var txn journal.Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccountForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}
		if !account.Active {
			return fmt.Errorf("%w: cannot deposit to account %s", shared.ErrInactiveAccount, accountNumber)
		}
		account.Balance = account.Balance.Add(amount)
		if err := tx.UpdateBalance(ctx, account.ID, account.Balance, s.now()); err != nil {
			return err
		}
		entry, err := journal.New(journal.RecordInput{
			Type:          journal.TypeDeposit,
			Amount:        amount,
			TargetAccount: accountNumber,
			Description:   "Deposit to account",
			Status:        journal.StatusCompleted,
		}, s.now())
		if err != nil {
			return err
		}
		txn, err = tx.InsertTransaction(ctx, entry)
		if err != nil {
			return err
		}
		if link != nil {
			return link(ctx)
		}
		return nil
	})
	if err != nil {
		return journal.Transaction{}, err
	}
	s.sink.TransactionCompleted(ctx, account.OwnerID, txn,
		fmt.Sprintf("Deposit of $%s to account %s", amount.StringFixed(money.MinorScale), accountNumber))
	return txn, nil
}

// Withdraw debits the account and records a COMPLETED WITHDRAWAL. The
// resulting balance may not fall below the account's floor.
func (s *Service) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (journal.Transaction, error) {
	return s.WithdrawTx(ctx, accountNumber, amount, nil)
}

// WithdrawTx debits the account, records a COMPLETED WITHDRAWAL and
// runs link inside the same atomic unit, mirroring DepositTx.
func (s *Service) WithdrawTx(ctx context.Context, accountNumber string, amount decimal.Decimal, link func(context.Context) error) (journal.Transaction, error) {
	if !money.IsPositive(amount) {
		return journal.Transaction{}, fmt.Errorf("%w: withdrawal amount must be positive", shared.ErrValidation)
	}
	amount = money.RoundMinor(amount)

	release := s.locks.acquire(accountNumber)
	defer release()

	var account Account
	var txn journal.Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccountForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}
		if !account.Active {
			return fmt.Errorf("%w: cannot withdraw from account %s", shared.ErrInactiveAccount, accountNumber)
		}
		if err := checkFloor(&account, amount); err != nil {
			return err
		}
		account.Balance = account.Balance.Sub(amount)
		if err := tx.UpdateBalance(ctx, account.ID, account.Balance, s.now()); err != nil {
			return err
		}
		entry, err := journal.New(journal.RecordInput{
			Type:          journal.TypeWithdrawal,
			Amount:        amount,
			SourceAccount: accountNumber,
			Description:   "Withdrawal from account",
			Status:        journal.StatusCompleted,
		}, s.now())
		if err != nil {
			return err
		}
		txn, err = tx.InsertTransaction(ctx, entry)
		if err != nil {
			return err
		}
		if link != nil {
			return link(ctx)
		}
		return nil
	})
	if err != nil {
		return journal.Transaction{}, err
	}
	s.sink.TransactionCompleted(ctx, account.OwnerID, txn,
		fmt.Sprintf("Withdrawal of $%s from account %s", amount.StringFixed(money.MinorScale), accountNumber))
	s.maybeWarnLowBalance(ctx, account)
	return txn, nil
}

// Transfer debits the source and credits the target as one indivisible
// unit and records exactly one COMPLETED TRANSFER referencing both.
func (s *Service) Transfer(ctx context.Context, fromNumber, toNumber string, amount decimal.Decimal) (journal.Transaction, error) {
	if !money.IsPositive(amount) {
		return journal.Transaction{}, fmt.Errorf("%w: transfer amount must be positive", shared.ErrValidation)
	}
	if fromNumber == toNumber {
		return journal.Transaction{}, fmt.Errorf("%w: cannot transfer to the same account", shared.ErrValidation)
	}
	amount = money.RoundMinor(amount)

	release := s.locks.acquire(fromNumber, toNumber)
	defer release()

	var source Account
	var txn journal.Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Row locks in ascending number order, matching the mutex order.
		accounts := make(map[string]Account, 2)
		for _, number := range canonicalOrder(fromNumber, toNumber) {
			account, err := tx.GetAccountForUpdate(ctx, number)
			if err != nil {
				return err
			}
			accounts[number] = account
		}
		from, to := accounts[fromNumber], accounts[toNumber]
		if !from.Active {
			return fmt.Errorf("%w: source account %s", shared.ErrInactiveAccount, fromNumber)
		}
		if !to.Active {
			return fmt.Errorf("%w: target account %s", shared.ErrInactiveAccount, toNumber)
		}
		if err := checkFloor(&from, amount); err != nil {
			return err
		}
		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)
		now := s.now()
		if err := tx.UpdateBalance(ctx, from.ID, from.Balance, now); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, to.ID, to.Balance, now); err != nil {
			return err
		}
		entry, err := journal.New(journal.RecordInput{
			Type:          journal.TypeTransfer,
			Amount:        amount,
			SourceAccount: fromNumber,
			TargetAccount: toNumber,
			Description:   "Transfer between accounts",
			Status:        journal.StatusCompleted,
		}, now)
		if err != nil {
			return err
		}
		txn, err = tx.InsertTransaction(ctx, entry)
		if err != nil {
			return err
		}
		source = from
		return nil
	})
	if err != nil {
		return journal.Transaction{}, err
	}
	s.sink.TransactionCompleted(ctx, source.OwnerID, txn,
		fmt.Sprintf("Transfer of $%s from account %s to account %s", amount.StringFixed(money.MinorScale), fromNumber, toNumber))
	s.maybeWarnLowBalance(ctx, source)
	return txn, nil
}

// SetAccountStatus toggles the active flag. No balance effect.
func (s *Service) SetAccountStatus(ctx context.Context, accountNumber string, active bool) error {
	release := s.locks.acquire(accountNumber)
	defer release()

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}
		if account.Active == active {
			return nil
		}
		return tx.SetActive(ctx, account.ID, active, s.now())
	})
}

// AddJointHolder registers an additional holder on the account.
func (s *Service) AddJointHolder(ctx context.Context, accountNumber string, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("%w: joint holder required", shared.ErrValidation)
	}
	release := s.locks.acquire(accountNumber)
	defer release()

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}
		if account.HeldBy(userID) {
			return fmt.Errorf("%w: user %d already holds account %s", shared.ErrValidation, userID, accountNumber)
		}
		return tx.AddJointHolder(ctx, account.ID, userID)
	})
}

// accrualConcurrency bounds the parallelism of an interest run.
const accrualConcurrency = 8

// AccrualResult summarises one ApplyInterest run.
type AccrualResult struct {
	AccountsSeen     int
	AccountsCredited int
	TotalCredited    decimal.Decimal
	Failed           int
}

// ApplyInterest credits one month of interest to every active SAVINGS
// account. Each account's credit and journal entry form their own
// atomic unit; a failure on one account does not block the rest.
func (s *Service) ApplyInterest(ctx context.Context) (AccrualResult, error) {
	accounts, err := s.repo.ListActiveByType(ctx, TypeSavings)
	if err != nil {
		return AccrualResult{}, err
	}

	var mu sync.Mutex
	result := AccrualResult{AccountsSeen: len(accounts), TotalCredited: decimal.Zero}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accrualConcurrency)
	for _, candidate := range accounts {
		number := candidate.Number
		g.Go(func() error {
			credited, err := s.creditInterest(gctx, number)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				s.logger.Error("interest accrual failed",
					slog.String("account", number), slog.Any("error", err))
				return nil
			}
			if credited.Sign() > 0 {
				result.AccountsCredited++
				result.TotalCredited = result.TotalCredited.Add(credited)
			}
			return nil
		})
	}
	_ = g.Wait()
	return result, nil
}

func (s *Service) creditInterest(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	release := s.locks.acquire(accountNumber)
	defer release()

	var account Account
	var txn journal.Transaction
	var interest decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccountForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}
		if !account.Active || account.Type != TypeSavings {
			return nil
		}
		interest = money.MonthlyInterest(account.Balance, account.InterestRate)
		if interest.Sign() <= 0 {
			return nil
		}
		account.Balance = account.Balance.Add(interest)
		if err := tx.UpdateBalance(ctx, account.ID, account.Balance, s.now()); err != nil {
			return err
		}
		entry, err := journal.New(journal.RecordInput{
			Type:          journal.TypeInterest,
			Amount:        interest,
			TargetAccount: accountNumber,
			Description:   "Monthly interest",
			Status:        journal.StatusCompleted,
		}, s.now())
		if err != nil {
			return err
		}
		txn, err = tx.InsertTransaction(ctx, entry)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	if txn.Number != "" {
		s.sink.TransactionCompleted(ctx, account.OwnerID, txn,
			fmt.Sprintf("Interest of $%s credited to account %s", interest.StringFixed(money.MinorScale), accountNumber))
	}
	return interest, nil
}

// Account returns an account by number.
func (s *Service) Account(ctx context.Context, accountNumber string) (Account, error) {
	return s.repo.GetByNumber(ctx, accountNumber)
}

// AccountsFor lists accounts the identity owns or jointly holds.
func (s *Service) AccountsFor(ctx context.Context, id shared.Identity) ([]Account, error) {
	return s.repo.ListByHolder(ctx, id.UserID)
}

// Holds reports whether the user owns or jointly holds the account.
func (s *Service) Holds(ctx context.Context, userID int64, accountNumber string) (bool, error) {
	account, err := s.repo.GetByNumber(ctx, accountNumber)
	if err != nil {
		return false, err
	}
	return account.HeldBy(userID), nil
}

// checkFloor rejects a debit that would breach the account floor. When
// the floor is zero the failure is an insufficient-funds condition.
func checkFloor(account *Account, amount decimal.Decimal) error {
	remaining := account.Balance.Sub(amount)
	if remaining.GreaterThanOrEqual(account.MinimumBalance) {
		return nil
	}
	if account.MinimumBalance.Sign() == 0 {
		return fmt.Errorf("%w: account %s holds %s", shared.ErrInsufficientFunds,
			account.Number, account.Balance.StringFixed(money.MinorScale))
	}
	return fmt.Errorf("%w: account %s would drop to %s, floor is %s", shared.ErrBelowMinimumBalance,
		account.Number, remaining.StringFixed(money.MinorScale), account.MinimumBalance.StringFixed(money.MinorScale))
}

// maybeWarnLowBalance raises an alert when a debit leaves the balance
// within ten percent above the floor.
func (s *Service) maybeWarnLowBalance(ctx context.Context, account Account) {
	if account.MinimumBalance.Sign() <= 0 {
		return
	}
	threshold := account.MinimumBalance.Mul(decimal.New(11, -1))
	if account.Balance.LessThanOrEqual(threshold) {
		s.sink.LowBalance(ctx, account.OwnerID, account.Number, account.Balance)
	}
}

func canonicalOrder(a, b string) []string {
	if a < b {
		return []string{a, b}
	}
	return []string{b, a}
}
