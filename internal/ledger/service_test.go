package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridianbank/internal/journal"
	"github.com/meridianbank/meridianbank/internal/shared"
)

type memoryLedgerRepo struct {
	mu            sync.Mutex
	accounts      map[string]*Account
	transactions  []journal.Transaction
	nextAccountID int64
	nextTxnID     int64

	// failBalanceUpdate makes UpdateBalance fail for the given account
	// numbers, to exercise partial-batch behaviour.
	failBalanceUpdate map[string]error
}

func newMemoryLedgerRepo() *memoryLedgerRepo {
	return &memoryLedgerRepo{
		accounts:          make(map[string]*Account),
		failBalanceUpdate: make(map[string]error),
	}
}

func (r *memoryLedgerRepo) seed(account Account) Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAccountID++
	account.ID = r.nextAccountID
	r.accounts[account.Number] = &account
	return account
}

func (r *memoryLedgerRepo) balance(number string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[number].Balance
}

func (r *memoryLedgerRepo) transactionsOfType(t journal.Type) []journal.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []journal.Transaction
	for _, txn := range r.transactions {
		if txn.Type == t {
			out = append(out, txn)
		}
	}
	return out
}

func (r *memoryLedgerRepo) GetByNumber(ctx context.Context, number string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[number]
	if !ok {
		return Account{}, fmt.Errorf("%w: account %s", shared.ErrNotFound, number)
	}
	return *account, nil
}

func (r *memoryLedgerRepo) ListByHolder(ctx context.Context, userID int64) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Account
	for _, account := range r.accounts {
		if account.HeldBy(userID) {
			out = append(out, *account)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) ListActiveByType(ctx context.Context, accountType AccountType) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Account
	for _, account := range r.accounts {
		if account.Active && account.Type == accountType {
			out = append(out, *account)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshotAccounts := make(map[string]*Account, len(r.accounts))
	for number, account := range r.accounts {
		copied := *account
		copied.JointHolderIDs = append([]int64(nil), account.JointHolderIDs...)
		snapshotAccounts[number] = &copied
	}
	snapshotTxns := append([]journal.Transaction(nil), r.transactions...)
	snapshotNextAccount, snapshotNextTxn := r.nextAccountID, r.nextTxnID

	if err := fn(ctx, (*memoryTxRepo)(r)); err != nil {
		r.accounts = snapshotAccounts
		r.transactions = snapshotTxns
		r.nextAccountID, r.nextTxnID = snapshotNextAccount, snapshotNextTxn
		return err
	}
	return nil
}

type memoryTxRepo memoryLedgerRepo

func (r *memoryTxRepo) GetAccountForUpdate(ctx context.Context, number string) (Account, error) {
	account, ok := r.accounts[number]
	if !ok {
		return Account{}, fmt.Errorf("%w: account %s", shared.ErrNotFound, number)
	}
	return *account, nil
}

func (r *memoryTxRepo) InsertAccount(ctx context.Context, account Account) (Account, error) {
	r.nextAccountID++
	account.ID = r.nextAccountID
	r.accounts[account.Number] = &account
	return account, nil
}

func (r *memoryTxRepo) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal, at time.Time) error {
	for _, account := range r.accounts {
		if account.ID == accountID {
			if err := r.failBalanceUpdate[account.Number]; err != nil {
				return err
			}
			account.Balance = balance
			account.UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("%w: account id %d", shared.ErrNotFound, accountID)
}

func (r *memoryTxRepo) SetActive(ctx context.Context, accountID int64, active bool, at time.Time) error {
	for _, account := range r.accounts {
		if account.ID == accountID {
			account.Active = active
			account.UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("%w: account id %d", shared.ErrNotFound, accountID)
}

func (r *memoryTxRepo) AddJointHolder(ctx context.Context, accountID, userID int64) error {
	for _, account := range r.accounts {
		if account.ID == accountID {
			account.JointHolderIDs = append(account.JointHolderIDs, userID)
			return nil
		}
	}
	return fmt.Errorf("%w: account id %d", shared.ErrNotFound, accountID)
}

func (r *memoryTxRepo) InsertTransaction(ctx context.Context, txn journal.Transaction) (journal.Transaction, error) {
	r.nextTxnID++
	txn.ID = r.nextTxnID
	r.transactions = append(r.transactions, txn)
	return txn, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(repo *memoryLedgerRepo, number string, balance, minimum string, active bool) Account {
	return repo.seed(Account{
		Number:         number,
		Type:           TypeSavings,
		Balance:        dec(balance),
		MinimumBalance: dec(minimum),
		InterestRate:   dec("2.5"),
		Active:         active,
		OwnerID:        7,
	})
}

func TestDeposit(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "500.00", "100.00", true)
	svc := NewService(repo, nil, nil)

	txn, err := svc.Deposit(context.Background(), "1000000001", dec("42.55"))
	require.NoError(t, err)
	require.Equal(t, journal.TypeDeposit, txn.Type)
	require.Equal(t, journal.StatusCompleted, txn.Status)
	require.Equal(t, "1000000001", txn.TargetAccount)
	require.Empty(t, txn.SourceAccount)
	require.True(t, repo.balance("1000000001").Equal(dec("542.55")))
	require.Len(t, repo.transactionsOfType(journal.TypeDeposit), 1)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "500.00", "100.00", true)
	svc := NewService(repo, nil, nil)

	_, err := svc.Deposit(context.Background(), "1000000001", decimal.Zero)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Deposit(context.Background(), "1000000001", dec("-5"))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.True(t, repo.balance("1000000001").Equal(dec("500.00")))
}

func TestDepositToInactiveAccount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "500.00", "100.00", false)
	svc := NewService(repo, nil, nil)

	_, err := svc.Deposit(context.Background(), "1000000001", dec("10"))
	require.ErrorIs(t, err, shared.ErrInactiveAccount)
	require.Empty(t, repo.transactions)
}

func TestWithdrawMinimumBalanceBoundary(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "150.00", "100.00", true)
	svc := NewService(repo, nil, nil)

	txn, err := svc.Withdraw(context.Background(), "1000000001", dec("50.00"))
	require.NoError(t, err)
	require.Equal(t, journal.TypeWithdrawal, txn.Type)
	require.True(t, repo.balance("1000000001").Equal(dec("100.00")))

	_, err = svc.Withdraw(context.Background(), "1000000001", dec("50.01"))
	require.ErrorIs(t, err, shared.ErrBelowMinimumBalance)
	require.True(t, repo.balance("1000000001").Equal(dec("100.00")))
	require.Len(t, repo.transactionsOfType(journal.TypeWithdrawal), 1)
}

func TestWithdrawTxLinkFailureRollsBackDebit(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "500.00", "0", true)
	svc := NewService(repo, nil, nil)

	linkErr := fmt.Errorf("linked write failed")
	_, err := svc.WithdrawTx(context.Background(), "1000000001", dec("50.00"), func(context.Context) error {
		return linkErr
	})
	require.ErrorIs(t, err, linkErr)
	require.True(t, repo.balance("1000000001").Equal(dec("500.00")))
	require.Empty(t, repo.transactions)
}

func TestDepositTxLinkFailureRollsBackCredit(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "500.00", "0", true)
	svc := NewService(repo, nil, nil)

	linkErr := fmt.Errorf("linked write failed")
	_, err := svc.DepositTx(context.Background(), "1000000001", dec("50.00"), func(context.Context) error {
		return linkErr
	})
	require.ErrorIs(t, err, linkErr)
	require.True(t, repo.balance("1000000001").Equal(dec("500.00")))
	require.Empty(t, repo.transactions)
}

func TestWithdrawInsufficientFundsOnZeroFloor(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "30.00", "0", true)
	svc := NewService(repo, nil, nil)

	_, err := svc.Withdraw(context.Background(), "1000000001", dec("30.01"))
	require.ErrorIs(t, err, shared.ErrInsufficientFunds)
	require.True(t, repo.balance("1000000001").Equal(dec("30.00")))
}

func TestTransfer(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "300.00", "100.00", true)
	seedAccount(repo, "1000000002", "50.00", "0", true)
	svc := NewService(repo, nil, nil)

	txn, err := svc.Transfer(context.Background(), "1000000001", "1000000002", dec("125.50"))
	require.NoError(t, err)
	require.Equal(t, journal.TypeTransfer, txn.Type)
	require.Equal(t, "1000000001", txn.SourceAccount)
	require.Equal(t, "1000000002", txn.TargetAccount)
	require.True(t, repo.balance("1000000001").Equal(dec("174.50")))
	require.True(t, repo.balance("1000000002").Equal(dec("175.50")))
	require.Len(t, repo.transactions, 1)
}

func TestTransferValidation(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "300.00", "100.00", true)
	svc := NewService(repo, nil, nil)

	_, err := svc.Transfer(context.Background(), "1000000001", "1000000001", dec("10"))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Transfer(context.Background(), "1000000001", "9999999999", dec("10"))
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.True(t, repo.balance("1000000001").Equal(dec("300.00")))
}

func TestTransferFailureLeavesNoPartialState(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "300.00", "100.00", true)
	seedAccount(repo, "1000000002", "50.00", "0", false)
	svc := NewService(repo, nil, nil)

	_, err := svc.Transfer(context.Background(), "1000000001", "1000000002", dec("75.00"))
	require.ErrorIs(t, err, shared.ErrInactiveAccount)
	require.True(t, repo.balance("1000000001").Equal(dec("300.00")))
	require.True(t, repo.balance("1000000002").Equal(dec("50.00")))
	require.Empty(t, repo.transactions)
}

func TestOppositeTransfersDoNotDeadlock(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "10000.00", "0", true)
	seedAccount(repo, "1000000002", "10000.00", "0", true)
	svc := NewService(repo, nil, nil)

	const rounds = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, _ = svc.Transfer(context.Background(), "1000000001", "1000000002", dec("1.00"))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				_, _ = svc.Transfer(context.Background(), "1000000002", "1000000001", dec("1.00"))
			}
		}()
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposite-direction transfers deadlocked")
	}
	total := repo.balance("1000000001").Add(repo.balance("1000000002"))
	require.True(t, total.Equal(dec("20000.00")), "money leaked: %s", total)
}

func TestApplyInterest(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "1200.00", "100.00", true)
	checking := repo.seed(Account{
		Number: "2000000001", Type: TypeChecking, Balance: dec("900.00"),
		MinimumBalance: dec("50.00"), InterestRate: decimal.Zero, Active: true, OwnerID: 7,
	})
	svc := NewService(repo, nil, nil)

	result, err := svc.ApplyInterest(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.AccountsSeen)
	require.Equal(t, 1, result.AccountsCredited)
	require.True(t, result.TotalCredited.Equal(dec("2.50")))
	require.True(t, repo.balance("1000000001").Equal(dec("1202.50")))
	require.True(t, repo.balance(checking.Number).Equal(dec("900.00")))

	interest := repo.transactionsOfType(journal.TypeInterest)
	require.Len(t, interest, 1)
	require.Equal(t, "1000000001", interest[0].TargetAccount)
	require.Equal(t, journal.StatusCompleted, interest[0].Status)
}

func TestApplyInterestSkipsFailedAccount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "1200.00", "100.00", true)
	seedAccount(repo, "1000000002", "2400.00", "100.00", true)
	repo.failBalanceUpdate["1000000001"] = fmt.Errorf("storage offline")
	svc := NewService(repo, nil, nil)

	result, err := svc.ApplyInterest(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.AccountsSeen)
	require.Equal(t, 1, result.AccountsCredited)
	require.Equal(t, 1, result.Failed)
	require.True(t, repo.balance("1000000001").Equal(dec("1200.00")))
	require.True(t, repo.balance("1000000002").Equal(dec("2405.00")))
	require.Len(t, repo.transactionsOfType(journal.TypeInterest), 1)
}

func TestSetAccountStatus(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "500.00", "100.00", true)
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.SetAccountStatus(context.Background(), "1000000001", false))
	account, err := svc.Account(context.Background(), "1000000001")
	require.NoError(t, err)
	require.False(t, account.Active)
	require.True(t, account.Balance.Equal(dec("500.00")))

	require.NoError(t, svc.SetAccountStatus(context.Background(), "1000000001", true))
	account, err = svc.Account(context.Background(), "1000000001")
	require.NoError(t, err)
	require.True(t, account.Active)
}

func TestOpenAccount(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, nil)
	owner := shared.Identity{UserID: 7, Name: "Dana", Email: "dana@example.com"}

	account, err := svc.OpenAccount(context.Background(), owner, OpenAccountInput{
		Type:           TypeSavings,
		Name:           "Rainy day",
		InitialDeposit: dec("250.00"),
	})
	require.NoError(t, err)
	require.Len(t, account.Number, 10)
	require.True(t, account.Balance.Equal(dec("250.00")))
	require.True(t, account.MinimumBalance.Equal(dec("100.00")))
	require.True(t, account.InterestRate.Equal(dec("2.5")))
	require.True(t, account.Active)

	deposits := repo.transactionsOfType(journal.TypeDeposit)
	require.Len(t, deposits, 1)
	require.Equal(t, "Initial deposit", deposits[0].Description)
}

func TestOpenAccountEnforcesFloor(t *testing.T) {
	repo := newMemoryLedgerRepo()
	svc := NewService(repo, nil, nil)
	owner := shared.Identity{UserID: 7}

	_, err := svc.OpenAccount(context.Background(), owner, OpenAccountInput{
		Type:           TypeSavings,
		InitialDeposit: dec("99.99"),
	})
	require.ErrorIs(t, err, shared.ErrBelowMinimumBalance)

	_, err = svc.OpenAccount(context.Background(), owner, OpenAccountInput{Type: "PREMIUM"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddJointHolder(t *testing.T) {
	repo := newMemoryLedgerRepo()
	seedAccount(repo, "1000000001", "500.00", "100.00", true)
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.AddJointHolder(context.Background(), "1000000001", 9))
	account, err := svc.Account(context.Background(), "1000000001")
	require.NoError(t, err)
	require.True(t, account.HeldBy(9))

	err = svc.AddJointHolder(context.Background(), "1000000001", 9)
	require.ErrorIs(t, err, shared.ErrValidation)
	err = svc.AddJointHolder(context.Background(), "1000000001", 7)
	require.ErrorIs(t, err, shared.ErrValidation)
}
