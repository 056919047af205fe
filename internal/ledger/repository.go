package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridianbank/internal/journal"
	"github.com/meridianbank/meridianbank/internal/platform/db"
	"github.com/meridianbank/meridianbank/internal/shared"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a PostgreSQL-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, number, type, name, balance, minimum_balance, interest_rate, active, owner_id, created_at, updated_at`

func (r *repository) GetByNumber(ctx context.Context, number string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number=$1`, number)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: account %s", shared.ErrNotFound, number)
		}
		return Account{}, fmt.Errorf("ledger: get account: %w", err)
	}
	account.JointHolderIDs, err = r.jointHolders(ctx, r.db, account.ID)
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

func (r *repository) ListByHolder(ctx context.Context, userID int64) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE owner_id=$1 OR id IN (SELECT account_id FROM account_joint_holders WHERE user_id=$1)
ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list by holder: %w", err)
	}
	return collectAccounts(rows)
}

func (r *repository) ListActiveByType(ctx context.Context, accountType AccountType) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE type=$1 AND active ORDER BY number`, accountType)
	if err != nil {
		return nil, fmt.Errorf("ledger: list active: %w", err)
	}
	return collectAccounts(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) jointHolders(ctx context.Context, q querier, accountID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT user_id FROM account_joint_holders WHERE account_id=$1 ORDER BY user_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("ledger: joint holders: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, number string) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE number=$1 FOR UPDATE`, number)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("%w: account %s", shared.ErrNotFound, number)
		}
		return Account{}, fmt.Errorf("ledger: lock account: %w", err)
	}
	holderRows, err := r.tx.Query(ctx, `SELECT user_id FROM account_joint_holders WHERE account_id=$1 ORDER BY user_id`, account.ID)
	if err != nil {
		return Account{}, fmt.Errorf("ledger: joint holders: %w", err)
	}
	defer holderRows.Close()
	for holderRows.Next() {
		var id int64
		if err := holderRows.Scan(&id); err != nil {
			return Account{}, err
		}
		account.JointHolderIDs = append(account.JointHolderIDs, id)
	}
	return account, holderRows.Err()
}

func (r *txRepository) InsertAccount(ctx context.Context, account Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (number, type, name, balance, minimum_balance, interest_rate, active, owner_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		account.Number, account.Type, account.Name, account.Balance, account.MinimumBalance,
		account.InterestRate, account.Active, account.OwnerID, account.CreatedAt, account.UpdatedAt)
	if err := row.Scan(&account.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, fmt.Errorf("%w: account number %s", shared.ErrDuplicate, account.Number)
		}
		return Account{}, fmt.Errorf("ledger: insert account: %w", err)
	}
	for _, userID := range account.JointHolderIDs {
		if err := r.AddJointHolder(ctx, account.ID, userID); err != nil {
			return Account{}, err
		}
	}
	return account, nil
}

func (r *txRepository) UpdateBalance(ctx context.Context, accountID int64, balance decimal.Decimal, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET balance=$2, updated_at=$3 WHERE id=$1`, accountID, balance, at)
	if err != nil {
		return fmt.Errorf("ledger: update balance: %w", err)
	}
	return nil
}

func (r *txRepository) SetActive(ctx context.Context, accountID int64, active bool, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET active=$2, updated_at=$3 WHERE id=$1`, accountID, active, at)
	if err != nil {
		return fmt.Errorf("ledger: set active: %w", err)
	}
	return nil
}

func (r *txRepository) AddJointHolder(ctx context.Context, accountID, userID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO account_joint_holders (account_id, user_id) VALUES ($1,$2)`, accountID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: joint holder %d on account %d", shared.ErrDuplicate, userID, accountID)
		}
		return fmt.Errorf("ledger: add joint holder: %w", err)
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn journal.Transaction) (journal.Transaction, error) {
	var source, target *string
	if txn.SourceAccount != "" {
		source = &txn.SourceAccount
	}
	if txn.TargetAccount != "" {
		target = &txn.TargetAccount
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO transactions (number, type, amount, source_account, target_account, description, reference, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		txn.Number, txn.Type, txn.Amount, source, target, txn.Description, txn.Reference, txn.Status, txn.CreatedAt)
	if err := row.Scan(&txn.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return journal.Transaction{}, fmt.Errorf("%w: transaction number %s", shared.ErrDuplicate, txn.Number)
		}
		return journal.Transaction{}, fmt.Errorf("ledger: insert transaction: %w", err)
	}
	return txn, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Number, &a.Type, &a.Name, &a.Balance, &a.MinimumBalance,
		&a.InterestRate, &a.Active, &a.OwnerID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var out []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan account: %w", err)
		}
		out = append(out, account)
	}
	return out, rows.Err()
}
