package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const transactionColumns = `id, number, type, amount, source_account, target_account, description, reference, status, created_at`

func (r *repository) Insert(ctx context.Context, txn Transaction) (Transaction, error) {
	row := db.QuerierFrom(ctx, r.db).QueryRow(ctx, `INSERT INTO transactions (number, type, amount, source_account, target_account, description, reference, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		txn.Number, txn.Type, txn.Amount, nullString(txn.SourceAccount), nullString(txn.TargetAccount),
		txn.Description, txn.Reference, txn.Status, txn.CreatedAt)
	if err := row.Scan(&txn.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Transaction{}, fmt.Errorf("%w: transaction number %s", shared.ErrDuplicate, txn.Number)
		}
		return Transaction{}, fmt.Errorf("journal: insert: %w", err)
	}
	return txn, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (Transaction, error) {
	row := db.QuerierFrom(ctx, r.db).QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE number=$1`, number)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("%w: transaction %s", shared.ErrNotFound, number)
		}
		return Transaction{}, fmt.Errorf("journal: get: %w", err)
	}
	return txn, nil
}

func (r *repository) ListForAccount(ctx context.Context, accountNumber string, limit, offset int) ([]Transaction, error) {
	rows, err := db.QuerierFrom(ctx, r.db).Query(ctx, `SELECT `+transactionColumns+` FROM transactions
WHERE source_account=$1 OR target_account=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountNumber, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: list scan: %w", err)
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, number string, status Status) error {
	tag, err := db.QuerierFrom(ctx, r.db).Exec(ctx, `UPDATE transactions SET status=$2 WHERE number=$1 AND status='PENDING'`, number, status)
	if err != nil {
		return fmt.Errorf("journal: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: pending transaction %s", shared.ErrNotFound, number)
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	var source, target *string
	if err := row.Scan(&txn.ID, &txn.Number, &txn.Type, &txn.Amount, &source, &target,
		&txn.Description, &txn.Reference, &txn.Status, &txn.CreatedAt); err != nil {
		return Transaction{}, err
	}
	if source != nil {
		txn.SourceAccount = *source
	}
	if target != nil {
		txn.TargetAccount = *target
	}
	return txn, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
