package loan

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

const loanColumns = `id, number, type, principal, interest_rate, term_months, emi, owner_id,
start_date, end_date, next_payment_date, status, credit_score, purpose, payments_made, created_at, updated_at`

func (r *repository) GetByNumber(ctx context.Context, number string) (Loan, error) {
	row := db.QuerierFrom(ctx, r.db).QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE number=$1`, number)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Loan{}, fmt.Errorf("%w: loan %s", shared.ErrNotFound, number)
		}
		return Loan{}, fmt.Errorf("loan: get: %w", err)
	}
	return loan, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID int64) ([]Loan, error) {
	rows, err := db.QuerierFrom(ctx, r.db).Query(ctx, `SELECT `+loanColumns+` FROM loans WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loan: list: %w", err)
	}
	defer rows.Close()
	var out []Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("loan: list scan: %w", err)
		}
		out = append(out, loan)
	}
	return out, rows.Err()
}

func (r *repository) Insert(ctx context.Context, loan Loan) (Loan, error) {
	row := db.QuerierFrom(ctx, r.db).QueryRow(ctx, `INSERT INTO loans (number, type, principal, interest_rate, term_months, emi, owner_id,
start_date, end_date, next_payment_date, status, credit_score, purpose, payments_made, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		loan.Number, loan.Type, loan.Principal, loan.InterestRate, loan.TermMonths, loan.EMI, loan.OwnerID,
		loan.StartDate, loan.EndDate, loan.NextPaymentDate, loan.Status, loan.CreditScore, loan.Purpose,
		loan.PaymentsMade, loan.CreatedAt, loan.UpdatedAt)
	if err := row.Scan(&loan.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Loan{}, fmt.Errorf("%w: loan number %s", shared.ErrDuplicate, loan.Number)
		}
		return Loan{}, fmt.Errorf("loan: insert: %w", err)
	}
	return loan, nil
}

func (r *repository) Update(ctx context.Context, loan Loan) error {
	tag, err := db.QuerierFrom(ctx, r.db).Exec(ctx, `UPDATE loans SET start_date=$2, end_date=$3, next_payment_date=$4, status=$5,
payments_made=$6, updated_at=$7 WHERE id=$1`,
		loan.ID, loan.StartDate, loan.EndDate, loan.NextPaymentDate, loan.Status, loan.PaymentsMade, loan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("loan: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: loan id %d", shared.ErrNotFound, loan.ID)
	}
	return nil
}

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	if err := row.Scan(&l.ID, &l.Number, &l.Type, &l.Principal, &l.InterestRate, &l.TermMonths, &l.EMI,
		&l.OwnerID, &l.StartDate, &l.EndDate, &l.NextPaymentDate, &l.Status, &l.CreditScore, &l.Purpose,
		&l.PaymentsMade, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return Loan{}, err
	}
	return l, nil
}
