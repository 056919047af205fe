package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridianbank/meridianbank/internal/ledger"
	"github.com/meridianbank/meridianbank/internal/money"
)

// InterestAccruer runs one accrual pass over interest-bearing accounts.
// The ledger service satisfies it.
type InterestAccruer interface {
	ApplyInterest(ctx context.Context) (ledger.AccrualResult, error)
}

// NewInterestAccrueHandler returns the handler for the monthly accrual
// run. Per-account failures are already absorbed by the ledger; the
// task only fails when the account listing itself does.
func NewInterestAccrueHandler(accruer InterestAccruer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		result, err := accruer.ApplyInterest(ctx)
		if err != nil {
			logger.Error("interest accrual run", slog.Any("error", err))
			return err
		}
		logger.Info("interest accrual complete",
			slog.Int("accounts_seen", result.AccountsSeen),
			slog.Int("accounts_credited", result.AccountsCredited),
			slog.Int("failed", result.Failed),
			slog.String("total_credited", result.TotalCredited.StringFixed(money.MinorScale)))
		return nil
	}
}
