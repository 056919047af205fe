package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridianbank/meridianbank/internal/journal"
)

// SubjectTransactions is the NATS subject for transaction events.
const SubjectTransactions = "meridian.transactions"

// Directory resolves a user's contact address.
type Directory interface {
	Email(ctx context.Context, userID int64) (string, error)
}

// MailEnqueuer queues an email for asynchronous delivery.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, to, subject, body string) error
}

// TransactionEvent is published to NATS after a movement commits.
type TransactionEvent struct {
	TransactionNumber string          `json:"transaction_number"`
	Type              journal.Type    `json:"type"`
	Amount            decimal.Decimal `json:"amount"`
	SourceAccount     string          `json:"source_account,omitempty"`
	TargetAccount     string          `json:"target_account,omitempty"`
	Reference         string          `json:"reference"`
	Timestamp         time.Time       `json:"timestamp"`
}

// Fanout publishes events to NATS and queues email alerts. Both paths
// are best effort.
type Fanout struct {
	nc        *nats.Conn
	mail      MailEnqueuer
	directory Directory
	logger    *slog.Logger
	printer   *message.Printer
}

// NewFanout builds a Fanout sink. nc and mail may be nil; the matching
// path is skipped.
func NewFanout(nc *nats.Conn, mail MailEnqueuer, directory Directory, logger *slog.Logger) *Fanout {
	return &Fanout{
		nc:        nc,
		mail:      mail,
		directory: directory,
		logger:    logger,
		printer:   message.NewPrinter(language.English),
	}
}

func (f *Fanout) TransactionCompleted(ctx context.Context, userID int64, txn journal.Transaction, msg string) {
	f.publish(TransactionEvent{
		TransactionNumber: txn.Number,
		Type:              txn.Type,
		Amount:            txn.Amount,
		SourceAccount:     txn.SourceAccount,
		TargetAccount:     txn.TargetAccount,
		Reference:         txn.Reference,
		Timestamp:         txn.CreatedAt,
	})
	f.email(ctx, userID, "Transaction "+txn.Number, msg)
}

func (f *Fanout) LowBalance(ctx context.Context, userID int64, accountNumber string, balance decimal.Decimal) {
	amount, _ := balance.Float64()
	body := f.printer.Sprintf("Balance on account %s has dropped to $%.2f.", accountNumber, amount)
	f.email(ctx, userID, "Low balance alert", body)
}

func (f *Fanout) LoanDecision(ctx context.Context, userID int64, loanNumber, msg string) {
	f.email(ctx, userID, "Loan "+loanNumber, msg)
}

func (f *Fanout) publish(event TransactionEvent) {
	if f.nc == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		f.logger.Warn("notify: marshal event", slog.Any("error", err))
		return
	}
	if err := f.nc.Publish(SubjectTransactions, data); err != nil {
		f.logger.Warn("notify: publish event", slog.String("subject", SubjectTransactions), slog.Any("error", err))
	}
}

func (f *Fanout) email(ctx context.Context, userID int64, subject, body string) {
	if f.mail == nil || f.directory == nil || userID == 0 {
		return
	}
	to, err := f.directory.Email(ctx, userID)
	if err != nil {
		f.logger.Warn("notify: resolve address", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	if err := f.mail.EnqueueSendEmail(ctx, to, subject, body); err != nil {
		f.logger.Warn("notify: enqueue email", slog.String("to", to), slog.Any("error", err))
	}
}
