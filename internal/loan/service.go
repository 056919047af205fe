package loan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridianbank/internal/journal"
	"github.com/meridianbank/meridianbank/internal/ledger"
	"github.com/meridianbank/meridianbank/internal/money"
	"github.com/meridianbank/meridianbank/internal/notify"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// Repository defines data access for loans.
type Repository interface {
	GetByNumber(ctx context.Context, number string) (Loan, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Loan, error)
	Insert(ctx context.Context, loan Loan) (Loan, error)
	Update(ctx context.Context, loan Loan) error
}

// LedgerPort is the slice of the account ledger the lifecycle needs:
// disbursement deposits, EMI debits, and ownership checks. The Tx
// variants run the supplied link inside the movement's atomic unit, so
// a loan state change commits or rolls back with the money movement.
type LedgerPort interface {
	Account(ctx context.Context, accountNumber string) (ledger.Account, error)
	DepositTx(ctx context.Context, accountNumber string, amount decimal.Decimal, link func(context.Context) error) (journal.Transaction, error)
	WithdrawTx(ctx context.Context, accountNumber string, amount decimal.Decimal, link func(context.Context) error) (journal.Transaction, error)
}

// JournalPort records payment annotations after a movement completed.
type JournalPort interface {
	Record(ctx context.Context, input journal.RecordInput) (journal.Transaction, error)
}

// Service drives the loan lifecycle state machine.
type Service struct {
	repo    Repository
	ledger  LedgerPort
	journal JournalPort
	sink    notify.Sink
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a Service instance. A nil sink disables notifications.
func NewService(repo Repository, ledgerPort LedgerPort, journalPort JournalPort, sink notify.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = notify.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledgerPort, journal: journalPort, sink: sink, logger: logger, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ApplyInput describes a loan application. CreditScore is supplied by
// the caller; the core does not score applicants itself.
type ApplyInput struct {
	Type        Type
	Amount      decimal.Decimal
	TermMonths  int
	Purpose     string
	CreditScore int
}

// Apply validates the application, prices it from the product table,
// and creates the loan in PENDING.
func (s *Service) Apply(ctx context.Context, applicant shared.Identity, input ApplyInput) (Loan, error) {
	if applicant.Anonymous() {
		return Loan{}, fmt.Errorf("%w: applicant required", shared.ErrValidation)
	}
	rate, ok := RateFor(input.Type)
	if !ok {
		return Loan{}, fmt.Errorf("%w: unknown loan type %q", shared.ErrValidation, input.Type)
	}
	emi, err := CalculateEMI(input.Amount, rate, input.TermMonths)
	if err != nil {
		return Loan{}, err
	}

	now := s.now()
	loan := Loan{
		Number:       NewLoanNumber(),
		Type:         input.Type,
		Principal:    money.RoundMinor(input.Amount),
		InterestRate: rate,
		TermMonths:   input.TermMonths,
		EMI:          emi,
		OwnerID:      applicant.UserID,
		Status:       StatusPending,
		CreditScore:  input.CreditScore,
		Purpose:      input.Purpose,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.Insert(ctx, loan)
	if err != nil {
		return Loan{}, err
	}
	s.sink.LoanDecision(ctx, created.OwnerID, created.Number,
		fmt.Sprintf("Loan application submitted for %s loan of $%s", created.Type, created.Principal.StringFixed(money.MinorScale)))
	return created, nil
}

// Approve moves a PENDING loan to APPROVED; the start, end, and
// next-payment dates are set atomically with the transition.
func (s *Service) Approve(ctx context.Context, loanNumber string) (Loan, error) {
	loan, err := s.repo.GetByNumber(ctx, loanNumber)
	if err != nil {
		return Loan{}, err
	}
	if loan.Status != StatusPending {
		return Loan{}, fmt.Errorf("%w: can only approve pending loans, loan %s is %s",
			shared.ErrInvalidStateTransition, loanNumber, loan.Status)
	}

	start := s.now()
	end := start.AddDate(0, loan.TermMonths, 0)
	next := start.AddDate(0, 1, 0)
	loan.StartDate = &start
	loan.EndDate = &end
	loan.NextPaymentDate = &next
	loan.Status = StatusApproved
	loan.UpdatedAt = start
	if err := s.repo.Update(ctx, loan); err != nil {
		return Loan{}, err
	}
	s.sink.LoanDecision(ctx, loan.OwnerID, loan.Number,
		fmt.Sprintf("Your loan application for $%s has been approved", loan.Principal.StringFixed(money.MinorScale)))
	return loan, nil
}

// Reject moves a PENDING loan to REJECTED, recording the reason.
func (s *Service) Reject(ctx context.Context, loanNumber, reason string) (Loan, error) {
	loan, err := s.repo.GetByNumber(ctx, loanNumber)
	if err != nil {
		return Loan{}, err
	}
	if loan.Status != StatusPending {
		return Loan{}, fmt.Errorf("%w: can only reject pending loans, loan %s is %s",
			shared.ErrInvalidStateTransition, loanNumber, loan.Status)
	}
	loan.Status = StatusRejected
	loan.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, loan); err != nil {
		return Loan{}, err
	}
	s.logger.Info("loan rejected", slog.String("loan", loan.Number), slog.String("reason", reason))
	s.sink.LoanDecision(ctx, loan.OwnerID, loan.Number,
		fmt.Sprintf("Your loan application for $%s has been rejected. Reason: %s", loan.Principal.StringFixed(money.MinorScale), reason))
	return loan, nil
}

// Disburse deposits the principal into the borrower's account and moves
// an APPROVED loan to ACTIVE. The deposit and the state change commit
// as one unit; neither survives without the other.
func (s *Service) Disburse(ctx context.Context, loanNumber, accountNumber string) (Loan, error) {
	loan, err := s.repo.GetByNumber(ctx, loanNumber)
	if err != nil {
		return Loan{}, err
	}
	if loan.Status != StatusApproved {
		return Loan{}, fmt.Errorf("%w: can only disburse approved loans, loan %s is %s",
			shared.ErrInvalidStateTransition, loanNumber, loan.Status)
	}
	if err := s.checkOwnership(ctx, loan, accountNumber); err != nil {
		return Loan{}, err
	}
	loan.Status = StatusActive
	loan.UpdatedAt = s.now()
	_, err = s.ledger.DepositTx(ctx, accountNumber, loan.Principal, func(ctx context.Context) error {
		return s.repo.Update(ctx, loan)
	})
	if err != nil {
		return Loan{}, err
	}
	s.sink.LoanDecision(ctx, loan.OwnerID, loan.Number,
		fmt.Sprintf("Your loan of $%s has been disbursed to account %s", loan.Principal.StringFixed(money.MinorScale), accountNumber))
	return loan, nil
}

// PayEMI debits one installment from the borrower's account, records a
// COMPLETED PAYMENT, and advances the next-payment date. Paying the
// final installment closes the loan.
func (s *Service) PayEMI(ctx context.Context, loanNumber, accountNumber string) (journal.Transaction, error) {
	loan, err := s.repo.GetByNumber(ctx, loanNumber)
	if err != nil {
		return journal.Transaction{}, err
	}
	if loan.Status != StatusActive {
		return journal.Transaction{}, fmt.Errorf("%w: cannot pay EMI for a non-active loan, loan %s is %s",
			shared.ErrInvalidStateTransition, loanNumber, loan.Status)
	}
	if err := s.checkOwnership(ctx, loan, accountNumber); err != nil {
		return journal.Transaction{}, err
	}

	loan.PaymentsMade++
	now := s.now()
	if loan.PaymentsMade >= loan.TermMonths {
		loan.Status = StatusClosed
		loan.NextPaymentDate = nil
	} else if loan.NextPaymentDate != nil {
		next := loan.NextPaymentDate.AddDate(0, 1, 0)
		loan.NextPaymentDate = &next
	}
	loan.UpdatedAt = now

	// The debit, the loan update, and the PAYMENT record share one
	// atomic unit. A failure at any step rolls back all three.
	var txn journal.Transaction
	_, err = s.ledger.WithdrawTx(ctx, accountNumber, loan.EMI, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, loan); err != nil {
			return err
		}
		var err error
		txn, err = s.journal.Record(ctx, journal.RecordInput{
			Type:          journal.TypePayment,
			Amount:        loan.EMI,
			SourceAccount: accountNumber,
			Description:   "EMI payment for loan " + loanNumber,
			Status:        journal.StatusCompleted,
		})
		return err
	})
	if err != nil {
		return journal.Transaction{}, err
	}
	message := fmt.Sprintf("EMI payment of $%s for loan %s", loan.EMI.StringFixed(money.MinorScale), loanNumber)
	if loan.Status == StatusClosed {
		message += ". The loan is now fully repaid"
	}
	s.sink.TransactionCompleted(ctx, loan.OwnerID, txn, message)
	return txn, nil
}

// ScheduleEntry is an installment annotated with its due date.
type ScheduleEntry struct {
	Installment
	DueDate time.Time
	Paid    bool
}

// RepaymentSchedule expands an ACTIVE loan into dated installments.
func (s *Service) RepaymentSchedule(ctx context.Context, loanNumber string) ([]ScheduleEntry, error) {
	loan, err := s.repo.GetByNumber(ctx, loanNumber)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusActive {
		return nil, fmt.Errorf("%w: repayment schedule is only available for active loans, loan %s is %s",
			shared.ErrInvalidStateTransition, loanNumber, loan.Status)
	}
	rows, err := AmortizationSchedule(loan.Principal, loan.InterestRate, loan.TermMonths)
	if err != nil {
		return nil, err
	}

	start := loan.CreatedAt
	if loan.StartDate != nil {
		start = *loan.StartDate
	}
	entries := make([]ScheduleEntry, 0, len(rows))
	for i, row := range rows {
		due := start.AddDate(0, i+1, 0)
		entries = append(entries, ScheduleEntry{
			Installment: row,
			DueDate:     due,
			Paid:        row.Period <= loan.PaymentsMade,
		})
	}
	return entries, nil
}

// Loan returns a loan by its number.
func (s *Service) Loan(ctx context.Context, loanNumber string) (Loan, error) {
	return s.repo.GetByNumber(ctx, loanNumber)
}

// LoansFor lists loans belonging to the identity.
func (s *Service) LoansFor(ctx context.Context, id shared.Identity) ([]Loan, error) {
	return s.repo.ListByOwner(ctx, id.UserID)
}

func (s *Service) checkOwnership(ctx context.Context, loan Loan, accountNumber string) error {
	account, err := s.ledger.Account(ctx, accountNumber)
	if err != nil {
		return err
	}
	if !account.HeldBy(loan.OwnerID) {
		return fmt.Errorf("%w: account %s, loan %s", shared.ErrOwnershipMismatch, accountNumber, loan.Number)
	}
	return nil
}
