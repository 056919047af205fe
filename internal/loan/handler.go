package loan

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridianbank/internal/platform/httpx"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// Handler manages loan endpoints. Approve and reject are back-office
// operations; everything else acts on the caller's own loans.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers loan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.apply)
	r.Get("/", h.listLoans)
	r.Post("/emi", h.calculateEMI)
	r.Post("/eligibility", h.eligibility)
	r.Get("/{number}", h.getLoan)
	r.Post("/{number}/approve", h.approve)
	r.Post("/{number}/reject", h.reject)
	r.Post("/{number}/disburse", h.disburse)
	r.Post("/{number}/payments", h.payEMI)
	r.Get("/{number}/schedule", h.schedule)
}

type loanResponse struct {
	Number          string          `json:"number"`
	Type            Type            `json:"type"`
	Principal       decimal.Decimal `json:"principal"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	TermMonths      int             `json:"term_months"`
	EMI             decimal.Decimal `json:"emi"`
	OwnerID         int64           `json:"owner_id"`
	StartDate       *time.Time      `json:"start_date,omitempty"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	NextPaymentDate *time.Time      `json:"next_payment_date,omitempty"`
	Status          Status          `json:"status"`
	Purpose         string          `json:"purpose,omitempty"`
	PaymentsMade    int             `json:"payments_made"`
	CreatedAt       time.Time       `json:"created_at"`
}

func toLoanResponse(l Loan) loanResponse {
	return loanResponse{
		Number:          l.Number,
		Type:            l.Type,
		Principal:       l.Principal,
		InterestRate:    l.InterestRate,
		TermMonths:      l.TermMonths,
		EMI:             l.EMI,
		OwnerID:         l.OwnerID,
		StartDate:       l.StartDate,
		EndDate:         l.EndDate,
		NextPaymentDate: l.NextPaymentDate,
		Status:          l.Status,
		Purpose:         l.Purpose,
		PaymentsMade:    l.PaymentsMade,
		CreatedAt:       l.CreatedAt,
	}
}

type applyRequest struct {
	Type        Type            `json:"type" validate:"required,oneof=PERSONAL HOME CAR EDUCATION BUSINESS"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	TermMonths  int             `json:"term_months" validate:"required,gt=0"`
	Purpose     string          `json:"purpose" validate:"max=500"`
	CreditScore int             `json:"credit_score" validate:"required,gte=300,lte=850"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	applicant := shared.IdentityFromContext(r.Context())
	loan, err := h.service.Apply(r.Context(), applicant, ApplyInput{
		Type:        req.Type,
		Amount:      req.Amount,
		TermMonths:  req.TermMonths,
		Purpose:     req.Purpose,
		CreditScore: req.CreditScore,
	})
	if err != nil {
		h.logger.Error("apply for loan", slog.Any("error", err), slog.Int64("user_id", applicant.UserID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, toLoanResponse(loan))
}

func (h *Handler) listLoans(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	loans, err := h.service.LoansFor(r.Context(), identity)
	if err != nil {
		h.logger.Error("list loans", slog.Any("error", err), slog.Int64("user_id", identity.UserID))
		httpx.RespondError(w, err)
		return
	}

	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.ownedLoan(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoanResponse(loan))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	loan, err := h.service.Approve(r.Context(), number)
	if err != nil {
		h.logger.Error("approve loan", slog.Any("error", err), slog.String("loan", number))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoanResponse(loan))
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	number := chi.URLParam(r, "number")
	loan, err := h.service.Reject(r.Context(), number, req.Reason)
	if err != nil {
		h.logger.Error("reject loan", slog.Any("error", err), slog.String("loan", number))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoanResponse(loan))
}

type accountRequest struct {
	AccountNumber string `json:"account_number" validate:"required,len=10,numeric"`
}

func (h *Handler) disburse(w http.ResponseWriter, r *http.Request) {
	loan, err := h.ownedLoan(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	updated, err := h.service.Disburse(r.Context(), loan.Number, req.AccountNumber)
	if err != nil {
		h.logger.Error("disburse loan", slog.Any("error", err), slog.String("loan", loan.Number))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoanResponse(updated))
}

func (h *Handler) payEMI(w http.ResponseWriter, r *http.Request) {
	loan, err := h.ownedLoan(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	txn, err := h.service.PayEMI(r.Context(), loan.Number, req.AccountNumber)
	if err != nil {
		h.logger.Error("pay EMI", slog.Any("error", err), slog.String("loan", loan.Number))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, paymentResponse{
		TransactionNumber: txn.Number,
		Amount:            txn.Amount,
		Status:            string(txn.Status),
		PaidAt:            txn.CreatedAt,
	})
}

type paymentResponse struct {
	TransactionNumber string          `json:"transaction_number"`
	Amount            decimal.Decimal `json:"amount"`
	Status            string          `json:"status"`
	PaidAt            time.Time       `json:"paid_at"`
}

type scheduleEntryResponse struct {
	Period    int             `json:"period"`
	EMI       decimal.Decimal `json:"emi"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Balance   decimal.Decimal `json:"balance"`
	DueDate   time.Time       `json:"due_date"`
	Paid      bool            `json:"paid"`
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	loan, err := h.ownedLoan(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	entries, err := h.service.RepaymentSchedule(r.Context(), loan.Number)
	if err != nil {
		h.logger.Error("repayment schedule", slog.Any("error", err), slog.String("loan", loan.Number))
		httpx.RespondError(w, err)
		return
	}

	out := make([]scheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, scheduleEntryResponse{
			Period:    e.Period,
			EMI:       e.EMI,
			Principal: e.Principal,
			Interest:  e.Interest,
			Balance:   e.Balance,
			DueDate:   e.DueDate,
			Paid:      e.Paid,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type emiRequest struct {
	Principal  decimal.Decimal `json:"principal" validate:"required"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	TermMonths int             `json:"term_months" validate:"required,gt=0"`
}

func (h *Handler) calculateEMI(w http.ResponseWriter, r *http.Request) {
	var req emiRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	emi, err := CalculateEMI(req.Principal, req.AnnualRate, req.TermMonths)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]decimal.Decimal{"emi": emi})
}

type eligibilityRequest struct {
	MonthlyIncome decimal.Decimal `json:"monthly_income" validate:"required"`
	ExistingEMI   decimal.Decimal `json:"existing_emi"`
	Type          Type            `json:"type" validate:"required,oneof=PERSONAL HOME CAR EDUCATION BUSINESS"`
	CreditScore   int             `json:"credit_score" validate:"required,gte=300,lte=850"`
}

func (h *Handler) eligibility(w http.ResponseWriter, r *http.Request) {
	var req eligibilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	amount, err := EligibleAmount(req.MonthlyIncome, req.ExistingEMI, req.Type, req.CreditScore)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]decimal.Decimal{"eligible_amount": amount})
}

// ownedLoan loads the loan in the URL and verifies the caller owns it.
func (h *Handler) ownedLoan(r *http.Request) (Loan, error) {
	identity := shared.IdentityFromContext(r.Context())
	number := chi.URLParam(r, "number")
	loan, err := h.service.Loan(r.Context(), number)
	if err != nil {
		return Loan{}, err
	}
	if loan.OwnerID != identity.UserID {
		return Loan{}, fmt.Errorf("%w: loan %s is not owned by user %d",
			shared.ErrOwnershipMismatch, number, identity.UserID)
	}
	return loan, nil
}
