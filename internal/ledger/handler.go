package ledger

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridianbank/internal/journal"
	"github.com/meridianbank/meridianbank/internal/platform/httpx"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// Handler manages account endpoints. Every route assumes the identity
// middleware already ran; mutations are restricted to account holders.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.openAccount)
	r.Get("/", h.listAccounts)
	r.Post("/transfer", h.transfer)
	r.Get("/{number}", h.getAccount)
	r.Post("/{number}/deposit", h.deposit)
	r.Post("/{number}/withdraw", h.withdraw)
	r.Post("/{number}/status", h.setStatus)
	r.Post("/{number}/joint-holders", h.addJointHolder)
}

type accountResponse struct {
	Number         string          `json:"number"`
	Type           AccountType     `json:"type"`
	Name           string          `json:"name"`
	Balance        decimal.Decimal `json:"balance"`
	MinimumBalance decimal.Decimal `json:"minimum_balance"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	Active         bool            `json:"active"`
	OwnerID        int64           `json:"owner_id"`
	JointHolderIDs []int64         `json:"joint_holder_ids,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toAccountResponse(a Account) accountResponse {
	return accountResponse{
		Number:         a.Number,
		Type:           a.Type,
		Name:           a.Name,
		Balance:        a.Balance,
		MinimumBalance: a.MinimumBalance,
		InterestRate:   a.InterestRate,
		Active:         a.Active,
		OwnerID:        a.OwnerID,
		JointHolderIDs: a.JointHolderIDs,
		CreatedAt:      a.CreatedAt,
	}
}

type transactionResponse struct {
	Number        string          `json:"number"`
	Type          journal.Type    `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	SourceAccount string          `json:"source_account,omitempty"`
	TargetAccount string          `json:"target_account,omitempty"`
	Description   string          `json:"description,omitempty"`
	Reference     string          `json:"reference"`
	Status        journal.Status  `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toTransactionResponse(t journal.Transaction) transactionResponse {
	return transactionResponse{
		Number:        t.Number,
		Type:          t.Type,
		Amount:        t.Amount,
		SourceAccount: t.SourceAccount,
		TargetAccount: t.TargetAccount,
		Description:   t.Description,
		Reference:     t.Reference,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
	}
}

type openAccountRequest struct {
	Type           AccountType     `json:"type" validate:"required,oneof=SAVINGS CHECKING FIXED_DEPOSIT LOAN"`
	Name           string          `json:"name" validate:"required,max=120"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
	JointHolderIDs []int64         `json:"joint_holder_ids" validate:"max=4,dive,gt=0"`
}

func (h *Handler) openAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	owner := shared.IdentityFromContext(r.Context())
	account, err := h.service.OpenAccount(r.Context(), owner, OpenAccountInput{
		Type:           req.Type,
		Name:           req.Name,
		InitialDeposit: req.InitialDeposit,
		JointHolderIDs: req.JointHolderIDs,
	})
	if err != nil {
		h.logger.Error("open account", slog.Any("error", err), slog.Int64("owner_id", owner.UserID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	accounts, err := h.service.AccountsFor(r.Context(), identity)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err), slog.Int64("user_id", identity.UserID))
		httpx.RespondError(w, err)
		return
	}

	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.heldAccount(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	account, err := h.heldAccount(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req amountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	txn, err := h.service.Deposit(r.Context(), account.Number, req.Amount)
	if err != nil {
		h.logger.Error("deposit", slog.Any("error", err), slog.String("account", account.Number))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	account, err := h.heldAccount(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req amountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	txn, err := h.service.Withdraw(r.Context(), account.Number, req.Amount)
	if err != nil {
		h.logger.Error("withdraw", slog.Any("error", err), slog.String("account", account.Number))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

type transferRequest struct {
	FromAccount string          `json:"from_account" validate:"required,len=10,numeric"`
	ToAccount   string          `json:"to_account" validate:"required,len=10,numeric"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	identity := shared.IdentityFromContext(r.Context())
	if err := h.requireHolder(r, identity.UserID, req.FromAccount); err != nil {
		httpx.RespondError(w, err)
		return
	}

	txn, err := h.service.Transfer(r.Context(), req.FromAccount, req.ToAccount, req.Amount)
	if err != nil {
		h.logger.Error("transfer", slog.Any("error", err),
			slog.String("from", req.FromAccount), slog.String("to", req.ToAccount))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

type statusRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	account, err := h.heldAccount(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}

	if err := h.service.SetAccountStatus(r.Context(), account.Number, req.Active); err != nil {
		h.logger.Error("set account status", slog.Any("error", err), slog.String("account", account.Number))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type jointHolderRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func (h *Handler) addJointHolder(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	number := chi.URLParam(r, "number")

	// Only the primary owner may add holders.
	account, err := h.service.Account(r.Context(), number)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if account.OwnerID != identity.UserID {
		httpx.RespondError(w, fmt.Errorf("%w: account %s is not owned by user %d",
			shared.ErrOwnershipMismatch, number, identity.UserID))
		return
	}

	var req jointHolderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", shared.ErrValidation, err))
		return
	}

	if err := h.service.AddJointHolder(r.Context(), number, req.UserID); err != nil {
		h.logger.Error("add joint holder", slog.Any("error", err), slog.String("account", number))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// heldAccount loads the account in the URL and verifies the caller
// holds it.
func (h *Handler) heldAccount(r *http.Request) (Account, error) {
	identity := shared.IdentityFromContext(r.Context())
	number := chi.URLParam(r, "number")
	account, err := h.service.Account(r.Context(), number)
	if err != nil {
		return Account{}, err
	}
	if !account.HeldBy(identity.UserID) {
		return Account{}, fmt.Errorf("%w: account %s is not held by user %d",
			shared.ErrOwnershipMismatch, number, identity.UserID)
	}
	return account, nil
}

func (h *Handler) requireHolder(r *http.Request, userID int64, accountNumber string) error {
	held, err := h.service.Holds(r.Context(), userID, accountNumber)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: account %s is not held by user %d",
			shared.ErrOwnershipMismatch, accountNumber, userID)
	}
	return nil
}
