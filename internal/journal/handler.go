package journal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meridianbank/meridianbank/internal/platform/httpx"
	"github.com/meridianbank/meridianbank/internal/shared"
)

// AccountGuard answers whether a user holds an account. The ledger
// service satisfies it.
type AccountGuard interface {
	Holds(ctx context.Context, userID int64, accountNumber string) (bool, error)
}

// Handler serves the read side of the journal. History is scoped to
// accounts the caller holds.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   AccountGuard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard AccountGuard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listForAccount)
	r.Get("/{number}", h.getTransaction)
}

type transactionResponse struct {
	Number        string          `json:"number"`
	Type          Type            `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	SourceAccount string          `json:"source_account,omitempty"`
	TargetAccount string          `json:"target_account,omitempty"`
	Description   string          `json:"description,omitempty"`
	Reference     string          `json:"reference"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toTransactionResponse(t Transaction) transactionResponse {
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

func (h *Handler) listForAccount(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	accountNumber := r.URL.Query().Get("account")
	if accountNumber == "" {
		httpx.RespondError(w, fmt.Errorf("%w: account query parameter required", shared.ErrValidation))
		return
	}
	if err := h.requireHolder(r.Context(), identity.UserID, accountNumber); err != nil {
		httpx.RespondError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	txns, err := h.service.ListForAccount(r.Context(), accountNumber, limit, offset)
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err), slog.String("account", accountNumber))
		httpx.RespondError(w, err)
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	number := chi.URLParam(r, "number")

	txn, err := h.service.Get(r.Context(), number)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	// Visible to holders of either side of the entry.
	visible := false
	for _, account := range []string{txn.SourceAccount, txn.TargetAccount} {
		if account == "" {
			continue
		}
		held, err := h.guard.Holds(r.Context(), identity.UserID, account)
		if err != nil {
			h.logger.Error("holder check", slog.Any("error", err), slog.String("account", account))
			httpx.RespondError(w, err)
			return
		}
		if held {
			visible = true
			break
		}
	}
	if !visible {
		httpx.RespondError(w, fmt.Errorf("%w: transaction %s does not involve user %d",
			shared.ErrOwnershipMismatch, number, identity.UserID))
		return
	}

	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (h *Handler) requireHolder(ctx context.Context, userID int64, accountNumber string) error {
	held, err := h.guard.Holds(ctx, userID, accountNumber)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%w: account %s is not held by user %d",
			shared.ErrOwnershipMismatch, accountNumber, userID)
	}
	return nil
}
