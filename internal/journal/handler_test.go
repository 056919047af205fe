package journal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/meridianbank/internal/shared"
)

// stubGuard answers holder checks from a fixed map, or fails outright.
type stubGuard struct {
	held map[string]bool
	err  error
}

func (g stubGuard) Holds(ctx context.Context, userID int64, accountNumber string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	return g.held[accountNumber], nil
}

func newTestHandler(t *testing.T, guard AccountGuard) (*Service, http.Handler) {
	t.Helper()
	svc := NewService(newMemoryJournalRepo())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	router.Route("/transactions", NewHandler(logger, svc, guard).MountRoutes)
	return svc, router
}

func getAs(t *testing.T, router http.Handler, userID int64, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: userID}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetTransactionVisibleToHolder(t *testing.T) {
	svc, router := newTestHandler(t, stubGuard{held: map[string]bool{"1000000001": true}})
	txn, err := svc.Record(context.Background(), RecordInput{
		Type: TypeDeposit, Amount: decimal.NewFromInt(25), TargetAccount: "1000000001", Status: StatusCompleted,
	})
	require.NoError(t, err)

	rec := getAs(t, router, 7, "/transactions/"+txn.Number)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), txn.Number)
}

func TestGetTransactionHiddenFromNonHolder(t *testing.T) {
	svc, router := newTestHandler(t, stubGuard{held: map[string]bool{}})
	txn, err := svc.Record(context.Background(), RecordInput{
		Type: TypeDeposit, Amount: decimal.NewFromInt(25), TargetAccount: "1000000001", Status: StatusCompleted,
	})
	require.NoError(t, err)

	rec := getAs(t, router, 7, "/transactions/"+txn.Number)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetTransactionGuardFailureIsServerError(t *testing.T) {
	svc, router := newTestHandler(t, stubGuard{err: fmt.Errorf("account store offline")})
	txn, err := svc.Record(context.Background(), RecordInput{
		Type: TypeDeposit, Amount: decimal.NewFromInt(25), TargetAccount: "1000000001", Status: StatusCompleted,
	})
	require.NoError(t, err)

	// A failed holder lookup is a server fault, not a denial.
	rec := getAs(t, router, 7, "/transactions/"+txn.Number)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListTransactionsRequiresAccountParam(t *testing.T) {
	_, router := newTestHandler(t, stubGuard{held: map[string]bool{"1000000001": true}})

	rec := getAs(t, router, 7, "/transactions")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
