package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/guregu/null"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeglobal/lee_ledger/internal/apierror"
	"github.com/leeglobal/lee_ledger/internal/auth"
	"github.com/leeglobal/lee_ledger/internal/ledger"
	"github.com/leeglobal/lee_ledger/internal/logging"
)

func seededStore(t *testing.T) ledger.Store {
	t.Helper()
	store := ledger.NewInMemory()
	t.Cleanup(func() { _ = store.Close() })
	ledger.SeedBalance(store, ledger.DefaultIssuerAccount, decimal.NewFromInt(1000))

	err := store.Update(context.Background(), func(tx ledger.Tx) error {
		for _, to := range []string{"a@x.com", "b@x.com", "a@x.com"} {
			amount := decimal.NewFromInt(10)
			if _, err := tx.AdjustBalance(ledger.DefaultIssuerAccount, amount.Neg()); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance(to, amount); err != nil {
				return err
			}
			if _, err := tx.AppendTransfer(ledger.Transfer{
				From:         ledger.DefaultIssuerAccount,
				To:           to,
				Amount:       amount,
				SubmissionID: null.StringFrom("MPESA-" + to),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return store
}

func TestViewFiltersTransfers(t *testing.T) {
	svc := NewService(seededStore(t))

	view, err := svc.View(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(20)))
	require.Len(t, view.Transfers, 2)
	for _, tr := range view.Transfers {
		assert.Equal(t, "a@x.com", tr.To)
	}

	view, err = svc.View(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.True(t, view.Balance.IsZero())
	assert.Empty(t, view.Transfers)

	_, err = svc.View(context.Background(), " ")
	require.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestDashboardHandler(t *testing.T) {
	tokens, err := auth.NewTokenService(auth.TokenOptions{Secret: "test-secret"})
	require.NoError(t, err)
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler(logging.Discard())})
	app.Get("/api/dashboard", NewHandler(NewService(seededStore(t)), tokens).Dashboard)

	dash, _, err := tokens.IssueDashboard("b@x.com")
	require.NoError(t, err)
	admin, _, err := tokens.IssueAdmin("admin@lee.test")
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/dashboard?token="+url.QueryEscape(dash), nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Email     string            `json:"email"`
		Balance   decimal.Decimal   `json:"balance"`
		Transfers []ledger.Transfer `json:"transfers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "b@x.com", body.Email)
	assert.True(t, body.Balance.Equal(decimal.NewFromInt(10)))
	assert.Len(t, body.Transfers, 1)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/dashboard?token="+url.QueryEscape(admin), nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDashboardHandlerLogsStorageFailure(t *testing.T) {
	tokens, err := auth.NewTokenService(auth.TokenOptions{Secret: "test-secret"})
	require.NoError(t, err)
	store := seededStore(t)
	var logs bytes.Buffer
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler(logging.NewWithWriter(&logs, "info"))})
	app.Get("/api/dashboard", NewHandler(NewService(store), tokens).Dashboard)
	require.NoError(t, store.Close())

	dash, _, err := tokens.IssueDashboard("a@x.com")
	require.NoError(t, err)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/dashboard?token="+url.QueryEscape(dash), nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "storage unavailable, retry later", out["error"])
	assert.NotContains(t, out["error"], "store closed")
	assert.Contains(t, logs.String(), "store closed")
}
