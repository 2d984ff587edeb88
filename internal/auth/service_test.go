package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeglobal/lee_ledger/internal/identity"
	"github.com/leeglobal/lee_ledger/internal/ledger"
	"github.com/leeglobal/lee_ledger/internal/logging"
)

type stubSeeder struct {
	ceiling decimal.Decimal
	calls   []string
}

func (s *stubSeeder) Ceiling() decimal.Decimal { return s.ceiling }

func (s *stubSeeder) SeedIssuingAccount(_ context.Context, minimum decimal.Decimal, actor string) (*ledger.Replenishment, error) {
	s.calls = append(s.calls, actor+":"+minimum.String())
	return nil, nil
}

func newService(t *testing.T, seeder IssuerSeeder) *Service {
	t.Helper()
	admins, err := identity.NewAdminDirectoryFromPassword([]string{"admin@lee.test", "ops@lee.test", "leemesse"}, "correct horse")
	require.NoError(t, err)
	return NewService(admins, newTokens(t), seeder, logging.Discard())
}

func TestLoginSeedsIssuer(t *testing.T) {
	seeder := &stubSeeder{ceiling: decimal.NewFromInt(1000)}
	svc := newService(t, seeder)

	res, err := svc.Login(context.Background(), " OPS@lee.test ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ops@lee.test", res.Admin)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, []string{"ops@lee.test:1000"}, seeder.calls)

	sub, err := svc.tokens.Parse(res.Token, ScopeAdmin)
	require.NoError(t, err)
	assert.Equal(t, "ops@lee.test", sub)
}

func TestLoginSkipsSeedWhenCeilingDisabled(t *testing.T) {
	seeder := &stubSeeder{ceiling: decimal.Zero}
	svc := newService(t, seeder)

	_, err := svc.Login(context.Background(), "admin@lee.test", "correct horse")
	require.NoError(t, err)
	assert.Empty(t, seeder.calls)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newService(t, nil)

	_, err := svc.Login(context.Background(), "admin@lee.test", "wrong")
	require.ErrorIs(t, err, identity.ErrUnauthenticated)

	_, err = svc.Login(context.Background(), "someone@lee.test", "correct horse")
	require.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestLoginHandler(t *testing.T) {
	app := fiber.New()
	app.Post("/login", NewHandler(newService(t, nil)).Login)

	cases := []struct {
		name  string
		body  string
		want  int
		admin string
	}{
		{name: "ok", body: `{"email":"admin@lee.test","password":"correct horse"}`, want: http.StatusOK, admin: "admin@lee.test"},
		{name: "wrong password", body: `{"email":"admin@lee.test","password":"nope"}`, want: http.StatusUnauthorized},
		{name: "missing email", body: `{"password":"nope"}`, want: http.StatusBadRequest},
		{name: "bare alias", body: `{"email":"leemesse","password":"correct horse"}`, want: http.StatusOK, admin: "leemesse"},
		{name: "bare alias wrong password", body: `{"email":"leemesse","password":"nope"}`, want: http.StatusUnauthorized},
		{name: "oversized alias", body: `{"email":"` + strings.Repeat("a", 255) + `","password":"correct horse"}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
			if tc.want == http.StatusOK {
				var out LoginResult
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
				assert.Equal(t, tc.admin, out.Admin)
			}
		})
	}
}
