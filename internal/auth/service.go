package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leeglobal/lee_ledger/internal/identity"
	"github.com/leeglobal/lee_ledger/internal/ledger"
)

// IssuerSeeder tops up the issuing account. *verification.Engine satisfies it.
type IssuerSeeder interface {
	SeedIssuingAccount(ctx context.Context, minimum decimal.Decimal, actor string) (*ledger.Replenishment, error)
	Ceiling() decimal.Decimal
}

// Service logs administrators in.
type Service struct {
	admins *identity.AdminDirectory
	tokens *TokenService
	seeder IssuerSeeder
	logger *slog.Logger
}

func NewService(admins *identity.AdminDirectory, tokens *TokenService, seeder IssuerSeeder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{admins: admins, tokens: tokens, seeder: seeder, logger: logger}
}

// LoginResult is returned on a successful admin login.
type LoginResult struct {
	Admin     string    `json:"admin"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login authenticates an admin and makes sure the issuing account is funded
// up to the ceiling. A failed seed is logged and does not block the login.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	alias, err := s.admins.Authenticate(email, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, exp, err := s.tokens.IssueAdmin(alias)
	if err != nil {
		return LoginResult{}, err
	}

	if s.seeder != nil && s.seeder.Ceiling().IsPositive() {
		if _, err := s.seeder.SeedIssuingAccount(ctx, s.seeder.Ceiling(), alias); err != nil {
			s.logger.Warn("seed issuer on login", slog.String("admin", alias), slog.Any("error", err))
		}
	}

	s.logger.Info("admin login", slog.String("admin", alias))
	return LoginResult{Admin: alias, Token: token, ExpiresAt: exp}, nil
}
