package auth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Scope separates administrator tokens from dashboard links.
type Scope string

const (
	ScopeAdmin     Scope = "admin"
	ScopeDashboard Scope = "dashboard"
)

// ErrInvalidToken covers malformed, expired, wrongly signed and wrongly scoped tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload. Subject carries the admin alias or the account key.
type Claims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

// TokenOptions configures a TokenService.
type TokenOptions struct {
	Secret       string
	Issuer       string
	AdminTTL     time.Duration
	DashboardTTL time.Duration
	// BaseURL prefixes dashboard links, e.g. https://lee.example.com.
	BaseURL string
}

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	secret []byte
	opts   TokenOptions
	now    func() time.Time
}

// NewTokenService builds a token service.
func NewTokenService(opts TokenOptions) (*TokenService, error) {
	if opts.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if opts.AdminTTL <= 0 {
		opts.AdminTTL = 8 * time.Hour
	}
	if opts.DashboardTTL <= 0 {
		opts.DashboardTTL = 30 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(opts.Secret), opts: opts, now: time.Now}, nil
}

// IssueAdmin signs an admin token for alias.
func (s *TokenService) IssueAdmin(alias string) (string, time.Time, error) {
	return s.issue(alias, ScopeAdmin, s.opts.AdminTTL)
}

// IssueDashboard signs a read-only token for account.
func (s *TokenService) IssueDashboard(account string) (string, time.Time, error) {
	return s.issue(account, ScopeDashboard, s.opts.DashboardTTL)
}

// DashboardLink returns the URL an account holder opens to see their balance.
func (s *TokenService) DashboardLink(account string) (string, error) {
	token, _, err := s.IssueDashboard(account)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/dashboard.html?token=%s", s.opts.BaseURL, url.QueryEscape(token)), nil
}

func (s *TokenService) issue(subject string, scope Scope, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies token and requires the given scope. It returns the subject.
func (s *TokenService) Parse(token string, scope Scope) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Scope != scope {
		return "", fmt.Errorf("%w: scope %q not allowed", ErrInvalidToken, claims.Scope)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
