package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, "LEE_ADMIN", cfg.IssuerAccount)
	assert.Equal(t, "1000000000", cfg.IssuerCeiling.String())
	assert.Equal(t, 30*24*time.Hour, cfg.DashboardTokenTTL)
	assert.Equal(t, []string{"admin@leeglobal.com"}, cfg.AdminEmails)
	assert.False(t, cfg.AdminEnabled)
	assert.False(t, cfg.SMTPEnabled())
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("ISSUER_CEILING", "0")
	t.Setenv("ADMIN_ENABLED", "1")
	t.Setenv("ADMIN_EMAILS", " a@lee.test, B@lee.test ,")
	t.Setenv("APP_BASE_URL", "https://lee.test/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 90*time.Minute, cfg.IdempotencyTTL)
	assert.True(t, cfg.IssuerCeiling.IsZero())
	assert.True(t, cfg.AdminEnabled)
	assert.Equal(t, []string{"a@lee.test", "B@lee.test"}, cfg.AdminEmails)
	assert.Equal(t, "https://lee.test", cfg.BaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	t.Run("ceiling", func(t *testing.T) {
		t.Setenv("ISSUER_CEILING", "-5")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("duration", func(t *testing.T) {
		t.Setenv("ADMIN_TOKEN_TTL", "soon")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoadProductionRequiresInfrastructure(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/lee")
	_, err = Load()
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	require.ErrorContains(t, err, "JWT_SECRET")
}
