package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/leeglobal/lee_ledger/internal/ledger"
)

const (
	defaultAppName         = "LeeLedger"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultIssuerAccount   = "LEE_ADMIN"
	defaultIssuerCeiling   = "1000000000"
	defaultAdminEmails     = "admin@leeglobal.com"
	defaultJWTSecret       = "dev-secret-change-me"
	defaultAdminTokenTTL   = 8 * time.Hour
	defaultDashboardTTL    = 30 * 24 * time.Hour
	defaultBaseURL         = "http://localhost:8080"
	defaultSMTPPort        = 587
	defaultNotifyWorkers   = 4
	defaultLoginRateLimit  = 5
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	IssuerAccount string
	IssuerCeiling decimal.Decimal

	AdminEnabled      bool
	AdminEmails       []string
	AdminPassword     string
	AdminPasswordHash string
	JWTSecret         string
	AdminTokenTTL     time.Duration
	DashboardTokenTTL time.Duration
	BaseURL           string
	LoginRateLimit    int

	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	FromEmail     string
	NotifyWorkers int
}

// Load reads a .env file when present, then populates a Config from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            getEnv("APP_ENV", defaultAppEnv),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		IssuerAccount:     getEnv("ISSUER_ACCOUNT", defaultIssuerAccount),
		AdminEnabled:      os.Getenv("ADMIN_ENABLED") == "1",
		AdminEmails:       splitList(getEnv("ADMIN_EMAILS", defaultAdminEmails)),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         getEnv("JWT_SECRET", defaultJWTSecret),
		BaseURL:           strings.TrimRight(getEnv("APP_BASE_URL", defaultBaseURL), "/"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPass:          os.Getenv("SMTP_PASS"),
		FromEmail:         os.Getenv("FROM_EMAIL"),
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AdminTokenTTL, err = duration("ADMIN_TOKEN_TTL", defaultAdminTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.DashboardTokenTTL, err = duration("DASHBOARD_TOKEN_TTL", defaultDashboardTTL); err != nil {
		return Config{}, err
	}
	if cfg.SMTPPort, err = integer("SMTP_PORT", defaultSMTPPort); err != nil {
		return Config{}, err
	}
	if cfg.NotifyWorkers, err = integer("NOTIFY_WORKERS", defaultNotifyWorkers); err != nil {
		return Config{}, err
	}
	if cfg.LoginRateLimit, err = integer("LOGIN_RATE_LIMIT", defaultLoginRateLimit); err != nil {
		return Config{}, err
	}

	cfg.IssuerCeiling, err = ledger.ParseAmount(getEnv("ISSUER_CEILING", defaultIssuerCeiling))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ISSUER_CEILING: %w", err)
	}
	if cfg.IssuerCeiling.IsNegative() {
		return Config{}, fmt.Errorf("ISSUER_CEILING must not be negative")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.IsDevelopment() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if c.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.AdminEnabled && c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set when ADMIN_ENABLED=1")
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// SMTPEnabled reports whether mail delivery is configured.
func (c Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != ""
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return duration(durationKey, fallback)
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func integer(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
