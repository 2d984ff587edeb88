package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/leeglobal/lee_ledger/internal/auth"
	"github.com/leeglobal/lee_ledger/internal/config"
	"github.com/leeglobal/lee_ledger/internal/identity"
	"github.com/leeglobal/lee_ledger/internal/ledger"
	"github.com/leeglobal/lee_ledger/internal/metrics"
	"github.com/leeglobal/lee_ledger/internal/middleware"
	"github.com/leeglobal/lee_ledger/internal/payments"
	"github.com/leeglobal/lee_ledger/internal/verification"
	"github.com/leeglobal/lee_ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg        config.Config
	Store      ledger.Store
	DB         *pgxpool.Pool
	Cache      *redis.Client
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Dispatcher verification.Dispatcher
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil {
		return errors.New("ledger store is required")
	}
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDevelopment() {
		// [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger, d.Metrics))
	app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Metrics)

	tokens, err := auth.NewTokenService(auth.TokenOptions{
		Secret:       d.Cfg.JWTSecret,
		Issuer:       d.Cfg.AppName,
		AdminTTL:     d.Cfg.AdminTokenTTL,
		DashboardTTL: d.Cfg.DashboardTokenTTL,
		BaseURL:      d.Cfg.BaseURL,
	})
	if err != nil {
		return err
	}

	opts := []verification.Option{
		verification.WithLogger(d.Logger),
		verification.WithMetrics(d.Metrics),
		verification.WithDashboardLinks(tokens.DashboardLink),
	}
	if d.Dispatcher != nil {
		opts = append(opts, verification.WithDispatcher(d.Dispatcher))
	}
	engine := verification.NewEngine(d.Store, verification.Config{
		IssuerAccount: d.Cfg.IssuerAccount,
		Ceiling:       d.Cfg.IssuerCeiling,
	}, opts...)

	paymentSvc := payments.NewService(d.Store, engine, payments.Options{
		Links:        tokens.DashboardLink,
		EmailEnabled: d.Cfg.SMTPEnabled(),
		Logger:       d.Logger,
	})
	paymentHandler := payments.NewHandler(paymentSvc)
	walletHandler := wallet.NewHandler(wallet.NewService(d.Store), tokens)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterPaymentRoutes(api, paymentHandler)
	RegisterWalletRoutes(api, walletHandler)

	admin := api.Group("/admin", middleware.AdminEnabled(d.Cfg.AdminEnabled))
	if !d.Cfg.AdminEnabled {
		return nil
	}
	admins, err := adminDirectory(d.Cfg)
	if err != nil {
		return err
	}
	authHandler := auth.NewHandler(auth.NewService(admins, tokens, engine, d.Logger))
	RegisterAuthRoutes(admin, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, d.Logger))

	protected := admin.Group("", middleware.AdminAuth(tokens))
	RegisterAdminRoutes(protected, paymentHandler)
	return nil
}

func adminDirectory(cfg config.Config) (*identity.AdminDirectory, error) {
	if cfg.AdminPasswordHash != "" {
		return identity.NewAdminDirectory(cfg.AdminEmails, []byte(cfg.AdminPasswordHash))
	}
	if cfg.AdminPassword == "" {
		return nil, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required when ADMIN_ENABLED=1")
	}
	return identity.NewAdminDirectoryFromPassword(cfg.AdminEmails, cfg.AdminPassword)
}
