package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/leeglobal/lee_ledger/internal/config"
	"github.com/leeglobal/lee_ledger/internal/infra"
	"github.com/leeglobal/lee_ledger/internal/ledger"
	"github.com/leeglobal/lee_ledger/internal/verification"
)

func newRootCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tooling for the LEE ledger database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection URL (defaults to DATABASE_URL)")

	root.AddCommand(newMigrateCmd(&cfg, logger))
	root.AddCommand(newSeedIssuerCmd(&cfg, logger))
	root.AddCommand(newBalancesCmd(&cfg))
	return root
}

func newMigrateCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema migration helpers",
	}

	upCmd := &cobra.Command{
		Use:   "up [count]",
		Short: "Migrates database up [count] migrations, all when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 0
			if len(args) > 0 {
				var err error
				if count, err = strconv.Atoi(args[0]); err != nil {
					return fmt.Errorf("invalid [count] argument: %s", args[0])
				}
			}
			return runMigrations(cmd.Context(), cfg.DatabaseURL, migrate.Up, count, logger)
		},
	}

	downCmd := &cobra.Command{
		Use:   "down count",
		Short: "Migrates database down count migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil || count <= 0 {
				return fmt.Errorf("invalid count argument: %s", args[0])
			}
			return runMigrations(cmd.Context(), cfg.DatabaseURL, migrate.Down, count, logger)
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd)
	return migrateCmd
}

func runMigrations(ctx context.Context, url string, direction migrate.MigrationDirection, count int, logger *slog.Logger) error {
	db, err := infra.NewPostgresPool(ctx, url, infra.PoolOptions{MaxConns: 2})
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := infra.Migrate(ctx, db, direction, count)
	if err != nil {
		return err
	}
	if applied == 0 {
		logger.Info("no migrations applied")
		return nil
	}
	logger.Info("migrations applied", "count", applied, "direction", directionName(direction))
	return nil
}

func directionName(direction migrate.MigrationDirection) string {
	if direction == migrate.Up {
		return "up"
	}
	return "down"
}

func newSeedIssuerCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var minimum, actor string
	cmd := &cobra.Command{
		Use:   "seed-issuer",
		Short: "Raises the issuing account balance to at least --minimum",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := ledger.ParseAmount(minimum)
			if err != nil {
				return fmt.Errorf("invalid --minimum: %w", err)
			}
			return withStore(cmd.Context(), cfg.DatabaseURL, func(store ledger.Store) error {
				engine := verification.NewEngine(store, verification.Config{
					IssuerAccount: cfg.IssuerAccount,
					Ceiling:       cfg.IssuerCeiling,
				}, verification.WithLogger(logger))
				rep, err := engine.SeedIssuingAccount(cmd.Context(), target, actor)
				if err != nil {
					return err
				}
				if rep == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "issuer already at or above minimum")
					return nil
				}
				return printJSON(cmd, rep)
			})
		},
	}
	cmd.Flags().StringVar(&minimum, "minimum", cfg.IssuerCeiling.String(), "target issuer balance")
	cmd.Flags().StringVar(&actor, "actor", "ledgerctl", "actor recorded on the replenishment")
	return cmd
}

func newBalancesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Prints every account balance as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), cfg.DatabaseURL, func(store ledger.Store) error {
				balances, err := store.Balances(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, balances)
			})
		},
	}
}

func withStore(ctx context.Context, url string, fn func(ledger.Store) error) error {
	db, err := infra.NewPostgresPool(ctx, url, infra.PoolOptions{MaxConns: 2})
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ledger.NewPostgres(db))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
