package infra

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/leeglobal/lee_ledger/internal/infra/migrations"
)

// Migrate applies up to count migrations in the given direction. A count of
// zero applies all of them.
func Migrate(_ context.Context, pool *pgxpool.Pool, direction migrate.MigrationDirection, count int) (int, error) {
	if pool == nil {
		return 0, fmt.Errorf("database pool is required")
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return migrateDB(db, direction, count)
}

func migrateDB(db *sql.DB, direction migrate.MigrationDirection, count int) (int, error) {
	source := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	applied, err := migrate.ExecMax(db, "postgres", source, direction, count)
	if err != nil {
		return applied, fmt.Errorf("applying migrations: %w", err)
	}
	return applied, nil
}
