//go:build integration

package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null"
	"github.com/jackc/pgx/v5/pgxpool"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/leeglobal/lee_ledger/internal/infra"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("lee_ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := infra.NewPostgresPool(ctx, dsn, infra.PoolOptions{MaxConns: 16})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = infra.Migrate(ctx, pool, migrate.Up, 0)
	require.NoError(t, err)
	return pool
}

func TestIntegration_PostgresStore(t *testing.T) {
	pool := setupPostgres(t)

	runStoreSuite(t, func(t *testing.T) Store {
		_, err := pool.Exec(context.Background(),
			`TRUNCATE replenishments, transfers, submissions, balances`)
		require.NoError(t, err)
		return NewPostgres(pool)
	})
}

func TestIntegration_PostgresMigrateDown(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	applied, err := infra.Migrate(ctx, pool, migrate.Down, 0)
	require.NoError(t, err)
	require.Equal(t, 2, applied)

	_, err = NewPostgres(pool).Balances(ctx)
	require.Error(t, err)
}

func TestIntegration_PostgresIDsUniqueAcrossStores(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	// Two stores on one database stand in for two API processes. A frozen
	// clock puts every id in the same millisecond.
	frozen := time.UnixMilli(1_700_000_000_000).UTC()
	clock := func() time.Time { return frozen }
	stores := []Store{NewPostgres(pool, WithClock(clock)), NewPostgres(pool, WithClock(clock))}
	for _, s := range stores {
		fund(t, s, "issuer", "1000")
	}

	const perStore = 20
	var (
		mu  sync.Mutex
		ids []string
		wg  sync.WaitGroup
	)
	for _, s := range stores {
		for i := 0; i < perStore; i++ {
			wg.Add(1)
			go func(s Store) {
				defer wg.Done()
				err := s.Update(ctx, func(tx Tx) error {
					sub, err := tx.CreateSubmission(Submission{SourceAmount: dec("1")})
					if err != nil {
						return err
					}
					if _, err := tx.AdjustBalance("issuer", dec("-1")); err != nil {
						return err
					}
					if _, err := tx.AdjustBalance("alice@lee.test", dec("1")); err != nil {
						return err
					}
					tr, err := tx.AppendTransfer(Transfer{From: "issuer", To: "alice@lee.test", Amount: dec("1"), SubmissionID: null.StringFrom(sub.ID)})
					if err != nil {
						return err
					}
					mu.Lock()
					ids = append(ids, sub.ID, tr.ID)
					mu.Unlock()
					return nil
				})
				assert.NoError(t, err)
			}(s)
		}
	}
	wg.Wait()

	require.Len(t, ids, 2*2*perStore)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "id %s handed out twice", id)
		seen[id] = struct{}{}
	}
	transfers, err := stores[0].Transfers(ctx)
	require.NoError(t, err)
	assert.Len(t, transfers, 2*perStore)
}

func TestIntegration_PostgresDuplicateIDIsInvalidInput(t *testing.T) {
	pool := setupPostgres(t)
	store := NewPostgres(pool)
	fund(t, store, "issuer", "10")

	appendTransfer := func() error {
		return store.Update(context.Background(), func(tx Tx) error {
			_, err := tx.AppendTransfer(Transfer{ID: "TR-fixed", From: "issuer", To: "bob@lee.test", Amount: dec("1")})
			return err
		})
	}
	require.NoError(t, appendTransfer())
	err := appendTransfer()
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "TR-fixed")
}
