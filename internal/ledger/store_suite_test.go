package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/guregu/null"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract. newStore must return an empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("commit applies every effect", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		fund(t, s, "issuer", "100")

		var sub Submission
		err := s.Update(ctx, func(tx Tx) error {
			var err error
			sub, err = tx.CreateSubmission(Submission{SourceAmount: dec("40"), Email: null.StringFrom("a@lee.test")})
			if err != nil {
				return err
			}
			if _, err := tx.AdjustBalance("issuer", dec("-40")); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance("a@lee.test", dec("40")); err != nil {
				return err
			}
			if _, err := tx.AppendTransfer(Transfer{
				From: "issuer", To: "a@lee.test", Amount: dec("40"), SubmissionID: null.StringFrom(sub.ID),
			}); err != nil {
				return err
			}
			_, err = tx.TransitionSubmission(sub.ID, StatusPending, StatusVerified, Resolution{By: "system"})
			return err
		})
		require.NoError(t, err)

		assertBalance(t, s, "issuer", "60")
		assertBalance(t, s, "a@lee.test", "40")

		transfers, err := s.Transfers(ctx)
		require.NoError(t, err)
		require.Len(t, transfers, 1)
		assert.True(t, strings.HasPrefix(transfers[0].ID, TransferIDPrefix+"-"))
		assert.Equal(t, sub.ID, transfers[0].SubmissionID.String)

		got, err := s.Submission(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusVerified, got.Status)
		assert.Equal(t, "system", got.ResolvedBy.String)
		assert.True(t, got.ResolvedAt.Valid)
	})

	t.Run("failed unit of work leaves no trace", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		fund(t, s, "issuer", "10")

		boom := errors.New("boom")
		err := s.Update(ctx, func(tx Tx) error {
			if _, err := tx.CreateSubmission(Submission{SourceAmount: dec("5")}); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance("issuer", dec("-5")); err != nil {
				return err
			}
			if _, err := tx.AdjustBalance("b@lee.test", dec("5")); err != nil {
				return err
			}
			if _, err := tx.AppendTransfer(Transfer{From: "issuer", To: "b@lee.test", Amount: dec("5")}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		assertBalance(t, s, "issuer", "10")
		assertBalance(t, s, "b@lee.test", "0")
		transfers, err := s.Transfers(ctx)
		require.NoError(t, err)
		assert.Empty(t, transfers)
		subs, err := s.Submissions(ctx)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("balance never goes negative", func(t *testing.T) {
		s := newStore(t)
		fund(t, s, "issuer", "3")

		err := s.Update(context.Background(), func(tx Tx) error {
			_, err := tx.AdjustBalance("issuer", dec("-3.5"))
			return err
		})
		require.ErrorIs(t, err, ErrInsufficientFunds)
		assertBalance(t, s, "issuer", "3")
	})

	t.Run("submissions listed in creation order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var ids []string
		for _, amount := range []string{"1", "2", "3"} {
			err := s.Update(ctx, func(tx Tx) error {
				sub, err := tx.CreateSubmission(Submission{SourceAmount: dec(amount)})
				ids = append(ids, sub.ID)
				return err
			})
			require.NoError(t, err)
		}

		subs, err := s.Submissions(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 3)
		for i, sub := range subs {
			assert.Equal(t, ids[i], sub.ID)
			assert.Equal(t, StatusPending, sub.Status)
			assert.True(t, strings.HasPrefix(sub.ID, SubmissionIDPrefix+"-"))
		}
		assert.Len(t, map[string]bool{ids[0]: true, ids[1]: true, ids[2]: true}, 3)
	})

	t.Run("status transition is compare and swap", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := createSubmission(t, s, "7")

		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			_, err := tx.TransitionSubmission(id, StatusPending, StatusRejected, Resolution{By: "admin@lee.test"})
			return err
		}))
		err := s.Update(ctx, func(tx Tx) error {
			_, err := tx.TransitionSubmission(id, StatusPending, StatusVerified, Resolution{})
			return err
		})
		require.ErrorIs(t, err, ErrInvalidTransition)

		got, err := s.Submission(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, got.Status)
		assert.Equal(t, "admin@lee.test", got.ResolvedBy.String)
	})

	t.Run("transition out of lifecycle refused", func(t *testing.T) {
		s := newStore(t)
		id := createSubmission(t, s, "7")
		err := s.Update(context.Background(), func(tx Tx) error {
			_, err := tx.TransitionSubmission(id, StatusVerified, StatusPending, Resolution{})
			return err
		})
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown submission", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Submission(context.Background(), "MPESA-missing")
		require.ErrorIs(t, err, ErrNotFound)

		err = s.Update(context.Background(), func(tx Tx) error {
			_, err := tx.TransitionSubmission("MPESA-missing", StatusPending, StatusVerified, Resolution{})
			return err
		})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("transfer validation", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(context.Background(), func(tx Tx) error {
			_, err := tx.AppendTransfer(Transfer{From: "a", To: "a", Amount: dec("1")})
			return err
		})
		require.ErrorIs(t, err, ErrInvalidInput)

		err = s.Update(context.Background(), func(tx Tx) error {
			_, err := tx.AppendTransfer(Transfer{From: "a", To: "b", Amount: dec("0")})
			return err
		})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("transfers filtered by account", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		fund(t, s, "issuer", "10")
		move(t, s, "issuer", "a", "4")
		move(t, s, "issuer", "b", "3")
		move(t, s, "a", "b", "1")

		forA, err := s.TransfersFor(ctx, "a")
		require.NoError(t, err)
		assert.Len(t, forA, 2)
		forIssuer, err := s.TransfersFor(ctx, "issuer")
		require.NoError(t, err)
		assert.Len(t, forIssuer, 2)

		balances, err := s.Balances(ctx)
		require.NoError(t, err)
		total := decimal.Zero
		for _, b := range balances {
			total = total.Add(b)
		}
		assert.True(t, total.Equal(dec("10")), "total %s", total)
	})

	t.Run("replenishments are recorded", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(context.Background(), func(tx Tx) error {
			next, err := tx.AdjustBalance("issuer", dec("25"))
			if err != nil {
				return err
			}
			_, err = tx.AppendReplenishment(Replenishment{
				Account: "issuer", Amount: dec("25"), PreviousBalance: decimal.Zero, NewBalance: next,
				Actor: "ops", Reason: ReasonSeed,
			})
			return err
		})
		require.NoError(t, err)

		reps, err := s.Replenishments(context.Background())
		require.NoError(t, err)
		require.Len(t, reps, 1)
		assert.True(t, strings.HasPrefix(reps[0].ID, ReplenishmentIDPrefix+"-"))
		assert.True(t, reps[0].NewBalance.Equal(dec("25")))
		assert.Equal(t, ReasonSeed, reps[0].Reason)
	})

	t.Run("concurrent debits never overdraw", func(t *testing.T) {
		s := newStore(t)
		fund(t, s, "issuer", "10")

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ok  int
			bad int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Update(context.Background(), func(tx Tx) error {
					if _, err := tx.AdjustBalance("issuer", dec("-1")); err != nil {
						return err
					}
					_, err := tx.AdjustBalance("sink", dec("1"))
					return err
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else if errors.Is(err, ErrInsufficientFunds) {
					bad++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, ok)
		assert.Equal(t, 10, bad)
		assertBalance(t, s, "issuer", "0")
		assertBalance(t, s, "sink", "10")
	})
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func fund(t *testing.T, s Store, account, amount string) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), func(tx Tx) error {
		_, err := tx.AdjustBalance(account, dec(amount))
		return err
	}))
}

func move(t *testing.T, s Store, from, to, amount string) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), func(tx Tx) error {
		if _, err := tx.AdjustBalance(from, dec(amount).Neg()); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(to, dec(amount)); err != nil {
			return err
		}
		_, err := tx.AppendTransfer(Transfer{From: from, To: to, Amount: dec(amount)})
		return err
	}))
}

func createSubmission(t *testing.T, s Store, amount string) string {
	t.Helper()
	var id string
	require.NoError(t, s.Update(context.Background(), func(tx Tx) error {
		sub, err := tx.CreateSubmission(Submission{SourceAmount: dec(amount)})
		id = sub.ID
		return err
	}))
	return id
}

func assertBalance(t *testing.T, s Store, account, want string) {
	t.Helper()
	got, err := s.Balance(context.Background(), account)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec(want)), "%s balance = %s, want %s", account, got, want)
}
