package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s := NewInMemory()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestInMemoryClosedStoreUnavailable(t *testing.T) {
	s := NewInMemory()
	require.NoError(t, s.Close())

	err := s.Update(context.Background(), func(Tx) error { return nil })
	require.ErrorIs(t, err, ErrStorageUnavailable)
	_, err = s.Balances(context.Background())
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestInMemoryHonoursCancelledContext(t *testing.T) {
	s := NewInMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestInMemoryReadsReturnCopies(t *testing.T) {
	s := NewInMemory()
	fund(t, s, "issuer", "5")

	balances, err := s.Balances(context.Background())
	require.NoError(t, err)
	balances["issuer"] = dec("1000")

	assertBalance(t, s, "issuer", "5")
}

func TestIDSequenceNeverRepeats(t *testing.T) {
	frozen := time.UnixMilli(1_700_000_000_000)
	seq := NewIDSequence("TR", func() time.Time { return frozen })

	assert.Equal(t, "TR-1700000000000", seq.Next())
	assert.Equal(t, "TR-1700000000001", seq.Next())
	assert.Equal(t, "TR-1700000000002", seq.Next())
}

func TestStatusLifecycle(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	for _, s := range []Status{StatusVerified, StatusRejected, StatusFailed} {
		assert.True(t, s.Terminal())
		assert.True(t, CanTransition(StatusPending, s))
		assert.False(t, CanTransition(s, StatusPending))
		assert.False(t, CanTransition(s, StatusVerified))
	}
	assert.False(t, CanTransition(StatusPending, StatusPending))
}

func TestSubmissionAmountPrefersCreditedAmount(t *testing.T) {
	sub := Submission{SourceAmount: dec("10")}
	assert.True(t, sub.Amount().Equal(dec("10")))

	sub.CreditedAmount.Valid = true
	sub.CreditedAmount.Decimal = dec("12.5")
	assert.True(t, sub.Amount().Equal(dec("12.5")))
}

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := Invalid("email", "is required")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid email: is required", err.Error())
}
