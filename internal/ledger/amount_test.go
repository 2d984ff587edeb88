package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "integer", in: "100", want: "100", ok: true},
		{name: "two decimals", in: " 12.50 ", want: "12.5", ok: true},
		{name: "eight decimals", in: "0.00000001", want: "0.00000001", ok: true},
		{name: "trailing zeros past scale", in: "1.5000000000", want: "1.5", ok: true},
		{name: "largest", in: "999999999999999999999999999999.99999999", want: "999999999999999999999999999999.99999999", ok: true},
		{name: "negative parses", in: "-3", want: "-3", ok: true},
		{name: "nine decimals", in: "0.000000001"},
		{name: "thirty one integer digits", in: "1000000000000000000000000000000"},
		{name: "exponent", in: "1e400000000"},
		{name: "small exponent", in: "1E2"},
		{name: "negative exponent", in: "5e-3"},
		{name: "too long", in: "0.0000000000000000000000000000000000000000000000000000000000000001"},
		{name: "empty", in: "  "},
		{name: "text", in: "ten"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestCheckAmountRefusesHugeExponentsQuickly(t *testing.T) {
	start := time.Now()
	require.ErrorIs(t, CheckAmount(decimal.New(1, 400_000_000)), ErrInvalidAmount)
	require.ErrorIs(t, CheckAmount(decimal.New(1, -400_000_000)), ErrInvalidAmount)
	assert.Less(t, time.Since(start), time.Second)

	require.NoError(t, CheckAmount(decimal.New(5, 2)))
	require.ErrorIs(t, CheckAmount(decimal.New(1, -9)), ErrInvalidAmount)
}
