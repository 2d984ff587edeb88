package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are stored as NUMERIC(38, 8): at most 8 fractional digits and 30
// integer digits.
const (
	AmountScale         = 8
	AmountIntegerDigits = 30

	maxAmountText = 64
)

var maxAmount = decimal.New(1, AmountIntegerDigits)

// ParseAmount parses a plain decimal string such as "12.50". Exponent
// notation, more than AmountScale fractional digits and values of
// AmountIntegerDigits or more integer digits fail with ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountText {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: exponent notation not accepted", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmount reports whether d fits the stored precision. The exponent and
// coefficient size are checked before any arithmetic so oversized values are
// refused without rescaling them.
func CheckAmount(d decimal.Decimal) error {
	exp := d.Exponent()
	if exp < -maxAmountText || exp > AmountIntegerDigits || d.Coefficient().BitLen() > 256 {
		return fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	// Trailing zeros past the scale are accepted.
	if exp < -AmountScale && !d.Truncate(AmountScale).Equal(d) {
		return fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, AmountScale)
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return nil
}
