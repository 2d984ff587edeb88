package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds occurs when a posting would leave an account with a
	// negative balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNotFound indicates the requested submission does not exist.
	ErrNotFound = errors.New("submission not found")

	// ErrNotPending is returned when an operation requires a pending submission
	// but the submission already reached a terminal status.
	ErrNotPending = errors.New("submission not pending")

	// ErrInvalidTransition is returned by the registry when the compare-and-swap
	// on a submission status fails.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidAmount indicates an amount that is not a positive number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidInput is the parent of every ValidationError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable is returned when the backing medium cannot be
	// reached or a commit fails. Nothing from the unit of work was applied.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DefaultIssuerAccount is the reserved account every credit is debited from.
const DefaultIssuerAccount = "LEE_ADMIN"

// ValidationError reports a malformed or missing field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match any validation failure with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
