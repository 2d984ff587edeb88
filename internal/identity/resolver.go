package identity

import (
	"strings"

	"github.com/google/uuid"

	"github.com/leeglobal/lee_ledger/internal/ledger"
)

// AccountKey maps a caller credential to the ledger key of its account. It
// must be pure so tests can substitute deterministic keys.
type AccountKey func(credential string) string

// EmailAccountKey trims and lower-cases an e-mail address.
func EmailAccountKey(credential string) string {
	return strings.ToLower(strings.TrimSpace(credential))
}

// RecipientResolver picks the account credited when a submission is verified.
type RecipientResolver func(s ledger.Submission) (string, error)

// ByEmail credits the submitter's declared e-mail. Automatic verification uses it.
func ByEmail(key AccountKey) RecipientResolver {
	if key == nil {
		key = EmailAccountKey
	}
	return func(s ledger.Submission) (string, error) {
		if !s.Email.Valid || strings.TrimSpace(s.Email.String) == "" {
			return "", ledger.Invalid("email", "email is required")
		}
		return key(s.Email.String), nil
	}
}

// ForManualVerification credits the trimmed phone number, else the external
// reference, else a placeholder account from placeholder.
func ForManualVerification(placeholder func() string) RecipientResolver {
	if placeholder == nil {
		placeholder = PlaceholderAccount
	}
	return func(s ledger.Submission) (string, error) {
		if s.Phone.Valid {
			if phone := strings.TrimSpace(s.Phone.String); phone != "" {
				return phone, nil
			}
		}
		if s.TxRef.Valid && s.TxRef.String != "" {
			return s.TxRef.String, nil
		}
		return placeholder(), nil
	}
}

// PlaceholderAccount returns a fresh account key for submissions that carry no
// usable identifier. Every call yields a different key.
func PlaceholderAccount() string {
	return "user-" + uuid.NewString()
}
