package ledger

import (
	"time"

	"github.com/guregu/null"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusVerified, StatusRejected, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is part of the lifecycle.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// Submission is one claimed external payment.
type Submission struct {
	ID             string              `json:"id"`
	Name           null.String         `json:"name"`
	Phone          null.String         `json:"phone"`
	Email          null.String         `json:"email"`
	SourceAmount   decimal.Decimal     `json:"usd"`
	CreditedAmount decimal.NullDecimal `json:"lee"`
	TxRef          null.String         `json:"txRef"`
	Screenshot     null.String         `json:"screenshot"`
	Status         Status              `json:"status"`
	CreatedAt      time.Time           `json:"createdAt"`
	ResolvedBy     null.String         `json:"resolvedBy"`
	ResolvedAt     null.Time           `json:"resolvedAt"`
}

// Amount is the value credited when the submission is verified: the credited
// amount when present, otherwise the source amount.
func (s Submission) Amount() decimal.Decimal {
	if s.CreditedAmount.Valid {
		return s.CreditedAmount.Decimal
	}
	return s.SourceAmount
}

// Resolution carries the metadata persisted with a status transition.
type Resolution struct {
	By string
	At time.Time
}

// Transfer is an immutable record of value moved between two accounts.
type Transfer struct {
	ID           string          `json:"id"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"createdAt"`
	SubmissionID null.String     `json:"submissionId"`
}

// Involves reports whether account is either side of the transfer.
func (t Transfer) Involves(account string) bool {
	return t.From == account || t.To == account
}

// Replenishment reasons.
const (
	ReasonAutoTopUp = "auto_top_up"
	ReasonSeed      = "seed"
)

// Replenishment audits value minted into an account outside of a transfer.
// Conservation holds once these are accounted for: the issuer's decrease plus
// every replenishment equals the sum of all credits.
type Replenishment struct {
	ID              string          `json:"id"`
	Account         string          `json:"account"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	NewBalance      decimal.Decimal `json:"newBalance"`
	Actor           string          `json:"actor"`
	Reason          string          `json:"reason"`
	CreatedAt       time.Time       `json:"createdAt"`
	SubmissionID    null.String     `json:"submissionId"`
}
