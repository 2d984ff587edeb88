package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Tx is a unit of work against the ledger and the submission registry. Its
// effects become visible together when the surrounding Update commits.
type Tx interface {
	Balance(account string) (decimal.Decimal, error)
	// AdjustBalance applies delta and returns the new balance. It fails with
	// ErrInsufficientFunds if the result would be negative.
	AdjustBalance(account string, delta decimal.Decimal) (decimal.Decimal, error)
	AppendTransfer(t Transfer) (Transfer, error)
	AppendReplenishment(r Replenishment) (Replenishment, error)

	CreateSubmission(s Submission) (Submission, error)
	Submission(id string) (Submission, error)
	// TransitionSubmission moves id from one status to another only when the
	// current status equals from, otherwise ErrInvalidTransition.
	TransitionSubmission(id string, from, to Status, res Resolution) (Submission, error)
}

// Store is the storage abstraction shared by the engine and the read side.
// Reads only ever observe committed state.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error

	Balance(ctx context.Context, account string) (decimal.Decimal, error)
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)
	Transfers(ctx context.Context) ([]Transfer, error)
	TransfersFor(ctx context.Context, account string) ([]Transfer, error)
	Replenishments(ctx context.Context) ([]Replenishment, error)
	Submission(ctx context.Context, id string) (Submission, error)
	Submissions(ctx context.Context) ([]Submission, error)

	Close() error
}

// ID prefixes for generated identifiers.
const (
	SubmissionIDPrefix    = "MPESA"
	TransferIDPrefix      = "TR"
	ReplenishmentIDPrefix = "RP"
)

// IDSequence hands out time-derived identifiers for the in-memory store. They
// never repeat within a process, even when called several times in the same
// millisecond. The Postgres store draws from a database sequence instead.
type IDSequence struct {
	mu     sync.Mutex
	prefix string
	last   int64
	now    func() time.Time
}

// NewIDSequence creates a sequence producing "<prefix>-<unix millis>" ids.
func NewIDSequence(prefix string, now func() time.Time) *IDSequence {
	if now == nil {
		now = time.Now
	}
	return &IDSequence{prefix: prefix, now: now}
}

// Next returns the next identifier.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return fmt.Sprintf("%s-%d", s.prefix, ms)
}

type options struct {
	now func() time.Time
}

// Option customises a store.
type Option func(*options)

// WithClock overrides the time source used for timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type sequences struct {
	submissions    *IDSequence
	transfers      *IDSequence
	replenishments *IDSequence
}

func newSequences(now func() time.Time) sequences {
	return sequences{
		submissions:    NewIDSequence(SubmissionIDPrefix, now),
		transfers:      NewIDSequence(TransferIDPrefix, now),
		replenishments: NewIDSequence(ReplenishmentIDPrefix, now),
	}
}

func validateTransfer(t Transfer) error {
	if t.From == "" {
		return Invalid("from", "account is required")
	}
	if t.To == "" {
		return Invalid("to", "account is required")
	}
	if t.From == t.To {
		return Invalid("to", "must differ from source account")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, t.Amount)
	}
	return nil
}

func validateReplenishment(r Replenishment) error {
	if r.Account == "" {
		return Invalid("account", "account is required")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, r.Amount)
	}
	return nil
}
