package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu             sync.RWMutex
	closed         bool
	balances       map[string]decimal.Decimal
	transfers      []Transfer
	replenishments []Replenishment
	submissions    map[string]Submission
	order          []string

	opts options
	ids  sequences
}

// NewInMemory creates a concurrency-safe in-memory store. Writers are
// serialized by a single lock; a unit of work stages its writes and applies
// them only when fn succeeds.
func NewInMemory(opts ...Option) Store {
	o := buildOptions(opts)
	return &inMemoryLedger{
		balances:    make(map[string]decimal.Decimal),
		submissions: make(map[string]Submission),
		opts:        o,
		ids:         newSequences(o.now),
	}
}

func (l *inMemoryLedger) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}

	tx := &memoryTx{
		l:           l,
		balances:    make(map[string]decimal.Decimal),
		submissions: make(map[string]Submission),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, account string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return decimal.Zero, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	return l.balances[account], nil
}

func (l *inMemoryLedger) Balances(_ context.Context) (map[string]decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	out := make(map[string]decimal.Decimal, len(l.balances))
	for k, v := range l.balances {
		out[k] = v
	}
	return out, nil
}

func (l *inMemoryLedger) Transfers(_ context.Context) ([]Transfer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	return append([]Transfer(nil), l.transfers...), nil
}

func (l *inMemoryLedger) TransfersFor(_ context.Context, account string) ([]Transfer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	var out []Transfer
	for _, t := range l.transfers {
		if t.Involves(account) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (l *inMemoryLedger) Replenishments(_ context.Context) ([]Replenishment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	return append([]Replenishment(nil), l.replenishments...), nil
}

func (l *inMemoryLedger) Submission(_ context.Context, id string) (Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return Submission{}, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	s, ok := l.submissions[id]
	if !ok {
		return Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

func (l *inMemoryLedger) Submissions(_ context.Context) ([]Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	out := make([]Submission, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.submissions[id])
	}
	return out, nil
}

func (l *inMemoryLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// memoryTx runs with the store's write lock held.
type memoryTx struct {
	l              *inMemoryLedger
	balances       map[string]decimal.Decimal
	submissions    map[string]Submission
	created        []string
	transfers      []Transfer
	replenishments []Replenishment
}

func (tx *memoryTx) Balance(account string) (decimal.Decimal, error) {
	if b, ok := tx.balances[account]; ok {
		return b, nil
	}
	return tx.l.balances[account], nil
}

func (tx *memoryTx) AdjustBalance(account string, delta decimal.Decimal) (decimal.Decimal, error) {
	if account == "" {
		return decimal.Zero, Invalid("account", "account is required")
	}
	current, _ := tx.Balance(account)
	next := current.Add(delta)
	if next.IsNegative() {
		return current, fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, account, current, delta.Neg())
	}
	tx.balances[account] = next
	return next, nil
}

func (tx *memoryTx) AppendTransfer(t Transfer) (Transfer, error) {
	if err := validateTransfer(t); err != nil {
		return Transfer{}, err
	}
	if t.ID == "" {
		t.ID = tx.l.ids.transfers.Next()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = tx.l.opts.now()
	}
	tx.transfers = append(tx.transfers, t)
	return t, nil
}

func (tx *memoryTx) AppendReplenishment(r Replenishment) (Replenishment, error) {
	if err := validateReplenishment(r); err != nil {
		return Replenishment{}, err
	}
	if r.ID == "" {
		r.ID = tx.l.ids.replenishments.Next()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = tx.l.opts.now()
	}
	tx.replenishments = append(tx.replenishments, r)
	return r, nil
}

func (tx *memoryTx) CreateSubmission(s Submission) (Submission, error) {
	if s.ID == "" {
		s.ID = tx.l.ids.submissions.Next()
	}
	if _, err := tx.Submission(s.ID); err == nil {
		return Submission{}, Invalid("id", "submission "+s.ID+" already exists")
	}
	s.Status = StatusPending
	if s.CreatedAt.IsZero() {
		s.CreatedAt = tx.l.opts.now()
	}
	tx.submissions[s.ID] = s
	tx.created = append(tx.created, s.ID)
	return s, nil
}

func (tx *memoryTx) Submission(id string) (Submission, error) {
	if s, ok := tx.submissions[id]; ok {
		return s, nil
	}
	if s, ok := tx.l.submissions[id]; ok {
		return s, nil
	}
	return Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (tx *memoryTx) TransitionSubmission(id string, from, to Status, res Resolution) (Submission, error) {
	if !CanTransition(from, to) {
		return Submission{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s, err := tx.Submission(id)
	if err != nil {
		return Submission{}, err
	}
	if s.Status != from {
		return Submission{}, fmt.Errorf("%w: %s is %s, expected %s", ErrInvalidTransition, id, s.Status, from)
	}
	s.Status = to
	if res.By != "" {
		s.ResolvedBy.SetValid(res.By)
	}
	at := res.At
	if at.IsZero() {
		at = tx.l.opts.now()
	}
	s.ResolvedAt.SetValid(at)
	tx.submissions[id] = s
	return s, nil
}

func (tx *memoryTx) apply() {
	l := tx.l
	for a, b := range tx.balances {
		l.balances[a] = b
	}
	for id, s := range tx.submissions {
		l.submissions[id] = s
	}
	l.order = append(l.order, tx.created...)
	l.transfers = append(l.transfers, tx.transfers...)
	l.replenishments = append(l.replenishments, tx.replenishments...)
}
