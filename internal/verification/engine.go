package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guregu/null"
	"github.com/shopspring/decimal"

	"github.com/leeglobal/lee_ledger/internal/identity"
	"github.com/leeglobal/lee_ledger/internal/ledger"
	"github.com/leeglobal/lee_ledger/internal/metrics"
	"github.com/leeglobal/lee_ledger/internal/notification"
)

// Mode selects how an insufficient issuing balance is handled.
type Mode string

const (
	// ModeAutomatic runs right after submission. Running out of funds moves
	// the submission to failed.
	ModeAutomatic Mode = "automatic"
	// ModeManual is an administrator action. Running out of funds leaves the
	// submission pending so it can be retried after a seed.
	ModeManual Mode = "manual"
)

// SystemResolver is the resolver identity recorded for automatic verifications
// and automatic top-ups.
const SystemResolver = "system"

// DefaultCeiling is the level the issuing account is topped up to.
var DefaultCeiling = decimal.NewFromInt(1_000_000_000)

// Config holds the issuing account policy.
type Config struct {
	IssuerAccount string
	// Ceiling is the balance the issuer is raised to when it cannot cover a
	// verification. Zero disables automatic top-ups.
	Ceiling decimal.Decimal
}

// Dispatcher queues post-commit notifications. *notification.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(message notification.Message)
}

// LinkBuilder returns the dashboard URL for an account.
type LinkBuilder func(account string) (string, error)

// Engine moves value from the issuing account to recipients exactly once per
// submission.
type Engine struct {
	store      ledger.Store
	cfg        Config
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	links      LinkBuilder
	now        func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

func WithDispatcher(d Dispatcher) Option { return func(e *Engine) { e.dispatcher = d } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithDashboardLinks(b LinkBuilder) Option { return func(e *Engine) { e.links = b } }

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine wires an engine over store.
func NewEngine(store ledger.Store, cfg Config, opts ...Option) *Engine {
	if cfg.IssuerAccount == "" {
		cfg.IssuerAccount = ledger.DefaultIssuerAccount
	}
	if cfg.Ceiling.IsNegative() {
		cfg.Ceiling = decimal.Zero
	}
	e := &Engine{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IssuerAccount returns the reserved issuing account key.
func (e *Engine) IssuerAccount() string { return e.cfg.IssuerAccount }

// Ceiling returns the configured top-up ceiling.
func (e *Engine) Ceiling() decimal.Decimal { return e.cfg.Ceiling }

// Request describes one verification attempt.
type Request struct {
	SubmissionID string
	// Resolver is the authenticated identity recorded on the submission.
	Resolver string
	// Recipient picks the credited account.
	Recipient identity.RecipientResolver
	Mode      Mode
}

type verifyResult struct {
	transfer  ledger.Transfer
	topUp     *ledger.Replenishment
	failed    bool
	recipient string
}

// Verify converts a pending submission into a transfer. All balance, transfer
// and status effects commit together. A second attempt for the same submission
// fails with ledger.ErrNotPending and changes nothing.
func (e *Engine) Verify(ctx context.Context, req Request) (ledger.Transfer, error) {
	if req.Mode == "" {
		req.Mode = ModeManual
	}
	if req.Resolver == "" {
		req.Resolver = SystemResolver
	}
	if req.Recipient == nil {
		return ledger.Transfer{}, ledger.Invalid("recipient", "a recipient resolver is required")
	}

	var res verifyResult
	err := e.store.Update(ctx, func(tx ledger.Tx) error {
		res = verifyResult{}
		return e.verify(tx, req, &res)
	})

	if err == nil && res.topUp != nil {
		e.metrics.AddReplenished(res.topUp.Reason, res.topUp.Amount)
		e.logger.Info("issuer topped up",
			slog.String("account", res.topUp.Account),
			slog.String("amount", res.topUp.Amount.String()),
			slog.String("submission_id", req.SubmissionID),
		)
	}

	if errors.Is(err, ledger.ErrInvalidTransition) {
		err = fmt.Errorf("%w: %s", ledger.ErrNotPending, req.SubmissionID)
	}

	switch {
	case err != nil:
		e.metrics.ObserveVerification(string(req.Mode), outcomeOf(err))
		return ledger.Transfer{}, err
	case res.failed:
		e.metrics.ObserveVerification(string(req.Mode), "failed")
		e.logger.Warn("submission failed: issuing account cannot cover amount",
			slog.String("submission_id", req.SubmissionID),
		)
		return ledger.Transfer{}, fmt.Errorf("verify %s: %w", req.SubmissionID, ledger.ErrInsufficientFunds)
	}

	e.metrics.ObserveVerification(string(req.Mode), "verified")
	e.metrics.AddCredited(res.transfer.Amount)
	e.logger.Info("submission verified",
		slog.String("submission_id", req.SubmissionID),
		slog.String("transfer_id", res.transfer.ID),
		slog.String("recipient", res.recipient),
		slog.String("amount", res.transfer.Amount.String()),
		slog.String("resolver", req.Resolver),
		slog.String("mode", string(req.Mode)),
	)
	e.notifyCredited(res.transfer)
	return res.transfer, nil
}

func (e *Engine) verify(tx ledger.Tx, req Request, res *verifyResult) error {
	sub, err := tx.Submission(req.SubmissionID)
	if err != nil {
		return err
	}
	if sub.Status != ledger.StatusPending {
		return fmt.Errorf("%w: %s is %s", ledger.ErrNotPending, sub.ID, sub.Status)
	}

	amount := sub.Amount()
	if err := ledger.CheckAmount(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ledger.ErrInvalidAmount, amount)
	}

	recipient, err := req.Recipient(sub)
	if err != nil {
		return err
	}
	if recipient == "" {
		return ledger.Invalid("recipient", "could not determine recipient account")
	}
	if recipient == e.cfg.IssuerAccount {
		return ledger.Invalid("recipient", "must differ from the issuing account")
	}
	res.recipient = recipient

	issuer := e.cfg.IssuerAccount
	available, err := tx.Balance(issuer)
	if err != nil {
		return err
	}
	if available.LessThan(amount) && available.LessThan(e.cfg.Ceiling) {
		r, err := e.raiseIssuer(tx, available, e.cfg.Ceiling, SystemResolver, ledger.ReasonAutoTopUp, null.StringFrom(sub.ID))
		if err != nil {
			return err
		}
		res.topUp = &r
		available = r.NewBalance
	}

	resolution := ledger.Resolution{By: req.Resolver, At: e.now()}
	if available.LessThan(amount) {
		if req.Mode != ModeAutomatic {
			return fmt.Errorf("verify %s: %w", sub.ID, ledger.ErrInsufficientFunds)
		}
		if _, err := tx.TransitionSubmission(sub.ID, ledger.StatusPending, ledger.StatusFailed, resolution); err != nil {
			return err
		}
		res.failed = true
		return nil
	}

	if _, err := tx.AdjustBalance(issuer, amount.Neg()); err != nil {
		return err
	}
	if _, err := tx.AdjustBalance(recipient, amount); err != nil {
		return err
	}
	transfer, err := tx.AppendTransfer(ledger.Transfer{
		From:         issuer,
		To:           recipient,
		Amount:       amount,
		SubmissionID: null.StringFrom(sub.ID),
	})
	if err != nil {
		return err
	}
	if _, err := tx.TransitionSubmission(sub.ID, ledger.StatusPending, ledger.StatusVerified, resolution); err != nil {
		return err
	}
	res.transfer = transfer
	return nil
}

// Reject closes a pending submission without touching balances.
func (e *Engine) Reject(ctx context.Context, submissionID, resolver string) (ledger.Submission, error) {
	if resolver == "" {
		resolver = SystemResolver
	}
	var out ledger.Submission
	err := e.store.Update(ctx, func(tx ledger.Tx) error {
		sub, err := tx.Submission(submissionID)
		if err != nil {
			return err
		}
		if sub.Status != ledger.StatusPending {
			return fmt.Errorf("%w: %s is %s", ledger.ErrNotPending, sub.ID, sub.Status)
		}
		out, err = tx.TransitionSubmission(sub.ID, ledger.StatusPending, ledger.StatusRejected, ledger.Resolution{By: resolver, At: e.now()})
		return err
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidTransition) {
			return ledger.Submission{}, fmt.Errorf("%w: %s", ledger.ErrNotPending, submissionID)
		}
		return ledger.Submission{}, err
	}
	e.metrics.IncRejections()
	e.logger.Info("submission rejected",
		slog.String("submission_id", submissionID),
		slog.String("resolver", resolver),
	)
	return out, nil
}

// SeedIssuingAccount raises the issuing balance to minimum when it is lower.
// It returns nil when the balance already meets minimum.
func (e *Engine) SeedIssuingAccount(ctx context.Context, minimum decimal.Decimal, actor string) (*ledger.Replenishment, error) {
	if err := ledger.CheckAmount(minimum); err != nil {
		return nil, err
	}
	if minimum.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ledger.ErrInvalidAmount, minimum)
	}
	if actor == "" {
		actor = SystemResolver
	}
	var seeded *ledger.Replenishment
	err := e.store.Update(ctx, func(tx ledger.Tx) error {
		seeded = nil
		current, err := tx.Balance(e.cfg.IssuerAccount)
		if err != nil {
			return err
		}
		if !current.LessThan(minimum) {
			return nil
		}
		r, err := e.raiseIssuer(tx, current, minimum, actor, ledger.ReasonSeed, null.String{})
		if err != nil {
			return err
		}
		seeded = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if seeded != nil {
		e.metrics.AddReplenished(seeded.Reason, seeded.Amount)
		e.logger.Info("issuer seeded",
			slog.String("account", seeded.Account),
			slog.String("new_balance", seeded.NewBalance.String()),
			slog.String("actor", actor),
		)
	}
	return seeded, nil
}

func (e *Engine) raiseIssuer(tx ledger.Tx, current, target decimal.Decimal, actor, reason string, submissionID null.String) (ledger.Replenishment, error) {
	delta := target.Sub(current)
	newBalance, err := tx.AdjustBalance(e.cfg.IssuerAccount, delta)
	if err != nil {
		return ledger.Replenishment{}, err
	}
	return tx.AppendReplenishment(ledger.Replenishment{
		Account:         e.cfg.IssuerAccount,
		Amount:          delta,
		PreviousBalance: current,
		NewBalance:      newBalance,
		Actor:           actor,
		Reason:          reason,
		SubmissionID:    submissionID,
	})
}

func (e *Engine) notifyCredited(t ledger.Transfer) {
	if e.dispatcher == nil {
		return
	}
	msg := notification.Message{
		Kind:        notification.KindTransferCredited,
		Destination: t.To,
		Subject:     "Your LEE credit has been applied",
		Body:        fmt.Sprintf("%s LEE has been credited to your account (transfer %s).", t.Amount.String(), t.ID),
	}
	if e.links != nil {
		link, err := e.links(t.To)
		if err != nil {
			e.logger.Warn("dashboard link", slog.String("account", t.To), slog.Any("error", err))
		} else {
			msg.Link = link
		}
	}
	e.dispatcher.Dispatch(msg)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ledger.ErrNotPending), errors.Is(err, ledger.ErrInvalidTransition):
		return "not_pending"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
