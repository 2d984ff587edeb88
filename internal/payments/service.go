package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guregu/null"
	"github.com/shopspring/decimal"

	"github.com/leeglobal/lee_ledger/internal/identity"
	"github.com/leeglobal/lee_ledger/internal/ledger"
	"github.com/leeglobal/lee_ledger/internal/validation"
	"github.com/leeglobal/lee_ledger/internal/verification"
)

// Notes returned with a submission explaining how the dashboard link travels.
const (
	NoteEmailQueued = "Dashboard link e-mailed"
	NoteNoSMTP      = "No SMTP configured; link returned in response"
)

// Service is the access façade over the ledger engine: public submission plus
// the administrator operations and listings.
type Service struct {
	store        ledger.Store
	engine       *verification.Engine
	links        verification.LinkBuilder
	accountKey   identity.AccountKey
	manual       identity.RecipientResolver
	emailEnabled bool
	logger       *slog.Logger
}

// Options wires the optional collaborators of a Service.
type Options struct {
	Links        verification.LinkBuilder
	AccountKey   identity.AccountKey
	Placeholder  func() string
	EmailEnabled bool
	Logger       *slog.Logger
}

// NewService constructs the payments service.
func NewService(store ledger.Store, engine *verification.Engine, opts Options) *Service {
	if opts.AccountKey == nil {
		opts.AccountKey = identity.EmailAccountKey
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:        store,
		engine:       engine,
		links:        opts.Links,
		accountKey:   opts.AccountKey,
		manual:       identity.ForManualVerification(opts.Placeholder),
		emailEnabled: opts.EmailEnabled,
		logger:       opts.Logger,
	}
}

// Claim is a submitted proof of an external payment. Amounts accept JSON
// numbers or decimal strings.
type Claim struct {
	Name       string      `json:"name" validate:"max=200"`
	Phone      string      `json:"phone" validate:"max=64"`
	Email      string      `json:"email" validate:"required,email,max=254"`
	USD        json.Number `json:"usd" validate:"required,amount"`
	LEE        json.Number `json:"lee" validate:"omitempty,amount"`
	TxRef      string      `json:"txRef" validate:"max=128"`
	Screenshot string      `json:"screenshot" validate:"max=2048"`
}

// SubmitResult reports the outcome of a submission.
type SubmitResult struct {
	SubmissionID  string           `json:"id"`
	Status        ledger.Status    `json:"status"`
	Transfer      *ledger.Transfer `json:"transfer,omitempty"`
	DashboardLink string           `json:"dashboardLink,omitempty"`
	EmailQueued   bool             `json:"emailQueued"`
	Note          string           `json:"note,omitempty"`
}

// Submit records a claim and verifies it automatically, crediting the
// declared e-mail. The submission is persisted before verification so a
// storage failure during verification leaves it pending for an administrator.
// When the issuer cannot cover the amount the result carries the failed
// submission alongside ledger.ErrInsufficientFunds.
func (s *Service) Submit(ctx context.Context, claim Claim) (SubmitResult, error) {
	sub, err := toSubmission(claim)
	if err != nil {
		return SubmitResult{}, err
	}

	var created ledger.Submission
	err = s.store.Update(ctx, func(tx ledger.Tx) error {
		var err error
		created, err = tx.CreateSubmission(sub)
		return err
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("create submission: %w", err)
	}
	s.logger.Info("submission created",
		slog.String("submission_id", created.ID),
		slog.String("amount", created.Amount().String()),
	)

	result := SubmitResult{SubmissionID: created.ID, Status: ledger.StatusPending}
	transfer, err := s.engine.Verify(ctx, verification.Request{
		SubmissionID: created.ID,
		Resolver:     verification.SystemResolver,
		Recipient:    identity.ByEmail(s.accountKey),
		Mode:         verification.ModeAutomatic,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			result.Status = ledger.StatusFailed
		}
		return result, err
	}

	result.Status = ledger.StatusVerified
	result.Transfer = &transfer
	if s.links != nil {
		link, err := s.links(transfer.To)
		if err != nil {
			s.logger.Warn("dashboard link", slog.String("submission_id", created.ID), slog.Any("error", err))
		} else {
			result.DashboardLink = link
		}
	}
	if s.emailEnabled {
		result.EmailQueued = true
		result.Note = NoteEmailQueued
	} else {
		result.Note = NoteNoSMTP
	}
	return result, nil
}

func toSubmission(c Claim) (ledger.Submission, error) {
	if err := validation.Struct(c); err != nil {
		return ledger.Submission{}, err
	}
	usd, err := ledger.ParseAmount(c.USD.String())
	if err != nil {
		return ledger.Submission{}, ledger.Invalid("usd", "must be a positive number")
	}
	sub := ledger.Submission{
		Name:         optional(c.Name),
		Phone:        optional(c.Phone),
		Email:        optional(c.Email),
		SourceAmount: usd,
		TxRef:        optional(c.TxRef),
		Screenshot:   optional(c.Screenshot),
	}
	if v := strings.TrimSpace(c.LEE.String()); v != "" {
		lee, err := ledger.ParseAmount(v)
		if err != nil {
			return ledger.Submission{}, ledger.Invalid("lee", "must be a positive number")
		}
		sub.CreditedAmount = decimal.NewNullDecimal(lee)
	} else {
		sub.CreditedAmount = decimal.NewNullDecimal(usd)
	}
	return sub, nil
}

func optional(v string) null.String {
	v = strings.TrimSpace(v)
	return null.NewString(v, v != "")
}

// VerifySubmission is the administrator-triggered verification. The recipient
// is the phone number, else the external reference, else a placeholder.
func (s *Service) VerifySubmission(ctx context.Context, id, resolver string) (ledger.Transfer, error) {
	if strings.TrimSpace(id) == "" {
		return ledger.Transfer{}, ledger.Invalid("id", "is required")
	}
	return s.engine.Verify(ctx, verification.Request{
		SubmissionID: id,
		Resolver:     resolver,
		Recipient:    s.manual,
		Mode:         verification.ModeManual,
	})
}

// RejectSubmission closes a pending submission.
func (s *Service) RejectSubmission(ctx context.Context, id, resolver string) (ledger.Submission, error) {
	if strings.TrimSpace(id) == "" {
		return ledger.Submission{}, ledger.Invalid("id", "is required")
	}
	return s.engine.Reject(ctx, id, resolver)
}

// SeedIssuer raises the issuing account to minimum, a decimal string.
func (s *Service) SeedIssuer(ctx context.Context, minimum, actor string) (*ledger.Replenishment, error) {
	m, err := ledger.ParseAmount(minimum)
	if err != nil {
		return nil, ledger.Invalid("minimum", "must be a number with at most 8 decimal places")
	}
	return s.engine.SeedIssuingAccount(ctx, m, actor)
}

// Submissions lists every submission in creation order.
func (s *Service) Submissions(ctx context.Context) ([]ledger.Submission, error) {
	return s.store.Submissions(ctx)
}

// Transfers lists the transfer log.
func (s *Service) Transfers(ctx context.Context) ([]ledger.Transfer, error) {
	return s.store.Transfers(ctx)
}

// Replenishments lists every mint into the issuing account.
func (s *Service) Replenishments(ctx context.Context) ([]ledger.Replenishment, error) {
	return s.store.Replenishments(ctx)
}

// Balances lists all balances. The issuing account is always present.
func (s *Service) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	balances, err := s.store.Balances(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := balances[s.engine.IssuerAccount()]; !ok {
		balances[s.engine.IssuerAccount()] = decimal.Zero
	}
	return balances, nil
}
