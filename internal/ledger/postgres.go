package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger persists balances, transfers, replenishments and submissions
// in PostgreSQL. Each Update runs in one database transaction.
type PostgresLedger struct {
	db   *pgxpool.Pool
	opts options
}

// NewPostgres constructs a Postgres-backed store. The schema is created by the
// migrations in internal/infra.
func NewPostgres(db *pgxpool.Pool, opts ...Option) *PostgresLedger {
	o := buildOptions(opts)
	return &PostgresLedger{db: db, opts: o}
}

const submissionColumns = `id, name, phone, email, source_amount, credited_amount, tx_ref, screenshot,
        status, created_at, resolved_by, resolved_at`

// Update runs fn inside a transaction and commits when fn returns nil.
func (l *PostgresLedger) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresTx{ctx: ctx, tx: tx, l: l}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Balance returns the committed balance, zero for unknown accounts.
func (l *PostgresLedger) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := l.db.QueryRow(ctx, `SELECT amount FROM balances WHERE account = $1`, account).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, storageErr(err)
	}
	return amount, nil
}

// Balances lists every known account balance.
func (l *PostgresLedger) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := l.db.Query(ctx, `SELECT account, amount FROM balances ORDER BY account`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			account string
			amount  decimal.Decimal
		)
		if err := rows.Scan(&account, &amount); err != nil {
			return nil, err
		}
		out[account] = amount
	}
	return out, storageErr(rows.Err())
}

// Transfers lists the transfer log in append order.
func (l *PostgresLedger) Transfers(ctx context.Context) ([]Transfer, error) {
	return l.queryTransfers(ctx, `SELECT id, from_account, to_account, amount, created_at, submission_id
        FROM transfers ORDER BY seq`)
}

// TransfersFor lists the transfers where account is the source or the destination.
func (l *PostgresLedger) TransfersFor(ctx context.Context, account string) ([]Transfer, error) {
	return l.queryTransfers(ctx, `SELECT id, from_account, to_account, amount, created_at, submission_id
        FROM transfers WHERE from_account = $1 OR to_account = $1 ORDER BY seq`, account)
}

func (l *PostgresLedger) queryTransfers(ctx context.Context, query string, args ...any) ([]Transfer, error) {
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.From, &t.To, &t.Amount, &t.CreatedAt, &t.SubmissionID); err != nil {
			return nil, err
		}
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, storageErr(rows.Err())
}

// Replenishments lists every audited mint in append order.
func (l *PostgresLedger) Replenishments(ctx context.Context) ([]Replenishment, error) {
	rows, err := l.db.Query(ctx, `SELECT id, account, amount, previous_balance, new_balance, actor, reason,
        created_at, submission_id FROM replenishments ORDER BY seq`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Replenishment
	for rows.Next() {
		var r Replenishment
		if err := rows.Scan(&r.ID, &r.Account, &r.Amount, &r.PreviousBalance, &r.NewBalance, &r.Actor, &r.Reason,
			&r.CreatedAt, &r.SubmissionID); err != nil {
			return nil, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, storageErr(rows.Err())
}

// Submission loads a single submission.
func (l *PostgresLedger) Submission(ctx context.Context, id string) (Submission, error) {
	row := l.db.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Submission{}, storageErr(err)
	}
	return s, nil
}

// Submissions lists every submission in creation order.
func (l *PostgresLedger) Submissions(ctx context.Context) ([]Submission, error) {
	rows, err := l.db.Query(ctx, `SELECT `+submissionColumns+` FROM submissions ORDER BY seq`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, storageErr(rows.Err())
}

// Close is a no-op; the pool is owned and closed by the caller.
func (l *PostgresLedger) Close() error {
	return nil
}

type postgresTx struct {
	ctx context.Context
	tx  pgx.Tx
	l   *PostgresLedger
}

// Balance locks the account row for the rest of the transaction.
func (t *postgresTx) Balance(account string) (decimal.Decimal, error) {
	if err := t.ensureAccount(account); err != nil {
		return decimal.Zero, err
	}
	var amount decimal.Decimal
	if err := t.tx.QueryRow(t.ctx, `SELECT amount FROM balances WHERE account = $1 FOR UPDATE`, account).Scan(&amount); err != nil {
		return decimal.Zero, storageErr(err)
	}
	return amount, nil
}

func (t *postgresTx) AdjustBalance(account string, delta decimal.Decimal) (decimal.Decimal, error) {
	if account == "" {
		return decimal.Zero, Invalid("account", "account is required")
	}
	if err := t.ensureAccount(account); err != nil {
		return decimal.Zero, err
	}
	var amount decimal.Decimal
	err := t.tx.QueryRow(t.ctx, `UPDATE balances SET amount = amount + $2, updated_at = now()
        WHERE account = $1 AND amount + $2 >= 0 RETURNING amount`, account, delta).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s cannot cover %s", ErrInsufficientFunds, account, delta.Neg())
		}
		return decimal.Zero, storageErr(err)
	}
	return amount, nil
}

func (t *postgresTx) ensureAccount(account string) error {
	_, err := t.tx.Exec(t.ctx, `INSERT INTO balances (account, amount) VALUES ($1, 0)
        ON CONFLICT (account) DO NOTHING`, account)
	return storageErr(err)
}

func (t *postgresTx) AppendTransfer(tr Transfer) (Transfer, error) {
	if err := validateTransfer(tr); err != nil {
		return Transfer{}, err
	}
	if tr.ID == "" {
		id, err := t.nextID(TransferIDPrefix)
		if err != nil {
			return Transfer{}, err
		}
		tr.ID = id
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = t.l.opts.now()
	}
	_, err := t.tx.Exec(t.ctx, `INSERT INTO transfers (id, from_account, to_account, amount, created_at, submission_id)
        VALUES ($1, $2, $3, $4, $5, $6)`, tr.ID, tr.From, tr.To, tr.Amount, tr.CreatedAt, tr.SubmissionID)
	if err != nil {
		return Transfer{}, insertErr(err, "transfer", tr.ID)
	}
	return tr, nil
}

func (t *postgresTx) AppendReplenishment(r Replenishment) (Replenishment, error) {
	if err := validateReplenishment(r); err != nil {
		return Replenishment{}, err
	}
	if r.ID == "" {
		id, err := t.nextID(ReplenishmentIDPrefix)
		if err != nil {
			return Replenishment{}, err
		}
		r.ID = id
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.l.opts.now()
	}
	_, err := t.tx.Exec(t.ctx, `INSERT INTO replenishments (id, account, amount, previous_balance, new_balance,
        actor, reason, created_at, submission_id) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.Account, r.Amount, r.PreviousBalance, r.NewBalance, r.Actor, r.Reason, r.CreatedAt, r.SubmissionID)
	if err != nil {
		return Replenishment{}, insertErr(err, "replenishment", r.ID)
	}
	return r, nil
}

func (t *postgresTx) CreateSubmission(s Submission) (Submission, error) {
	if s.ID == "" {
		id, err := t.nextID(SubmissionIDPrefix)
		if err != nil {
			return Submission{}, err
		}
		s.ID = id
	}
	s.Status = StatusPending
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.l.opts.now()
	}
	_, err := t.tx.Exec(t.ctx, `INSERT INTO submissions (id, name, phone, email, source_amount, credited_amount,
        tx_ref, screenshot, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.Name, s.Phone, s.Email, s.SourceAmount, s.CreditedAmount, s.TxRef, s.Screenshot, s.Status, s.CreatedAt)
	if err != nil {
		return Submission{}, insertErr(err, "submission", s.ID)
	}
	return s, nil
}

// Submission locks the submission row so concurrent verifications serialize on it.
func (t *postgresTx) Submission(id string) (Submission, error) {
	row := t.tx.QueryRow(t.ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, id)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Submission{}, storageErr(err)
	}
	return s, nil
}

func (t *postgresTx) TransitionSubmission(id string, from, to Status, res Resolution) (Submission, error) {
	if !CanTransition(from, to) {
		return Submission{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	at := res.At
	if at.IsZero() {
		at = t.l.opts.now()
	}
	var by *string
	if res.By != "" {
		by = &res.By
	}
	row := t.tx.QueryRow(t.ctx, `UPDATE submissions SET status = $3, resolved_by = $4, resolved_at = $5
        WHERE id = $1 AND status = $2 RETURNING `+submissionColumns, id, from, to, by, at)
	s, err := scanSubmission(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Submission{}, storageErr(err)
	}

	current, err := t.Submission(id)
	if err != nil {
		return Submission{}, err
	}
	return Submission{}, fmt.Errorf("%w: %s is %s, expected %s", ErrInvalidTransition, id, current.Status, from)
}

func scanSubmission(row pgx.Row) (Submission, error) {
	var s Submission
	err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.SourceAmount, &s.CreditedAmount, &s.TxRef, &s.Screenshot,
		&s.Status, &s.CreatedAt, &s.ResolvedBy, &s.ResolvedAt)
	if err != nil {
		return Submission{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	if s.ResolvedAt.Valid {
		s.ResolvedAt.Time = s.ResolvedAt.Time.UTC()
	}
	return s, nil
}

// nextID draws from the database sequence, so processes sharing the schema
// never hand out the same id.
func (t *postgresTx) nextID(prefix string) (string, error) {
	var n int64
	if err := t.tx.QueryRow(t.ctx, `SELECT nextval('ledger_id_seq')`).Scan(&n); err != nil {
		return "", storageErr(err)
	}
	return fmt.Sprintf("%s-%d-%d", prefix, t.l.opts.now().UnixMilli(), n), nil
}

const uniqueViolation = "23505"

// insertErr reports a primary key clash as invalid input instead of an
// unclassified failure.
func insertErr(err error, kind, id string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Invalid("id", kind+" "+id+" already exists")
	}
	return storageErr(err)
}

// storageErr tags connectivity failures so callers can tell them apart from
// domain errors.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
