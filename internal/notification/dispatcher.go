package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"
)

// Observer receives delivery outcomes. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveNotification(outcome string)
}

// Delivery outcomes reported to the Observer.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// DispatcherOptions tunes the worker pool and retry policy.
type DispatcherOptions struct {
	Workers  int
	Attempts uint
	Delay    time.Duration
	Timeout  time.Duration
}

// Dispatcher delivers messages asynchronously on a bounded worker pool. It is
// used strictly after a ledger commit: Dispatch never blocks the caller and a
// failed delivery is only logged.
type Dispatcher struct {
	notifier Notifier
	pool     pond.Pool
	opts     DispatcherOptions
	logger   *slog.Logger
	observer Observer
}

// NewDispatcher starts a worker pool in front of notifier.
func NewDispatcher(notifier Notifier, opts DispatcherOptions, logger *slog.Logger, observer Observer) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		pool:     pond.NewPool(opts.Workers),
		opts:     opts,
		logger:   logger,
		observer: observer,
	}
}

// Dispatch queues message for delivery and returns immediately.
func (d *Dispatcher) Dispatch(message Message) {
	if d == nil || d.notifier == nil {
		return
	}
	d.pool.Submit(func() {
		d.deliver(message)
	})
}

func (d *Dispatcher) deliver(message Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	err := retry.Do(
		func() error {
			return d.notifier.Send(ctx, message)
		},
		retry.Context(ctx),
		retry.Attempts(d.opts.Attempts),
		retry.Delay(d.opts.Delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrUndeliverable) && !errors.Is(err, gobreaker.ErrOpenState)
		}),
	)

	switch {
	case err == nil:
		d.observe(OutcomeDelivered)
	case errors.Is(err, ErrUndeliverable):
		d.observe(OutcomeSkipped)
		d.log().Info("notification skipped",
			slog.String("kind", message.Kind),
			slog.String("destination", message.Destination),
			slog.Any("error", err),
		)
	default:
		d.observe(OutcomeFailed)
		d.log().Warn("notification delivery failed",
			slog.String("kind", message.Kind),
			slog.String("destination", message.Destination),
			slog.Any("error", err),
		)
	}
}

// Close waits for queued deliveries to finish.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.pool.StopAndWait()
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer.ObserveNotification(outcome)
	}
}

func (d *Dispatcher) log() *slog.Logger {
	if d.logger == nil {
		return slog.Default()
	}
	return d.logger
}
