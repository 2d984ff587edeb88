package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics holds every collector exported by the service. A nil *Metrics is
// valid and records nothing, so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	verifications *prometheus.CounterVec
	credited      prometheus.Counter
	replenished   *prometheus.CounterVec
	rejections    prometheus.Counter
	notifications *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_verifications_total",
			Help: "Verification attempts, labeled by mode and outcome",
		}, []string{"mode", "outcome"}),
		credited: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_credited_amount_total",
			Help: "Sum of amounts credited by successful verifications",
		}),
		replenished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_issuer_replenished_amount_total",
			Help: "Amount minted into the issuing account, labeled by reason",
		}, []string{"reason"}),
		rejections: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_rejections_total",
			Help: "Submissions rejected by an administrator",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_notifications_total",
			Help: "Notification deliveries, labeled by outcome",
		}, []string{"outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total HTTP requests processed, labeled by status code",
		}, []string{"method", "route", "status"}),
		httpDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "Latency distribution of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveVerification counts one verification attempt.
func (m *Metrics) ObserveVerification(mode, outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(mode, outcome).Inc()
}

// AddCredited adds a committed credit to the running total.
func (m *Metrics) AddCredited(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.credited.Add(amount.InexactFloat64())
}

// AddReplenished records value minted into the issuing account.
func (m *Metrics) AddReplenished(reason string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.replenished.WithLabelValues(reason).Add(amount.InexactFloat64())
}

// IncRejections counts a rejected submission.
func (m *Metrics) IncRejections() {
	if m == nil {
		return
	}
	m.rejections.Inc()
}

// ObserveNotification counts a notification outcome (delivered, failed, skipped).
func (m *Metrics) ObserveNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
