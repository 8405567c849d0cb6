package observability

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gig",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gig",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gig",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gig",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. A zero code marks success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// LedgerMetrics tracks state-changing ledger operations and custody
// settlement volume.
type LedgerMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	settled     *prometheus.CounterVec
	events      prometheus.Counter
}

// NewLedgerMetrics builds the ledger collectors and registers them with reg.
// A nil registerer skips registration.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gig",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations segmented by module, operation, and outcome.",
		}, []string{"module", "operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gig",
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution for ledger operations including commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"module", "operation"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gig",
			Subsystem: "escrow",
			Name:      "custody_transitions_total",
			Help:      "Custody records entering each status.",
		}, []string{"status"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gig",
			Subsystem: "escrow",
			Name:      "settled_amount_total",
			Help:      "Token units paid out of custody segmented by destination.",
		}, []string{"destination"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gig",
			Subsystem: "ledger",
			Name:      "events_committed_total",
			Help:      "Events appended to the committed event log.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.latency, m.transitions, m.settled, m.events)
	}
	return m
}

// Ledger returns the process-wide ledger metrics registered with the default
// Prometheus registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = NewLedgerMetrics(prometheus.DefaultRegisterer)
	})
	return ledgerRegistry
}

// ObserveOperation records one ledger operation. outcome is "success" or an
// error kind such as "unauthorized".
func (m *LedgerMetrics) ObserveOperation(module, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "success"
	}
	m.operations.WithLabelValues(module, operation, outcome).Inc()
	m.latency.WithLabelValues(module, operation).Observe(duration.Seconds())
}

// RecordTransition increments the counter for custody records entering status.
func (m *LedgerMetrics) RecordTransition(status string) {
	if m == nil || status == "" {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RecordSettlement adds amount to the settled volume for destination
// ("freelancer", "fee" or "refund").
func (m *LedgerMetrics) RecordSettlement(destination string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	value, _ := new(big.Float).SetInt(amount).Float64()
	m.settled.WithLabelValues(destination).Add(value)
}

// RecordEvents adds n committed events.
func (m *LedgerMetrics) RecordEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.events.Add(float64(n))
}
