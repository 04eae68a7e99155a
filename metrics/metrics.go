// Package metrics provides Prometheus metrics for the star engine.
//
// A nil *Manager is valid and records nothing, so the service and the
// scheduler never need to check whether metrics are wired.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for latency histograms (seconds).
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}

// Manager owns a private registry and every engine metric.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	salesScored     *prometheus.CounterVec // by category
	salesRejected   *prometheus.CounterVec // by reason
	starsAwarded    *prometheus.CounterVec // by source: sale, award, bonus, manual, reset
	awardsCommitted *prometheus.CounterVec // by kind
	bonusRewritten  prometheus.Counter
	batchFailures   *prometheus.CounterVec // by operation
	pendingReviews  prometheus.Gauge

	opLatency *prometheus.HistogramVec // by operation
}

// NewManager creates a manager registered on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "stars",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.salesScored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "sales_scored_total",
		Help:      "Sales accepted and scored, by category",
	}, []string{"category"})

	m.salesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "sales_rejected_total",
		Help:      "Sales rejected before scoring, by reason",
	}, []string{"reason"})

	m.starsAwarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "stars_delta_total",
		Help:      "Sum of absolute star deltas applied to ledgers, by source",
	}, []string{"source"})

	m.awardsCommitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "awards_committed_total",
		Help:      "Period awards committed, by award kind",
	}, []string{"kind"})

	m.bonusRewritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "bonus_events_rewritten_total",
		Help:      "Events rewritten by retroactive bonus jobs and their reversals",
	})

	m.batchFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "batch_failures_total",
		Help:      "Batch jobs that stopped after a failed chunk, by operation",
	}, []string{"operation"})

	m.pendingReviews = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "pending_award_reviews",
		Help:      "Closed periods waiting for an operator award decision",
	})

	m.opLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "operation_duration_seconds",
		Help:      "Service operation latency in seconds, by operation",
		Buckets:   m.buckets,
	}, []string{"operation"})

	return m
}

func (m *Manager) SaleScored(category string) {
	if m == nil {
		return
	}
	m.salesScored.WithLabelValues(category).Inc()
}

func (m *Manager) SaleRejected(reason string) {
	if m == nil {
		return
	}
	m.salesRejected.WithLabelValues(reason).Inc()
}

// StarsDelta records the magnitude of a ledger change.
func (m *Manager) StarsDelta(source string, delta int) {
	if m == nil || delta == 0 {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	m.starsAwarded.WithLabelValues(source).Add(float64(delta))
}

func (m *Manager) AwardCommitted(kind string) {
	if m == nil {
		return
	}
	m.awardsCommitted.WithLabelValues(kind).Inc()
}

func (m *Manager) BonusRewritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bonusRewritten.Add(float64(n))
}

func (m *Manager) BatchFailure(operation string) {
	if m == nil {
		return
	}
	m.batchFailures.WithLabelValues(operation).Inc()
}

func (m *Manager) SetPendingReviews(n int) {
	if m == nil {
		return
	}
	m.pendingReviews.Set(float64(n))
}

// ObserveOperation records the time since start. Use with defer:
//
//	defer m.ObserveOperation("submit_sale", time.Now())
func (m *Manager) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.opLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Registry exposes the private registry, e.g. for tests.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})
}
