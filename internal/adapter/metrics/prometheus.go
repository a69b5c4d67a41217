// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"settlement-gateway/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settlement"

// Prometheus implements ports.Metrics.
type Prometheus struct {
	transitions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	ledgerCalls *prometheus.HistogramVec
	webhooks    *prometheus.HistogramVec
	reconciled  *prometheus.CounterVec
	gatherer    prometheus.Gatherer
}

// New registers the engine collectors on reg. A nil reg gets a private
// registry, which keeps tests independent of the global one.
func New(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Prometheus{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_transitions_total",
			Help:      "Payment lifecycle transitions applied.",
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_conflicts_total",
			Help:      "Guarded updates lost to a concurrent writer.",
		}, []string{"op"}),
		ledgerCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_call_duration_seconds",
			Help:      "Ledger node call latency by operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		webhooks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_attempt_duration_seconds",
			Help:      "Webhook delivery attempt latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_payments_total",
			Help:      "Payments advanced by the reconciler.",
		}, []string{"kind"}),
		gatherer: reg,
	}

	reg.MustRegister(m.transitions, m.conflicts, m.ledgerCalls, m.webhooks, m.reconciled)
	return m
}

func (m *Prometheus) Transition(from, to domain.PaymentStatus) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Prometheus) Conflict(op string) {
	m.conflicts.WithLabelValues(op).Inc()
}

func (m *Prometheus) LedgerCall(op, outcome string, d time.Duration) {
	m.ledgerCalls.WithLabelValues(op, outcome).Observe(d.Seconds())
}

func (m *Prometheus) WebhookAttempt(outcome string, d time.Duration) {
	m.webhooks.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Prometheus) Reconciled(kind string, n int) {
	if n > 0 {
		m.reconciled.WithLabelValues(kind).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
