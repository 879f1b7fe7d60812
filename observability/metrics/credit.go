package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CreditMetrics struct {
	actions       *prometheus.CounterVec
	actionErrors  *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	liquidations  *prometheus.CounterVec
	totalDeposits prometheus.Gauge
}

var (
	creditOnce     sync.Once
	creditRegistry *CreditMetrics
)

func Credit() *CreditMetrics {
	creditOnce.Do(func() {
		creditRegistry = &CreditMetrics{
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tenorbook",
				Subsystem: "credit",
				Name:      "actions_total",
				Help:      "Count of executed market actions by name.",
			}, []string{"action"}),
			actionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tenorbook",
				Subsystem: "credit",
				Name:      "action_errors_total",
				Help:      "Count of failed market actions by name.",
			}, []string{"action"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "tenorbook",
				Subsystem: "credit",
				Name:      "action_duration_seconds",
				Help:      "Execution latency of market actions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"action"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tenorbook",
				Subsystem: "credit",
				Name:      "liquidations_total",
				Help:      "Count of liquidations by kind.",
			}, []string{"kind"}),
			totalDeposits: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "tenorbook",
				Subsystem: "credit",
				Name:      "total_cash_deposits",
				Help:      "Current borrow-token deposits held by the ledger.",
			}),
		}
		prometheus.MustRegister(
			creditRegistry.actions,
			creditRegistry.actionErrors,
			creditRegistry.latency,
			creditRegistry.liquidations,
			creditRegistry.totalDeposits,
		)
	})
	return creditRegistry
}

func (m *CreditMetrics) ObserveAction(action string, seconds float64) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.actions.WithLabelValues(action).Inc()
	m.latency.WithLabelValues(action).Observe(seconds)
}

func (m *CreditMetrics) ObserveActionError(action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "unknown"
	}
	m.actionErrors.WithLabelValues(action).Inc()
}

func (m *CreditMetrics) ObserveLiquidation(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.liquidations.WithLabelValues(kind).Inc()
}

func (m *CreditMetrics) SetTotalDeposits(amount float64) {
	if m == nil {
		return
	}
	m.totalDeposits.Set(amount)
}
