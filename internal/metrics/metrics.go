// Package metrics exposes Prometheus instrumentation for the sale processor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Sale outcomes used as the "outcome" label.
const (
	OutcomeCompleted         = "completed"
	OutcomeReplayed          = "replayed"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInvalidCart       = "invalid_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeInactiveProduct   = "inactive_product"
	OutcomeNegativeTotal     = "negative_total"
	OutcomeInvalidTaxRate    = "invalid_tax_rate"
	OutcomeConflict          = "conflict_exhausted"
	OutcomeUnavailable       = "store_unreachable"
)

// SaleMetrics records sale processing signals. A nil *SaleMetrics is valid
// and records nothing.
type SaleMetrics struct {
	sales     *prometheus.CounterVec
	revenue   *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	attempts  prometheus.Histogram
	duration  *prometheus.HistogramVec
}

// NewSaleMetrics registers the sale collectors on registerer, falling back
// to the default registerer when nil.
func NewSaleMetrics(registerer prometheus.Registerer) *SaleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &SaleMetrics{
		sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velvet_pos",
			Subsystem: "sales",
			Name:      "processed_total",
			Help:      "Sale requests by store and outcome.",
		}, []string{"store_id", "outcome"}),
		revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velvet_pos",
			Subsystem: "sales",
			Name:      "revenue_total",
			Help:      "Sum of committed transaction totals.",
		}, []string{"store_id"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velvet_pos",
			Subsystem: "sales",
			Name:      "commit_conflicts_total",
			Help:      "Sale commits rejected because a document changed since it was read.",
		}, []string{"store_id"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "velvet_pos",
			Subsystem: "sales",
			Name:      "commit_attempts",
			Help:      "Read-validate-commit attempts per committed sale.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "velvet_pos",
			Subsystem: "sales",
			Name:      "duration_seconds",
			Help:      "Sale processing latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	registerer.MustRegister(m.sales, m.revenue, m.conflicts, m.attempts, m.duration)
	return m
}

// ObserveSale records the outcome and latency of one sale request.
func (m *SaleMetrics) ObserveSale(storeID, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sales.WithLabelValues(storeID, outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveCommit records a committed sale's total and how many attempts it
// took.
func (m *SaleMetrics) ObserveCommit(storeID string, total decimal.Decimal, attempts int) {
	if m == nil {
		return
	}
	m.revenue.WithLabelValues(storeID).Add(total.InexactFloat64())
	m.attempts.Observe(float64(attempts))
}

func (m *SaleMetrics) ObserveConflict(storeID string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(storeID).Inc()
}
