package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SalesMetrics records sale finalization outcomes.
type SalesMetrics struct {
	duration  prometheus.Histogram
	finalized prometheus.Counter
	failed    *prometheus.CounterVec
	rollbacks prometheus.Counter
}

// NewSalesMetrics registers the sale metrics on the provided registerer.
func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sale_finalize_duration_seconds",
		Help:    "Duration of sale finalization in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	finalized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sale_finalized_total",
		Help: "Sales finalized successfully.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_failed_total",
		Help: "Sale finalizations rejected, by reason.",
	}, []string{"reason"})
	rollbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sale_rollback_lines_total",
		Help: "Stock decrements compensated during aborted sales.",
	})
	reg.MustRegister(duration, finalized, failed, rollbacks)
	return &SalesMetrics{
		duration:  duration,
		finalized: finalized,
		failed:    failed,
		rollbacks: rollbacks,
	}
}

// ObserveFinalizeDuration records how long a finalization took.
func (s *SalesMetrics) ObserveFinalizeDuration(duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.Observe(duration.Seconds())
}

// IncFinalized increments the successful-finalization counter.
func (s *SalesMetrics) IncFinalized() {
	if s == nil || s.finalized == nil {
		return
	}
	s.finalized.Inc()
}

// IncFailed increments the failure counter for the given reason.
func (s *SalesMetrics) IncFailed(reason string) {
	if s == nil || s.failed == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	s.failed.WithLabelValues(reason).Inc()
}

// AddRollbackLines counts stock decrements undone while aborting a sale.
func (s *SalesMetrics) AddRollbackLines(n int) {
	if s == nil || s.rollbacks == nil || n <= 0 {
		return
	}
	s.rollbacks.Add(float64(n))
}
