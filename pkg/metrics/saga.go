package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SagaMetrics records checkout saga outcomes by terminal state.
type SagaMetrics struct {
	duration  *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
	rollbacks *prometheus.CounterVec
}

// NewSagaMetrics registers the saga metrics on the provided registerer.
func NewSagaMetrics(reg prometheus.Registerer) *SagaMetrics {
	if reg == nil {
		return &SagaMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_saga_duration_seconds",
		Help:    "End to end duration of checkout saga runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_saga_total",
		Help: "Checkout saga runs by terminal outcome.",
	}, []string{"outcome"})
	rollbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_rollback_steps_total",
		Help: "Compensation steps executed during rollback, by step and result.",
	}, []string{"step", "result"})
	reg.MustRegister(duration, outcomes, rollbacks)
	return &SagaMetrics{
		duration:  duration,
		outcomes:  outcomes,
		rollbacks: rollbacks,
	}
}

// ObserveRun records one completed saga run.
func (s *SagaMetrics) ObserveRun(outcome string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	label := normalizeLabel(outcome)
	s.duration.WithLabelValues(label).Observe(duration.Seconds())
	s.outcomes.WithLabelValues(label).Inc()
}

// IncRollbackStep records one compensation step execution.
func (s *SagaMetrics) IncRollbackStep(step, result string) {
	if s == nil || s.rollbacks == nil {
		return
	}
	s.rollbacks.WithLabelValues(normalizeLabel(step), normalizeLabel(result)).Inc()
}
