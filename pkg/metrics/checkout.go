package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records payment terminal coordination activity.
type CheckoutMetrics struct {
	polls    *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_polls",
		Help: "Provider status polls by result.",
	}, []string{"result"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes",
		Help: "Terminal checkouts by terminal status.",
	}, []string{"status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Time from checkout creation to a terminal status.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	}, []string{"status"})
	reg.MustRegister(polls, outcomes, duration)
	return &CheckoutMetrics{
		polls:    polls,
		outcomes: outcomes,
		duration: duration,
	}
}

// IncPoll counts one provider poll with its result label.
func (c *CheckoutMetrics) IncPoll(result string) {
	if c == nil || c.polls == nil {
		return
	}
	c.polls.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncOutcome counts a checkout reaching a terminal status.
func (c *CheckoutMetrics) IncOutcome(status string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveDuration records how long a checkout took to settle.
func (c *CheckoutMetrics) ObserveDuration(status string, elapsed time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(status)).Observe(elapsed.Seconds())
}
