package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records outbox dispatcher activity.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failures  *prometheus.CounterVec
	dlq       *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewOutboxMetrics registers the dispatcher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published",
		Help: "Outbox rows published to the event topic.",
	}, []string{"event_type"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failures",
		Help: "Publish attempts that failed.",
	}, []string{"event_type"})
	dlq := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dead_lettered",
		Help: "Rows moved to the dead letter table.",
	}, []string{"reason"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_publish_latency_seconds",
		Help:    "Time from row creation to successful publish.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(published, failures, dlq, latency)
	return &OutboxMetrics{
		published: published,
		failures:  failures,
		dlq:       dlq,
		latency:   latency,
	}
}

// IncPublished counts a successful publish.
func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailure counts a failed publish attempt.
func (o *OutboxMetrics) IncFailure(eventType string) {
	if o == nil || o.failures == nil {
		return
	}
	o.failures.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDeadLettered counts a row moved to the DLQ.
func (o *OutboxMetrics) IncDeadLettered(reason string) {
	if o == nil || o.dlq == nil {
		return
	}
	o.dlq.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveLatency records the row age at publish time.
func (o *OutboxMetrics) ObserveLatency(eventType string, age time.Duration) {
	if o == nil || o.latency == nil {
		return
	}
	o.latency.WithLabelValues(normalizeLabel(eventType)).Observe(age.Seconds())
}
