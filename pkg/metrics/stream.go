package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics records broadcast hub activity.
type StreamMetrics struct {
	connections *prometheus.GaugeVec
	published   *prometheus.CounterVec
	evictions   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

// NewStreamMetrics registers the hub metrics on the provided registerer.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		return &StreamMetrics{}
	}
	connections := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_connections",
		Help: "Live stream connections per tenant.",
	}, []string{"tenant"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_events_published",
		Help: "Events fanned out to stream connections.",
	}, []string{"event_type"})
	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_evictions",
		Help: "Connections force-closed by the hub.",
	}, []string{"reason"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_sends_dropped",
		Help: "Events not delivered because a send queue was full.",
	}, []string{"tenant"})
	reg.MustRegister(connections, published, evictions, dropped)
	return &StreamMetrics{
		connections: connections,
		published:   published,
		evictions:   evictions,
		dropped:     dropped,
	}
}

// ConnectionOpened bumps the per-tenant connection gauge.
func (s *StreamMetrics) ConnectionOpened(tenant string) {
	if s == nil || s.connections == nil {
		return
	}
	s.connections.WithLabelValues(normalizeLabel(tenant)).Inc()
}

// ConnectionClosed lowers the per-tenant connection gauge.
func (s *StreamMetrics) ConnectionClosed(tenant string) {
	if s == nil || s.connections == nil {
		return
	}
	s.connections.WithLabelValues(normalizeLabel(tenant)).Dec()
}

// IncPublished counts one fan-out delivery per event type.
func (s *StreamMetrics) IncPublished(eventType string) {
	if s == nil || s.published == nil {
		return
	}
	s.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncEviction counts a forced connection close.
func (s *StreamMetrics) IncEviction(reason string) {
	if s == nil || s.evictions == nil {
		return
	}
	s.evictions.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncDropped counts a delivery skipped due to backpressure.
func (s *StreamMetrics) IncDropped(tenant string) {
	if s == nil || s.dropped == nil {
		return
	}
	s.dropped.WithLabelValues(normalizeLabel(tenant)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
