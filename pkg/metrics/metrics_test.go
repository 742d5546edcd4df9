package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStreamMetricsExportsGaugeAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewStreamMetrics(reg)
	tenant := "tenant-a"

	metrics.ConnectionOpened(tenant)
	metrics.ConnectionOpened(tenant)
	metrics.ConnectionClosed(tenant)
	metrics.IncPublished("order_created")
	metrics.IncEviction("heartbeat_timeout")
	metrics.IncDropped(tenant)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchGaugeValue(mfs, "stream_connections", "tenant", tenant); err != nil {
		t.Fatalf("fetch connections: %v", err)
	} else if got != 1 {
		t.Fatalf("expected connections=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stream_events_published", "event_type", "order_created"); err != nil {
		t.Fatalf("fetch published: %v", err)
	} else if got != 1 {
		t.Fatalf("expected published=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stream_evictions", "reason", "heartbeat_timeout"); err != nil {
		t.Fatalf("fetch evictions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected evictions=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "stream_sends_dropped", "tenant", tenant); err != nil {
		t.Fatalf("fetch dropped: %v", err)
	} else if got != 1 {
		t.Fatalf("expected dropped=1, got %f", got)
	}
}

func TestCheckoutMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)

	metrics.IncPoll("pending")
	metrics.IncOutcome("completed")
	metrics.ObserveDuration("completed", 42*time.Second)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_polls", "result", "pending"); err != nil {
		t.Fatalf("fetch polls: %v", err)
	} else if got != 1 {
		t.Fatalf("expected polls=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "checkout_outcomes", "status", "completed"); err != nil {
		t.Fatalf("fetch outcomes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected outcomes=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "checkout_duration_seconds", "status", "completed"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestVoiceMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewVoiceMetrics(reg)
	tenant := "tenant-a"

	metrics.SessionStarted(tenant)
	metrics.IncOverrun("credit_window")
	metrics.AddAudioBytes(tenant, 4096)
	metrics.AddAudioBytes(tenant, -1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchGaugeValue(mfs, "voice_sessions", "tenant", tenant); err != nil {
		t.Fatalf("fetch sessions: %v", err)
	} else if got != 1 {
		t.Fatalf("expected sessions=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "voice_overruns", "reason", "credit_window"); err != nil {
		t.Fatalf("fetch overruns: %v", err)
	} else if got != 1 {
		t.Fatalf("expected overruns=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "voice_audio_bytes", "tenant", tenant); err != nil {
		t.Fatalf("fetch bytes: %v", err)
	} else if got != 4096 {
		t.Fatalf("expected bytes=4096, got %f", got)
	}
}

func TestOutboxMetricsExports(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewOutboxMetrics(reg)

	metrics.IncPublished("order_created")
	metrics.IncFailure("order_created")
	metrics.IncDeadLettered("max_attempts")
	metrics.ObserveLatency("order_created", 300*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "outbox_published", "event_type", "order_created"); err != nil {
		t.Fatalf("fetch published: %v", err)
	} else if got != 1 {
		t.Fatalf("expected published=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "outbox_dead_lettered", "reason", "max_attempts"); err != nil {
		t.Fatalf("fetch dlq: %v", err)
	} else if got != 1 {
		t.Fatalf("expected dlq=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "outbox_publish_latency_seconds", "event_type", "order_created"); err != nil {
		t.Fatalf("fetch latency: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f", got)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	stream := NewStreamMetrics(nil)
	stream.ConnectionOpened("t")
	stream.IncPublished("e")

	checkout := NewCheckoutMetrics(nil)
	checkout.IncPoll("x")

	voice := NewVoiceMetrics(nil)
	voice.IncOverrun("buffer_cap")

	outbox := NewOutboxMetrics(nil)
	outbox.IncPublished("e")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetGauge().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
