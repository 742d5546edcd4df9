package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// VoiceMetrics records audio streaming flow-control activity.
type VoiceMetrics struct {
	sessions *prometheus.GaugeVec
	overruns *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// NewVoiceMetrics registers the voice session metrics on the provided registerer.
func NewVoiceMetrics(reg prometheus.Registerer) *VoiceMetrics {
	if reg == nil {
		return &VoiceMetrics{}
	}
	sessions := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_sessions",
		Help: "Live audio sessions per tenant.",
	}, []string{"tenant"})
	overruns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_overruns",
		Help: "Sessions terminated for exceeding the credit window or buffer cap.",
	}, []string{"reason"})
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_audio_bytes",
		Help: "Audio bytes accepted per tenant.",
	}, []string{"tenant"})
	reg.MustRegister(sessions, overruns, bytes)
	return &VoiceMetrics{
		sessions: sessions,
		overruns: overruns,
		bytes:    bytes,
	}
}

// SessionStarted bumps the per-tenant session gauge.
func (v *VoiceMetrics) SessionStarted(tenant string) {
	if v == nil || v.sessions == nil {
		return
	}
	v.sessions.WithLabelValues(normalizeLabel(tenant)).Inc()
}

// SessionClosed lowers the per-tenant session gauge.
func (v *VoiceMetrics) SessionClosed(tenant string) {
	if v == nil || v.sessions == nil {
		return
	}
	v.sessions.WithLabelValues(normalizeLabel(tenant)).Dec()
}

// IncOverrun counts a flow-control violation.
func (v *VoiceMetrics) IncOverrun(reason string) {
	if v == nil || v.overruns == nil {
		return
	}
	v.overruns.WithLabelValues(normalizeLabel(reason)).Inc()
}

// AddAudioBytes counts accepted audio payload bytes.
func (v *VoiceMetrics) AddAudioBytes(tenant string, n int) {
	if v == nil || v.bytes == nil || n <= 0 {
		return
	}
	v.bytes.WithLabelValues(normalizeLabel(tenant)).Add(float64(n))
}
