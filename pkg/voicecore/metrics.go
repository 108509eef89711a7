package voicecore

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the Session Controller's "metrics clock": a small facade over
// prometheus/client_golang, grounded on the metrics registration pattern in
// sinhayogesh-ai-speech-ingress-service's internal/observability/metrics
// package. A nil *prometheus.Registry yields a no-op facade, mirroring the
// Logger/NoOpLogger seam so metrics wiring is always optional.
type Metrics struct {
	enabled       bool
	ttfb          *prometheus.HistogramVec
	fragments     *prometheus.CounterVec
	segments      *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
}

// NewMetrics registers the core's series on reg. Passing a nil registry
// returns a disabled Metrics whose methods are safe, cheap no-ops.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{enabled: false}
	}

	m := &Metrics{
		enabled: true,
		ttfb: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicecore",
			Name:      "ttfb_milliseconds",
			Help:      "Time to first byte of transcription, in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"session_id"}),
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicecore",
			Name:      "fragments_ingested_total",
			Help:      "Fragments ingested by the reconciler, by finality.",
		}, []string{"session_id", "finality"}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicecore",
			Name:      "segments_emitted_total",
			Help:      "Segments emitted, by finality.",
		}, []string{"session_id", "finality"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicecore",
			Name:      "turn_duration_seconds",
			Help:      "Time from user speech end to end_of_turn.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"session_id"}),
	}

	reg.MustRegister(m.ttfb, m.fragments, m.segments, m.turnDuration)
	return m
}

// NoMetrics returns a disabled facade, for callers that never want a
// registry in the first place.
func NoMetrics() *Metrics { return &Metrics{enabled: false} }

func (m *Metrics) ObserveTTFB(sessionID string, ms float64) {
	if m == nil || !m.enabled {
		return
	}
	m.ttfb.WithLabelValues(sessionID).Observe(ms)
}

func (m *Metrics) IncFragments(sessionID string, final bool) {
	if m == nil || !m.enabled {
		return
	}
	m.fragments.WithLabelValues(sessionID, finalityLabel(final)).Inc()
}

func (m *Metrics) IncSegments(sessionID string, final bool, n int) {
	if m == nil || !m.enabled || n <= 0 {
		return
	}
	m.segments.WithLabelValues(sessionID, finalityLabel(final)).Add(float64(n))
}

func (m *Metrics) ObserveTurnDuration(sessionID string, seconds float64) {
	if m == nil || !m.enabled {
		return
	}
	m.turnDuration.WithLabelValues(sessionID).Observe(seconds)
}

func finalityLabel(final bool) string {
	if final {
		return "final"
	}
	return "partial"
}
