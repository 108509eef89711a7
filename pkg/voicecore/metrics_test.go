package voicecore

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilRegistryIsNoOp(t *testing.T) {
	m := NewMetrics(nil)
	require.NotPanics(t, func() {
		m.ObserveTTFB("s1", 120)
		m.IncFragments("s1", true)
		m.IncSegments("s1", false, 2)
		m.ObserveTurnDuration("s1", 3.5)
	})
}

func TestMetrics_RecordsAgainstRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.IncFragments("s1", true)
	m.IncFragments("s1", true)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			if metric.GetCounter() != nil {
				found = found || matchesSession(metric, "s1")
			}
		}
	}
	require.True(t, found, "expected at least one counter sample labelled session_id=s1")
}

func matchesSession(m *dto.Metric, sessionID string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == "session_id" && lp.GetValue() == sessionID {
			return true
		}
	}
	return false
}

func TestMetrics_NoMetricsDisabled(t *testing.T) {
	m := NoMetrics()
	require.NotPanics(t, func() { m.ObserveTTFB("s1", 1) })
}
