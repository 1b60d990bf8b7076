package observability_test

import (
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the value of the series name{labels}, failing if it is missing.
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !matches(metric, labels) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			}
		}
	}
	require.Failf(t, "series not found", "%s %v", name, labels)
	return 0
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range metric.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestMetrics_Notify(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	m.SetCapacity(3)

	m.Notify(domain.StoreChanged{Version: 4})
	m.Notify(domain.HistoryExecuted{
		Entry:    domain.EntryInfo{Type: "set"},
		Position: domain.Position{Pointer: 0, Length: 1},
	})
	m.Notify(domain.HistoryExecuted{
		Entry:    domain.EntryInfo{Type: "set"},
		Position: domain.Position{Pointer: 1, Length: 2},
	})
	m.Notify(domain.HistoryUndone{
		Entry:    domain.EntryInfo{Type: "set"},
		Position: domain.Position{Pointer: 0, Length: 2},
	})
	m.Notify(domain.HistoryTruncated{
		Discarded: make([]domain.EntryInfo, 1),
		Position:  domain.Position{Pointer: 0, Length: 1},
	})
	m.Notify(domain.HistoryOverflowed{
		Evicted:  make([]domain.EntryInfo, 2),
		Capacity: 3,
		Position: domain.Position{Pointer: 2, Length: 3},
	})

	assert.Equal(t, 4.0, value(t, reg, "strata_store_version", nil))
	assert.Equal(t, 2.0, value(t, reg, "strata_history_commands_total", map[string]string{"type": "set", "phase": "execute"}))
	assert.Equal(t, 1.0, value(t, reg, "strata_history_commands_total", map[string]string{"type": "set", "phase": "undo"}))
	assert.Equal(t, 2.0, value(t, reg, "strata_events_total", map[string]string{"kind": "history:execute"}))
	assert.Equal(t, 2.0, value(t, reg, "strata_history_evicted_total", nil))
	assert.Equal(t, 1.0, value(t, reg, "strata_history_discarded_total", nil))
	assert.Equal(t, 3.0, value(t, reg, "strata_history_length", nil))
	assert.Equal(t, 2.0, value(t, reg, "strata_history_pointer", nil))
	assert.Equal(t, 3.0, value(t, reg, "strata_history_capacity", nil))
}

func TestMetrics_StepFailed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	m.Notify(domain.HistoryExecuted{
		Entry:    domain.EntryInfo{Type: "set"},
		Position: domain.Position{Pointer: 0, Length: 1},
	})
	m.StepFailed("undo", domain.Position{Pointer: -1, Length: 1})

	assert.Equal(t, -1.0, value(t, reg, "strata_history_pointer", nil))
	assert.Equal(t, 1.0, value(t, reg, "strata_history_step_failures_total", map[string]string{"phase": "undo"}))
	assert.Equal(t, 1.0, value(t, reg, "strata_history_length", nil))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)

	unregistered, err := observability.NewMetrics(nil)
	require.NoError(t, err)
	unregistered.Notify(domain.HistoryCleared{})
}
