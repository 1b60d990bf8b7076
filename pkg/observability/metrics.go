package observability

import (
	"github.com/aretw0/strata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "strata"

// Metrics turns events into Prometheus series.
//
// A failed undo or redo moves the pointer without publishing an event, so the
// position gauges only catch up through StepFailed, which the Workspace calls.
type Metrics struct {
	events       *prometheus.CounterVec
	commands     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	evicted      prometheus.Counter
	discarded    prometheus.Counter
	storeVersion prometheus.Gauge
	stackLength  prometheus.Gauge
	pointer      prometheus.Gauge
	capacity     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events published by the store and the history, by kind.",
		}, []string{"kind"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "commands_total",
			Help:      "Commands recorded, undone or redone, by command type.",
		}, []string{"type", "phase"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "evicted_total",
			Help:      "Entries dropped because the stack exceeded its capacity.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "discarded_total",
			Help:      "Redoable entries discarded by a new command.",
		}),
		storeVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "version",
			Help:      "Current store version.",
		}),
		stackLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "length",
			Help:      "Entries on the undo stack, including redoable ones.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "step_failures_total",
			Help:      "Undo and redo calls whose command returned an error.",
		}, []string{"phase"}),
		pointer: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "pointer",
			Help:      "Index of the last applied entry (-1 when none).",
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "capacity",
			Help:      "Configured stack capacity.",
		}),
	}
	m.pointer.Set(-1)

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.events, m.commands, m.failures, m.evicted, m.discarded,
		m.storeVersion, m.stackLength, m.pointer, m.capacity,
	}
}

// Notify implements ports.Notifier.
func (m *Metrics) Notify(event domain.Event) {
	m.events.WithLabelValues(event.Kind().String()).Inc()

	switch e := event.(type) {
	case domain.StoreChanged:
		m.storeVersion.Set(float64(e.Version))
	case domain.HistoryExecuted:
		m.commands.WithLabelValues(e.Entry.Type, "execute").Inc()
		m.position(e.Position)
	case domain.HistoryUndone:
		m.commands.WithLabelValues(e.Entry.Type, "undo").Inc()
		m.position(e.Position)
	case domain.HistoryRedone:
		m.commands.WithLabelValues(e.Entry.Type, "redo").Inc()
		m.position(e.Position)
	case domain.HistoryCoalesced:
		m.commands.WithLabelValues(e.Absorbed.Type, "coalesce").Inc()
		m.position(e.Position)
	case domain.HistoryOverflowed:
		m.evicted.Add(float64(len(e.Evicted)))
		m.capacity.Set(float64(e.Capacity))
		m.position(e.Position)
	case domain.HistoryTruncated:
		m.discarded.Add(float64(len(e.Discarded)))
		m.position(e.Position)
	case domain.HistoryCleared:
		m.position(e.Position)
	case domain.HistoryConfigured:
		m.capacity.Set(float64(e.Capacity))
		m.position(e.Position)
	}
}

// StepFailed counts a failed undo or redo and records the position it left behind.
func (m *Metrics) StepFailed(phase string, p domain.Position) {
	m.failures.WithLabelValues(phase).Inc()
	m.position(p)
}

// SetCapacity seeds the capacity gauge before the first configure event.
func (m *Metrics) SetCapacity(n int) {
	m.capacity.Set(float64(n))
}

func (m *Metrics) position(p domain.Position) {
	m.pointer.Set(float64(p.Pointer))
	m.stackLength.Set(float64(p.Length))
}
