package notify_test

import (
	"bytes"
	"testing"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/notify"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOutInOrder(t *testing.T) {
	bus := notify.NewBus()
	var order []string

	bus.Subscribe(ports.NotifierFunc(func(domain.Event) { order = append(order, "first") }))
	unsubscribe := bus.Subscribe(ports.NotifierFunc(func(domain.Event) { order = append(order, "second") }))
	bus.Subscribe(ports.NotifierFunc(func(domain.Event) { order = append(order, "third") }))

	bus.Notify(domain.HistoryCleared{})
	assert.Equal(t, []string{"first", "second", "third"}, order)

	unsubscribe()
	unsubscribe()
	order = nil
	bus.Notify(domain.HistoryCleared{})
	assert.Equal(t, []string{"first", "third"}, order)
	assert.Equal(t, 2, bus.Len())

	bus.Subscribe(nil)()
	assert.Equal(t, 2, bus.Len())
}

func TestBus_PanickingObserver(t *testing.T) {
	var buf bytes.Buffer
	bus := notify.NewBus(notify.WithLogger(logging.NewWithWriter(&buf, logging.ParseLevel("info"))))
	rec := &notify.Recorder{}

	bus.Subscribe(ports.NotifierFunc(func(domain.Event) { panic("boom") }))
	bus.Subscribe(rec)

	require.NotPanics(t, func() { bus.Notify(domain.HistoryUndone{}) })
	assert.Equal(t, 1, rec.Count(domain.KindHistoryUndo))
	assert.Contains(t, buf.String(), "observer panicked")
	assert.Contains(t, buf.String(), "event=history:undo")
}

func TestOn_FiltersByType(t *testing.T) {
	bus := notify.NewBus()
	var undone []string
	bus.Subscribe(notify.On(func(e domain.HistoryUndone) {
		undone = append(undone, e.Entry.Label)
	}))

	bus.Notify(domain.HistoryExecuted{Entry: domain.EntryInfo{Label: "ignored"}})
	bus.Notify(domain.HistoryUndone{Entry: domain.EntryInfo{Label: "stroke"}})

	assert.Equal(t, []string{"stroke"}, undone)
}

func TestKinds_Filter(t *testing.T) {
	rec := &notify.Recorder{}
	n := notify.Kinds(rec, domain.KindStoreChange, domain.KindHistoryClear)

	n.Notify(domain.StoreChanged{Version: 1})
	n.Notify(domain.HistoryUndone{})
	n.Notify(domain.HistoryCleared{})

	assert.Equal(t, []domain.EventKind{domain.KindStoreChange, domain.KindHistoryClear}, rec.Kinds())
}

func TestRecorder(t *testing.T) {
	rec := &notify.Recorder{}
	_, ok := rec.Last()
	assert.False(t, ok)

	rec.Notify(domain.StoreChanged{Version: 1})
	rec.Notify(domain.StoreChanged{Version: 2})

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(2), last.(domain.StoreChanged).Version)
	assert.Len(t, rec.Events(), 2)

	rec.Reset()
	assert.Empty(t, rec.Events())
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	n := notify.Log(logging.NewWithWriter(&buf, logging.ParseLevel("debug")))

	n.Notify(domain.HistoryOverflowed{Evicted: make([]domain.EntryInfo, 2), Capacity: 3})

	out := buf.String()
	assert.Contains(t, out, "kind=history:overflow")
	assert.Contains(t, out, "evicted=2")
	assert.Contains(t, out, "capacity=3")
}
