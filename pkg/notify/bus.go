// Package notify fans store and history events out to observers.
//
// The core publishes to a single ports.Notifier. A Bus is that notifier: it forwards
// every event to the observers subscribed to it, synchronously and in subscription
// order. Typed observers are built with On:
//
//	bus := notify.NewBus()
//	bus.Subscribe(notify.On(func(e domain.HistoryUndone) {
//		fmt.Println("undid", e.Entry.Label)
//	}))
package notify

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Bus is a synchronous ports.Notifier with many observers.
// Like the store it serves, it is not safe for concurrent use.
type Bus struct {
	observers []*observer
	nextID    int
	logger    *slog.Logger
}

type observer struct {
	id int
	n  ports.Notifier
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used to report observers that panic.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates a bus with no observers.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds an observer and returns a function that removes it.
func (b *Bus) Subscribe(n ports.Notifier) func() {
	if n == nil {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.observers = append(b.observers, &observer{id: id, n: n})

	return func() {
		for i, o := range b.observers {
			if o.id == id {
				b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of observers.
func (b *Bus) Len() int {
	return len(b.observers)
}

// Notify implements ports.Notifier.
// A panicking observer is logged and does not stop the others.
func (b *Bus) Notify(event domain.Event) {
	observers := make([]*observer, len(b.observers))
	copy(observers, b.observers)
	for _, o := range observers {
		b.deliver(o, event)
	}
}

func (b *Bus) deliver(o *observer, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked",
				"observer", o.id,
				"event", event.Kind().String(),
				"error", fmt.Errorf("%v", r),
			)
		}
	}()
	o.n.Notify(event)
}

// On adapts a function over one payload type to a ports.Notifier.
// Events of other types are ignored.
func On[T domain.Event](fn func(T)) ports.Notifier {
	return ports.NotifierFunc(func(event domain.Event) {
		if e, ok := event.(T); ok {
			fn(e)
		}
	})
}

// Kinds forwards only events of the given kinds to n.
func Kinds(n ports.Notifier, kinds ...domain.EventKind) ports.Notifier {
	allowed := make(map[domain.EventKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return ports.NotifierFunc(func(event domain.Event) {
		if allowed[event.Kind()] {
			n.Notify(event)
		}
	})
}

// Log returns an observer that writes every event to logger at debug level.
func Log(logger *slog.Logger) ports.Notifier {
	return ports.NotifierFunc(func(event domain.Event) {
		attrs := []any{"kind", event.Kind().String()}
		switch e := event.(type) {
		case domain.StoreChanged:
			attrs = append(attrs, "version", e.Version, "changed", e.Changed)
		case domain.HistoryExecuted:
			attrs = append(attrs, "entry", e.Entry.Label, "pointer", e.Pointer, "length", e.Length)
		case domain.HistoryUndone:
			attrs = append(attrs, "entry", e.Entry.Label, "pointer", e.Pointer, "length", e.Length)
		case domain.HistoryRedone:
			attrs = append(attrs, "entry", e.Entry.Label, "pointer", e.Pointer, "length", e.Length)
		case domain.HistoryCoalesced:
			attrs = append(attrs, "entry", e.Entry.Label, "revisions", e.Entry.Revisions)
		case domain.HistoryOverflowed:
			attrs = append(attrs, "evicted", len(e.Evicted), "capacity", e.Capacity)
		case domain.HistoryTruncated:
			attrs = append(attrs, "discarded", len(e.Discarded))
		case domain.HistoryCleared:
			attrs = append(attrs, "removed", e.Removed)
		case domain.HistoryConfigured:
			attrs = append(attrs, "capacity", e.Capacity, "coalesce_window", e.CoalesceWindow)
		}
		logger.Debug("event", attrs...)
	})
}
