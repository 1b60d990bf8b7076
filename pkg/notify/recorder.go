package notify

import "github.com/aretw0/strata/pkg/domain"

// Recorder keeps every event it is notified of, in order.
type Recorder struct {
	events []domain.Event
}

// Notify implements ports.Notifier.
func (r *Recorder) Notify(event domain.Event) {
	r.events = append(r.events, event)
}

// Events returns the recorded events.
func (r *Recorder) Events() []domain.Event {
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events.
func (r *Recorder) Kinds() []domain.EventKind {
	out := make([]domain.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind()
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind domain.EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent event, if any.
func (r *Recorder) Last() (domain.Event, bool) {
	if len(r.events) == 0 {
		return nil, false
	}
	return r.events[len(r.events)-1], true
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.events = nil
}
