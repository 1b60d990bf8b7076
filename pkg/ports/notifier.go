package ports

import "github.com/aretw0/strata/pkg/domain"

// Notifier is the notification channel the store and the history publish to.
// The core only ever publishes; it never subscribes. Notify is called synchronously
// on the committing call stack.
type Notifier interface {
	Notify(event domain.Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(event domain.Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(event domain.Event) {
	f(event)
}

// Discard is a Notifier that drops every event.
var Discard Notifier = NotifierFunc(func(domain.Event) {})
