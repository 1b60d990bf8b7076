package state

import (
	"log/slog"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets the channel StoreChanged events are published to.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the logger used to report recovered subscriber panics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEqual sets the default equality used by subscriptions that do not provide one.
func WithEqual(eq EqualFunc) Option {
	return func(s *Store) {
		if eq != nil {
			s.equal = eq
		}
	}
}

// Validator checks a candidate tree before it is committed.
type Validator func(next domain.Tree) error

// WithValidator rejects commits whose tree fails v. Rejected commits leave the
// version unchanged and notify no one.
func WithValidator(v Validator) Option {
	return func(s *Store) {
		s.validate = v
	}
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	selector        Selector
	equal           EqualFunc
	fireImmediately bool
}

// WithSelector narrows what the listener observes. The default selects the whole tree.
func WithSelector(sel Selector) SubscribeOption {
	return func(c *subscribeConfig) {
		c.selector = sel
	}
}

// WithEquality decides when a selected value counts as changed.
func WithEquality(eq EqualFunc) SubscribeOption {
	return func(c *subscribeConfig) {
		c.equal = eq
	}
}

// FireImmediately invokes the listener once at subscribe time with the current value.
func FireImmediately() SubscribeOption {
	return func(c *subscribeConfig) {
		c.fireImmediately = true
	}
}
