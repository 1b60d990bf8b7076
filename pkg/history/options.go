package history

import (
	"log/slog"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

const (
	DefaultCapacity       = 100
	DefaultCoalesceWindow = 350 * time.Millisecond
)

// Option configures a Manager.
type Option func(*Manager)

// WithCapacity sets the maximum stack length. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.settings.Capacity = n
		}
	}
}

// WithCoalesceWindow sets the default coalescing window. Negative values are ignored.
func WithCoalesceWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.settings.CoalesceWindow = d
		}
	}
}

// WithRegistry sets where string command references are looked up.
func WithRegistry(r Resolver) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithNotifier sets the channel history events are published to.
func WithNotifier(n ports.Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithClock replaces time.Now, mostly for tests and deterministic replays.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.clock = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// ExecOptions are per-call overrides. They win over the command's own description.
type ExecOptions struct {
	Label          string
	Coalesce       *bool
	CoalesceKey    string
	CoalesceWindow *time.Duration
	Meta           domain.Meta
}

// ExecOption configures a single Execute call.
type ExecOption func(*ExecOptions)

// WithLabel is used when the command has no label of its own.
func WithLabel(label string) ExecOption {
	return func(o *ExecOptions) {
		o.Label = label
	}
}

// WithCoalesce opts the entry in or out of coalescing.
func WithCoalesce(enabled bool) ExecOption {
	return func(o *ExecOptions) {
		o.Coalesce = &enabled
	}
}

// WithCoalesceKey sets the key entries must share to merge.
func WithCoalesceKey(key string) ExecOption {
	return func(o *ExecOptions) {
		o.CoalesceKey = key
	}
}

// WithEntryWindow sets the coalescing window of this entry.
func WithEntryWindow(d time.Duration) ExecOption {
	return func(o *ExecOptions) {
		o.CoalesceWindow = &d
	}
}

// WithMeta attaches meta to the entry, overriding keys from the command's meta.
func WithMeta(meta domain.Meta) ExecOption {
	return func(o *ExecOptions) {
		o.Meta = o.Meta.Merge(meta)
	}
}

// Setting changes one live setting. See Manager.Configure.
type Setting func(*Settings) error

// SetCapacity changes the maximum stack length. n must be positive.
func SetCapacity(n int) Setting {
	return func(s *Settings) error {
		if n <= 0 {
			return domain.NewValidationError("capacity", "must be a positive integer", n)
		}
		s.Capacity = n
		return nil
	}
}

// SetCoalesceWindow changes the default coalescing window. d must not be negative.
func SetCoalesceWindow(d time.Duration) Setting {
	return func(s *Settings) error {
		if d < 0 {
			return domain.NewValidationError("coalesce_window", "must not be negative", d)
		}
		s.CoalesceWindow = d
		return nil
	}
}
