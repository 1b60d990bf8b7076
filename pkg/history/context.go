package history

import (
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/state"
)

// Phase tells a command why it is being invoked.
type Phase string

const (
	PhaseExecute Phase = "execute"
	PhaseUndo    Phase = "undo"
	PhaseRedo    Phase = "redo"
)

// Settings are the live history settings.
type Settings struct {
	Capacity       int           `json:"capacity"`
	CoalesceWindow time.Duration `json:"coalesce_window"`
}

// Context is handed to every Execute, Undo and Redo call.
// It is the only channel through which a command reaches the store.
type Context struct {
	Phase     Phase
	Entry     domain.EntryInfo
	Command   Command
	Payload   any
	Store     *state.Store
	History   *Manager
	Notifier  ports.Notifier
	Timestamp time.Time
	Settings  Settings
}

// Meta returns commit meta describing this invocation, ready to pass to the store.
func (c *Context) Meta() domain.Meta {
	return domain.Meta{
		"phase": string(c.Phase),
		"entry": c.Entry.ID,
		"label": c.Entry.Label,
	}
}

func (m *Manager) newContext(phase Phase, e *Entry) *Context {
	return &Context{
		Phase:     phase,
		Entry:     e.Info(),
		Command:   e.Command,
		Payload:   e.Payload,
		Store:     m.store,
		History:   m,
		Notifier:  m.notifier,
		Timestamp: m.clock(),
		Settings:  m.settings,
	}
}
