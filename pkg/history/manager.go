package history

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/state"
)

// Manager is a linear undo/redo stack of executed commands.
type Manager struct {
	store    *state.Store
	registry Resolver
	notifier ports.Notifier
	logger   *slog.Logger
	clock    func() time.Time

	settings Settings
	stack    []*Entry
	pointer  int
	seq      uint64
}

// New creates an empty history bound to store.
func New(store *state.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		notifier: ports.Discard,
		logger:   logging.NewNop(),
		clock:    time.Now,
		settings: Settings{
			Capacity:       DefaultCapacity,
			CoalesceWindow: DefaultCoalesceWindow,
		},
		pointer: -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the store commands operate on.
func (m *Manager) Store() *state.Store {
	return m.store
}

// Execute resolves ref into a command, runs it and records it.
//
// ref is a registered command name, a Factory, a Command or a Funcs value.
// If the command fails the error is returned unchanged and the history is untouched.
// Otherwise any redoable entries are discarded and the command is either merged into
// the entry at the pointer or pushed as a new one. The command's result is returned.
func (m *Manager) Execute(ref any, payload any, opts ...ExecOption) (any, error) {
	var cfg ExecOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	cmd, name, err := m.resolve(ref, payload, cfg)
	if err != nil {
		return nil, err
	}

	entry := m.newEntry(cmd, name, payload, cfg)
	result, err := cmd.Execute(m.newContext(PhaseExecute, entry))
	if err != nil {
		return nil, err
	}

	m.record(entry)
	return result, nil
}

func (m *Manager) newEntry(cmd Command, name string, payload any, cfg ExecOptions) *Entry {
	desc := describe(cmd)
	now := m.clock()
	m.seq++

	typ := firstNonEmpty(desc.Type, name, "anonymous")
	return &Entry{
		ID:        strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.FormatUint(m.seq, 10),
		Label:     firstNonEmpty(desc.Label, cfg.Label, typ),
		Type:      typ,
		Command:   cmd,
		Payload:   payload,
		Timestamp: now,
		Revisions: 1,
		Options:   m.coalesceOptions(desc.Options, cfg),
		Meta:      desc.Meta.Merge(cfg.Meta),
	}
}

// coalesceOptions layers per-call overrides over the command's options over the defaults.
// A command window of zero is indistinguishable from an unset one and inherits the
// default; only the per-call override can force a zero window.
func (m *Manager) coalesceOptions(own domain.CoalesceOptions, cfg ExecOptions) domain.CoalesceOptions {
	opts := domain.CoalesceOptions{Window: m.settings.CoalesceWindow}

	opts.Enabled = own.Enabled
	if own.Key != "" {
		opts.Key = own.Key
	}
	if own.Window > 0 {
		opts.Window = own.Window
	}

	if cfg.Coalesce != nil {
		opts.Enabled = *cfg.Coalesce
	}
	if cfg.CoalesceKey != "" {
		opts.Key = cfg.CoalesceKey
	}
	if cfg.CoalesceWindow != nil {
		opts.Window = *cfg.CoalesceWindow
	}
	return opts
}

// record stores an already executed entry.
func (m *Manager) record(entry *Entry) {
	m.truncate()
	if m.coalesce(entry) {
		return
	}

	m.stack = append(m.stack, entry)
	m.pointer = len(m.stack) - 1
	m.evict()

	m.notifier.Notify(domain.HistoryExecuted{Entry: entry.Info(), Position: m.position()})
}

func (m *Manager) truncate() {
	if m.pointer >= len(m.stack)-1 {
		return
	}
	discarded := infos(m.stack[m.pointer+1:])
	clear(m.stack[m.pointer+1:])
	m.stack = m.stack[:m.pointer+1]

	m.logger.Debug("history truncated", "discarded", len(discarded), "pointer", m.pointer)
	m.notifier.Notify(domain.HistoryTruncated{Discarded: discarded, Position: m.position()})
}

// coalesce tries to merge entry into the entry at the pointer.
// The command on the stack is asked first; then the newer command.
func (m *Manager) coalesce(entry *Entry) bool {
	if m.pointer < 0 {
		return false
	}
	top := m.stack[m.pointer]
	if !top.Options.Enabled || !entry.Options.Enabled || top.Options.Key != entry.Options.Key {
		return false
	}

	window := max(top.Options.Window, entry.Options.Window)
	delta := entry.Timestamp.Sub(top.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if delta > window {
		return false
	}

	merged := false
	if c, ok := top.Command.(Coalescer); ok {
		merged = c.Coalesce(entry.Command, AbsorbNewer)
	}
	if !merged {
		if c, ok := entry.Command.(Coalescer); ok {
			merged = c.Coalesce(top.Command, MergeIntoOlder)
		}
	}
	if !merged {
		return false
	}

	absorbed := entry.Info()
	top.Timestamp = entry.Timestamp
	top.Meta = top.Meta.Merge(entry.Meta)
	top.Options.Window = window
	top.Revisions++

	if d, ok := entry.Command.(Disposer); ok {
		d.Dispose()
	}

	m.notifier.Notify(domain.HistoryCoalesced{Entry: top.Info(), Absorbed: absorbed, Position: m.position()})
	return true
}

// evict drops the oldest entries until the stack fits the capacity.
// Evicted commands are not undone: their effects stay in the store.
func (m *Manager) evict() {
	over := len(m.stack) - m.settings.Capacity
	if over <= 0 {
		return
	}
	evicted := infos(m.stack[:over])
	m.stack = append([]*Entry(nil), m.stack[over:]...)
	m.pointer = max(m.pointer-over, -1)

	m.logger.Debug("history overflowed", "evicted", over, "capacity", m.settings.Capacity)
	m.notifier.Notify(domain.HistoryOverflowed{
		Evicted:  evicted,
		Capacity: m.settings.Capacity,
		Position: m.position(),
	})
}

// Undo reverts the entry at the pointer and moves the pointer down.
// It returns (nil, nil) when there is nothing to undo.
// The pointer moves even when the command fails; the error is then returned and no
// event is published.
func (m *Manager) Undo() (any, error) {
	if m.pointer < 0 {
		return nil, nil
	}
	entry := m.stack[m.pointer]

	result, err := entry.Command.Undo(m.newContext(PhaseUndo, entry))
	m.pointer--
	if err != nil {
		m.logger.Warn("undo failed", "entry", entry.ID, "label", entry.Label, "error", err)
		return result, err
	}

	m.notifier.Notify(domain.HistoryUndone{Entry: entry.Info(), Position: m.position()})
	return result, nil
}

// Redo re-applies the entry above the pointer and moves the pointer up.
// Commands implementing Redoer are redone with Redo, others replay Execute.
// Failure semantics mirror Undo.
func (m *Manager) Redo() (any, error) {
	if m.pointer >= len(m.stack)-1 {
		return nil, nil
	}
	entry := m.stack[m.pointer+1]

	result, err := redo(entry.Command, m.newContext(PhaseRedo, entry))
	m.pointer++
	if err != nil {
		m.logger.Warn("redo failed", "entry", entry.ID, "label", entry.Label, "error", err)
		return result, err
	}

	m.notifier.Notify(domain.HistoryRedone{Entry: entry.Info(), Position: m.position()})
	return result, nil
}

func redo(cmd Command, ctx *Context) (any, error) {
	if r, ok := cmd.(Redoer); ok {
		return r.Redo(ctx)
	}
	return cmd.Execute(ctx)
}

// Clear empties the stack. The store is left as it is.
func (m *Manager) Clear(meta domain.Meta) {
	removed := len(m.stack)
	m.stack = nil
	m.pointer = -1

	m.notifier.Notify(domain.HistoryCleared{Removed: removed, Meta: meta, Position: m.position()})
}

// Configure changes live settings. Either every setting is valid and all are applied,
// or a *domain.ValidationError is returned and nothing changes.
// Shrinking the capacity evicts immediately.
func (m *Manager) Configure(settings ...Setting) error {
	next := m.settings
	for _, set := range settings {
		if err := set(&next); err != nil {
			return err
		}
	}

	m.settings = next
	m.evict()

	m.notifier.Notify(domain.HistoryConfigured{
		Capacity:       next.Capacity,
		CoalesceWindow: next.CoalesceWindow,
		Position:       m.position(),
	})
	return nil
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool { return m.pointer >= 0 }

// CanRedo reports whether Redo would do anything.
func (m *Manager) CanRedo() bool { return m.pointer < len(m.stack)-1 }

// Pointer is the index of the last applied entry, -1 when none is.
func (m *Manager) Pointer() int { return m.pointer }

// Len is the number of entries on the stack, including redoable ones.
func (m *Manager) Len() int { return len(m.stack) }

// Settings returns the live settings.
func (m *Manager) Settings() Settings { return m.settings }

// Entries returns the projections of every entry, oldest first.
func (m *Manager) Entries() []domain.EntryInfo {
	return infos(m.stack)
}

// Peek returns the entry at the pointer.
func (m *Manager) Peek() (domain.EntryInfo, bool) {
	if m.pointer < 0 {
		return domain.EntryInfo{}, false
	}
	return m.stack[m.pointer].Info(), true
}

func (m *Manager) position() domain.Position {
	return domain.Position{Pointer: m.pointer, Length: len(m.stack)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
