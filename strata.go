package strata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/commands"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/history"
	"github.com/aretw0/strata/pkg/notify"
	"github.com/aretw0/strata/pkg/observability"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/registry"
	"github.com/aretw0/strata/pkg/schema"
	"github.com/aretw0/strata/pkg/state"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoCheckpointStore is returned by Checkpoint and Restore when no store was configured.
var ErrNoCheckpointStore = errors.New("no checkpoint store configured")

// Workspace is the high-level entry point for the library.
// It wires a state store, a command registry and a history manager around one event bus.
//
// A Workspace is not safe for concurrent use. Surfaces that serve concurrent requests
// must serialize access to it.
type Workspace struct {
	Name string

	store       *state.Store
	registry    *registry.Registry
	history     *history.Manager
	bus         *notify.Bus
	metrics     *observability.Metrics
	checkpoints ports.CheckpointStore
	schema      schema.Schema
	logger      *slog.Logger
	clock       func() time.Time

	initial        domain.Tree
	capacity       int
	coalesceWindow time.Duration
	observers      []ports.Notifier
	metricsReg     prometheus.Registerer
	builtins       bool
}

// Option defines a functional option for configuring the Workspace.
type Option func(*Workspace)

// WithName labels the workspace; it is also attached to every log line.
func WithName(name string) Option {
	return func(w *Workspace) {
		w.Name = name
	}
}

// WithInitialState sets the tree the store starts from (and resets to).
func WithInitialState(tree domain.Tree) Option {
	return func(w *Workspace) {
		w.initial = tree
	}
}

// WithCapacity sets the maximum number of history entries.
func WithCapacity(n int) Option {
	return func(w *Workspace) {
		w.capacity = n
	}
}

// WithCoalesceWindow sets the default coalescing window of history entries.
func WithCoalesceWindow(d time.Duration) Option {
	return func(w *Workspace) {
		w.coalesceWindow = d
	}
}

// WithCheckpointStore enables Checkpoint and Restore.
func WithCheckpointStore(s ports.CheckpointStore) Option {
	return func(w *Workspace) {
		w.checkpoints = s
	}
}

// WithSchema rejects every change that leaves a declared slice with the wrong type.
func WithSchema(s schema.Schema) Option {
	return func(w *Workspace) {
		w.schema = s
	}
}

// WithObserver subscribes n to every store and history event.
func WithObserver(n ports.Notifier) Option {
	return func(w *Workspace) {
		if n != nil {
			w.observers = append(w.observers, n)
		}
	}
}

// WithMetrics registers Prometheus collectors fed by the workspace events.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(w *Workspace) {
		w.metricsReg = reg
	}
}

// WithClock sets the time source for history entries and checkpoints.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) {
		if now != nil {
			w.clock = now
		}
	}
}

// WithLogger sets a custom structured logger for the workspace.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = logger
	}
}

// WithoutBuiltins skips registering the set, merge and unset commands.
func WithoutBuiltins() Option {
	return func(w *Workspace) {
		w.builtins = false
	}
}

// New initializes a Workspace.
func New(opts ...Option) (*Workspace, error) {
	w := &Workspace{
		clock:          time.Now,
		capacity:       history.DefaultCapacity,
		coalesceWindow: history.DefaultCoalesceWindow,
		builtins:       true,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.capacity <= 0 {
		return nil, domain.NewValidationError("capacity", "must be positive", w.capacity)
	}
	if w.coalesceWindow < 0 {
		return nil, domain.NewValidationError("coalesce_window", "must not be negative", w.coalesceWindow)
	}

	// Ensure logger is initialized so components never get nil
	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	if w.Name != "" {
		w.logger = w.logger.With("workspace", w.Name)
	}

	w.bus = notify.NewBus(notify.WithLogger(w.logger))
	for _, o := range w.observers {
		w.bus.Subscribe(o)
	}

	if w.metricsReg != nil {
		m, err := observability.NewMetrics(w.metricsReg)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		m.SetCapacity(w.capacity)
		w.metrics = m
		w.bus.Subscribe(m)
	}

	storeOpts := []state.Option{
		state.WithNotifier(w.bus),
		state.WithLogger(w.logger),
	}
	if len(w.schema) > 0 {
		if err := w.schema.Validate(w.initial); err != nil {
			return nil, fmt.Errorf("initial state: %w", err)
		}
		storeOpts = append(storeOpts, state.WithValidator(w.schema.Validate))
	}
	w.store = state.New(w.initial, storeOpts...)

	w.registry = registry.New()
	if w.builtins {
		if err := commands.Register(w.registry); err != nil {
			return nil, fmt.Errorf("failed to register built-in commands: %w", err)
		}
	}

	w.history = history.New(w.store,
		history.WithCapacity(w.capacity),
		history.WithCoalesceWindow(w.coalesceWindow),
		history.WithRegistry(w.registry),
		history.WithNotifier(w.bus),
		history.WithClock(w.clock),
		history.WithLogger(w.logger),
	)

	return w, nil
}

// Store returns the state store.
func (w *Workspace) Store() *state.Store { return w.store }

// History returns the history manager.
func (w *Workspace) History() *history.Manager { return w.history }

// Registry returns the command registry.
func (w *Workspace) Registry() *registry.Registry { return w.registry }

// Bus returns the event bus the store and the history publish to.
func (w *Workspace) Bus() *notify.Bus { return w.bus }

// Metrics returns the Prometheus collectors, or nil when WithMetrics was not given.
func (w *Workspace) Metrics() *observability.Metrics { return w.metrics }

// Checkpoints returns the configured checkpoint store, if any.
func (w *Workspace) Checkpoints() ports.CheckpointStore { return w.checkpoints }

// Schema returns the declared slice types, or nil.
func (w *Workspace) Schema() schema.Schema { return w.schema }

// State returns a read-only view of the current state.
func (w *Workspace) State() state.State { return w.store.GetState() }

// Subscribe adds an observer to the event bus and returns a function that removes it.
func (w *Workspace) Subscribe(n ports.Notifier) func() {
	return w.bus.Subscribe(n)
}

// Register adds a named command factory.
func (w *Workspace) Register(name string, factory history.Factory) (func(), error) {
	return w.registry.Register(name, factory)
}

// Execute runs a command and records it in the history.
func (w *Workspace) Execute(ref any, payload any, opts ...history.ExecOption) (any, error) {
	return w.history.Execute(ref, payload, opts...)
}

// Undo reverts the most recent applied entry.
func (w *Workspace) Undo() (any, error) {
	res, err := w.history.Undo()
	w.stepFailed("undo", err)
	return res, err
}

// Redo re-applies the most recently undone entry.
func (w *Workspace) Redo() (any, error) {
	res, err := w.history.Redo()
	w.stepFailed("redo", err)
	return res, err
}

func (w *Workspace) stepFailed(phase string, err error) {
	if err == nil || w.metrics == nil {
		return
	}
	w.metrics.StepFailed(phase, domain.Position{Pointer: w.history.Pointer(), Length: w.history.Len()})
}

// Batch groups the commands run inside fn into a single history entry.
func (w *Workspace) Batch(label string, fn func(*history.Group) error) error {
	return w.history.Batch(label, fn)
}

// Snapshot builds a checkpoint of the current state and history without saving it.
func (w *Workspace) Snapshot(id string) *domain.Checkpoint {
	cp := domain.NewCheckpoint(id, w.store.GetSnapshot())
	cp.Version = w.store.Version()
	cp.History = w.history.Entries()
	cp.Pointer = w.history.Pointer()
	cp.SavedAt = w.clock()
	return cp
}

// Checkpoint saves the current state and history projection under id.
func (w *Workspace) Checkpoint(ctx context.Context, id string) (*domain.Checkpoint, error) {
	if w.checkpoints == nil {
		return nil, ErrNoCheckpointStore
	}
	cp := w.Snapshot(id)
	if err := w.checkpoints.Save(ctx, id, cp); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint %q: %w", id, err)
	}
	w.logger.Info("checkpoint saved", "checkpoint_id", id, "version", cp.Version, "entries", len(cp.History))
	return cp, nil
}

// Restore replaces the store with the checkpoint's state and clears the history.
// Commands are never persisted, so the restored workspace has nothing to undo.
func (w *Workspace) Restore(ctx context.Context, id string) (*domain.Checkpoint, error) {
	if w.checkpoints == nil {
		return nil, ErrNoCheckpointStore
	}
	cp, err := w.checkpoints.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %q: %w", id, err)
	}
	if err := w.Apply(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Apply replaces the store with cp's state and clears the history.
func (w *Workspace) Apply(cp *domain.Checkpoint) error {
	if cp == nil {
		return domain.NewValidationError("checkpoint", "must not be nil", nil)
	}
	tree := cp.State
	if tree == nil {
		tree = domain.Tree{}
	}
	meta := domain.Meta{"restore": cp.ID, "checkpoint_version": cp.Version}
	if err := w.store.Replace(tree, meta); err != nil {
		return err
	}
	w.history.Clear(meta)
	w.logger.Info("checkpoint restored", "checkpoint_id", cp.ID, "version", cp.Version)
	return nil
}
