package script

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/history"
	"github.com/aretw0/strata/pkg/notify"
)

// epoch is the clock origin of scripts without a start time.
var epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// StepResult records the outcome of one top-level step.
type StepResult struct {
	Index   int       `json:"index"`
	Op      string    `json:"op"`
	Command string    `json:"command,omitempty"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
	Pointer int       `json:"pointer"`
	Length  int       `json:"length"`
}

// Result is what a replay produced.
type Result struct {
	Workspace *strata.Workspace  `json:"-"`
	Steps     []StepResult       `json:"steps"`
	Events    []domain.Event     `json:"-"`
	Final     *domain.Checkpoint `json:"final"`
}

// Runner replays scripts.
type Runner struct {
	logger  *slog.Logger
	options []strata.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for step failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithWorkspaceOptions passes extra options to every workspace the runner creates.
func WithWorkspaceOptions(opts ...strata.Option) Option {
	return func(r *Runner) {
		r.options = append(r.options, opts...)
	}
}

// NewRunner creates a script runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays s on a new workspace.
// A step that fails without expect_error stops the replay and its error is returned
// together with the partial result.
func (r *Runner) Run(s *Script) (*Result, error) {
	now := s.Start
	if now.IsZero() {
		now = epoch
	}
	tick := DefaultTick
	if s.Tick != nil {
		tick = *s.Tick
	}
	clock := func() time.Time { return now }

	rec := &notify.Recorder{}
	opts := []strata.Option{
		strata.WithName(s.Name),
		strata.WithInitialState(domain.Tree(s.InitialState)),
		strata.WithClock(clock),
		strata.WithObserver(rec),
		strata.WithLogger(r.logger),
	}
	if s.Capacity != 0 {
		opts = append(opts, strata.WithCapacity(s.Capacity))
	}
	if s.CoalesceWindow != nil {
		opts = append(opts, strata.WithCoalesceWindow(*s.CoalesceWindow))
	}
	ws, err := strata.New(append(opts, r.options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	res := &Result{Workspace: ws}
	var runErr error
	for i, st := range s.Steps {
		if st.Advance != nil {
			now = now.Add(*st.Advance)
		} else {
			now = now.Add(tick)
		}

		err := r.apply(ws, st)
		h := ws.History()
		sr := StepResult{
			Index:   i,
			Op:      st.Op,
			Command: st.Command,
			At:      now,
			Pointer: h.Pointer(),
			Length:  h.Len(),
		}
		if err != nil {
			sr.Error = err.Error()
		}
		res.Steps = append(res.Steps, sr)

		if err != nil && !st.ExpectError {
			r.logger.Error("step failed", "step", i, "op", st.Op, "err", err)
			runErr = fmt.Errorf("step %d (%s): %w", i, st.Op, err)
			break
		}
		if err == nil && st.ExpectError {
			runErr = fmt.Errorf("step %d (%s): expected an error", i, st.Op)
			break
		}
	}

	res.Events = rec.Events()
	res.Final = ws.Snapshot(s.Name)
	return res, runErr
}

func (r *Runner) apply(ws *strata.Workspace, st Step) error {
	switch st.Op {
	case OpExecute:
		_, err := ws.Execute(st.Command, st.Payload, execOptions(st)...)
		return err
	case OpUndo:
		_, err := ws.Undo()
		return err
	case OpRedo:
		_, err := ws.Redo()
		return err
	case OpClear:
		ws.History().Clear(domain.Meta(st.Meta))
		return nil
	case OpConfigure:
		var settings []history.Setting
		if st.Capacity != 0 {
			settings = append(settings, history.SetCapacity(st.Capacity))
		}
		if st.CoalesceWindow != nil {
			settings = append(settings, history.SetCoalesceWindow(*st.CoalesceWindow))
		}
		return ws.History().Configure(settings...)
	case OpBatch:
		return ws.Batch(st.Label, func(g *history.Group) error {
			for _, child := range st.Steps {
				if _, err := g.Run(child.Command, child.Payload, execOptions(child)...); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return domain.NewValidationError("op", "unknown operation", st.Op)
}

func execOptions(st Step) []history.ExecOption {
	var opts []history.ExecOption
	if st.Label != "" {
		opts = append(opts, history.WithLabel(st.Label))
	}
	if st.Coalesce != nil {
		opts = append(opts, history.WithCoalesce(*st.Coalesce))
	}
	if st.CoalesceKey != "" {
		opts = append(opts, history.WithCoalesceKey(st.CoalesceKey))
	}
	if st.Window != nil {
		opts = append(opts, history.WithEntryWindow(*st.Window))
	}
	if len(st.Meta) > 0 {
		opts = append(opts, history.WithMeta(domain.Meta(st.Meta)))
	}
	return opts
}
