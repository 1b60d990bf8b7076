package history

import (
	"errors"

	"github.com/aretw0/strata/pkg/domain"
)

// Group is a compound command: the commands run inside one Batch, recorded as a
// single entry. Undo reverts the children newest first; Redo replays them in order.
type Group struct {
	label    string
	manager  *Manager
	children []*Entry
}

// Run resolves and runs one command as part of the group.
// The command is not recorded on its own.
func (g *Group) Run(ref any, payload any, opts ...ExecOption) (any, error) {
	var cfg ExecOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	cmd, name, err := g.manager.resolve(ref, payload, cfg)
	if err != nil {
		return nil, err
	}
	child := g.manager.newEntry(cmd, name, payload, cfg)
	result, err := cmd.Execute(g.manager.newContext(PhaseExecute, child))
	if err != nil {
		return nil, err
	}
	g.children = append(g.children, child)
	return result, nil
}

// Len returns the number of commands executed so far.
func (g *Group) Len() int { return len(g.children) }

// Execute implements Command by replaying the children in order.
func (g *Group) Execute(ctx *Context) (any, error) {
	return g.Redo(ctx)
}

// Undo implements Command. It stops at the first failing child.
func (g *Group) Undo(ctx *Context) (any, error) {
	for i := len(g.children) - 1; i >= 0; i-- {
		child := g.children[i]
		if _, err := child.Command.Undo(g.manager.newContext(PhaseUndo, child)); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// Redo implements Redoer.
func (g *Group) Redo(ctx *Context) (any, error) {
	for _, child := range g.children {
		if _, err := redo(child.Command, g.manager.newContext(PhaseRedo, child)); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// Describe implements Describer.
func (g *Group) Describe() Descriptor {
	labels := make([]any, len(g.children))
	for i, child := range g.children {
		labels[i] = child.Label
	}
	return Descriptor{
		Type:  "group",
		Label: g.label,
		Meta:  domain.Meta{"children": labels},
	}
}

// Dispose implements Disposer.
func (g *Group) Dispose() {
	for _, child := range g.children {
		if d, ok := child.Command.(Disposer); ok {
			d.Dispose()
		}
	}
}

// Batch runs fn and records every command it executed through the group as one entry.
// If fn fails, the commands that already ran are undone newest first and the history
// is left untouched. The rollback error, if any, is joined to fn's error.
// An empty batch records nothing.
func (m *Manager) Batch(label string, fn func(g *Group) error) error {
	if fn == nil {
		return domain.NewValidationError("batch", "function is nil", nil)
	}

	g := &Group{label: label, manager: m}
	if err := fn(g); err != nil {
		if _, rollbackErr := g.Undo(nil); rollbackErr != nil {
			return errors.Join(err, rollbackErr)
		}
		return err
	}
	if len(g.children) == 0 {
		return nil
	}

	m.record(m.newEntry(g, "", nil, ExecOptions{}))
	return nil
}
