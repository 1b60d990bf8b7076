package commands

import (
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/history"
	"github.com/aretw0/strata/pkg/state"
)

// Names of the built-in commands.
const (
	Set   = "set"
	Merge = "merge"
	Unset = "unset"
)

// Registrar is the part of the registry the built-ins need.
type Registrar interface {
	Has(name string) bool
	Register(name string, factory history.Factory) (func(), error)
}

// Register adds the built-in commands that are not registered yet.
func Register(reg Registrar) error {
	builtins := []struct {
		name    string
		factory history.Factory
	}{
		{Set, NewSet},
		{Merge, NewMerge},
		{Unset, NewUnset},
	}
	for _, b := range builtins {
		if reg.Has(b.name) {
			continue
		}
		if _, err := reg.Register(b.name, b.factory); err != nil {
			return err
		}
	}
	return nil
}

// SetPayload replaces (or creates) one slice.
type SetPayload struct {
	Slice string `mapstructure:"slice"`
	Value any    `mapstructure:"value"`
	Label string `mapstructure:"label"`

	domain.CoalesceOptions `mapstructure:",squash"`
}

// MergePayload deep-merges a patch into an existing slice.
type MergePayload struct {
	Slice string         `mapstructure:"slice"`
	Patch map[string]any `mapstructure:"patch"`
	Label string         `mapstructure:"label"`

	domain.CoalesceOptions `mapstructure:",squash"`
}

// UnsetPayload removes one slice.
type UnsetPayload struct {
	Slice string `mapstructure:"slice"`
	Label string `mapstructure:"label"`
}

// sliceCommand remembers one slice before and after the change.
type sliceCommand struct {
	kind    string
	slice   string
	label   string
	options domain.CoalesceOptions

	before, after any
	existed       bool
}

func (c *sliceCommand) Describe() history.Descriptor {
	opts := c.options
	if opts.Enabled && opts.Key == "" {
		opts.Key = c.kind + ":" + c.slice
	}
	return history.Descriptor{
		Type:    c.kind,
		Label:   c.label,
		Options: opts,
		Meta:    domain.Meta{"slice": c.slice},
	}
}

func (c *sliceCommand) base() *sliceCommand { return c }

func (c *sliceCommand) capture(s state.State) {
	v, ok := s.Slice(c.slice)
	c.before, c.existed = domain.Clone(v), ok
}

// Undo restores the slice as it was before Execute.
func (c *sliceCommand) Undo(ctx *history.Context) (any, error) {
	return c.before, c.write(ctx, c.before, c.existed)
}

// Redo writes the remembered result again.
func (c *sliceCommand) Redo(ctx *history.Context) (any, error) {
	return c.after, c.write(ctx, c.after, c.kind != Unset)
}

func (c *sliceCommand) write(ctx *history.Context, value any, present bool) error {
	value = domain.Clone(value)
	return ctx.Store.Dispatch(func(draft domain.Tree, _ state.State) domain.Tree {
		if present {
			draft[c.slice] = value
		} else {
			delete(draft, c.slice)
		}
		return draft
	}, ctx.Meta())
}

// Coalesce keeps the oldest "before" and takes the newest "after", so one undo
// reverts the whole run.
func (c *sliceCommand) Coalesce(other history.Command, dir history.Direction) bool {
	peer, ok := other.(interface{ base() *sliceCommand })
	if !ok {
		return false
	}
	o := peer.base()
	if o.kind != c.kind || o.slice != c.slice {
		return false
	}
	if dir == history.AbsorbNewer {
		c.after = o.after
	} else {
		o.after = c.after
	}
	return true
}

// SetCommand replaces one slice, creating it when missing.
type SetCommand struct{ sliceCommand }

// NewSet is the factory of the "set" command.
func NewSet(in history.FactoryInput) (history.Command, error) {
	var p SetPayload
	if err := decode(in.Payload, &p); err != nil {
		return nil, err
	}
	if p.Slice == "" {
		return nil, domain.NewValidationError("slice", "is required", p.Slice)
	}
	return &SetCommand{sliceCommand{
		kind:    Set,
		slice:   p.Slice,
		label:   p.Label,
		options: p.CoalesceOptions,
		after:   domain.Clone(p.Value),
	}}, nil
}

func (c *SetCommand) Execute(ctx *history.Context) (any, error) {
	c.capture(ctx.Store.GetState())
	return c.after, c.write(ctx, c.after, true)
}

// MergeCommand deep-merges a patch into an existing slice.
type MergeCommand struct {
	sliceCommand
	patch map[string]any
}

// NewMerge is the factory of the "merge" command.
func NewMerge(in history.FactoryInput) (history.Command, error) {
	var p MergePayload
	if err := decode(in.Payload, &p); err != nil {
		return nil, err
	}
	if p.Slice == "" {
		return nil, domain.NewValidationError("slice", "is required", p.Slice)
	}
	if p.Patch == nil {
		return nil, domain.NewValidationError("patch", "is required", nil)
	}
	return &MergeCommand{
		sliceCommand: sliceCommand{kind: Merge, slice: p.Slice, label: p.Label, options: p.CoalesceOptions},
		patch:        p.Patch,
	}, nil
}

func (c *MergeCommand) Execute(ctx *history.Context) (any, error) {
	c.capture(ctx.Store.GetState())
	if err := ctx.Store.UpdateSlice(c.slice, c.patch, ctx.Meta()); err != nil {
		return nil, err
	}
	c.after = domain.Clone(ctx.Store.GetState().Get(c.slice))
	return c.after, nil
}

// Coalesce merges consecutive patches of the same slice.
func (c *MergeCommand) Coalesce(other history.Command, dir history.Direction) bool {
	o, ok := other.(*MergeCommand)
	if !ok || o.slice != c.slice || dir != history.AbsorbNewer {
		return false
	}
	c.after = o.after
	c.patch = domain.Merge(c.patch, o.patch).(map[string]any)
	return true
}

// UnsetCommand removes one slice.
type UnsetCommand struct{ sliceCommand }

// NewUnset is the factory of the "unset" command.
func NewUnset(in history.FactoryInput) (history.Command, error) {
	var p UnsetPayload
	if err := decode(in.Payload, &p); err != nil {
		return nil, err
	}
	if p.Slice == "" {
		return nil, domain.NewValidationError("slice", "is required", p.Slice)
	}
	return &UnsetCommand{sliceCommand{kind: Unset, slice: p.Slice, label: p.Label}}, nil
}

func (c *UnsetCommand) Execute(ctx *history.Context) (any, error) {
	c.capture(ctx.Store.GetState())
	if !c.existed {
		return nil, &domain.LookupError{Kind: domain.LookupSlice, Name: c.slice}
	}
	return c.before, c.write(ctx, nil, false)
}
