package history

import (
	"reflect"

	"github.com/aretw0/strata/pkg/domain"
)

// Command is a reversible unit of work.
// Execute applies the change to the store and keeps whatever it needs to revert it;
// Undo reverts it. Both run synchronously on the caller's stack.
type Command interface {
	Execute(ctx *Context) (any, error)
	Undo(ctx *Context) (any, error)
}

// Redoer is implemented by commands that can re-apply themselves more cheaply than
// replaying Execute. Commands without it are redone by calling Execute again.
type Redoer interface {
	Redo(ctx *Context) (any, error)
}

// Direction tells a Coalescer which side of the merge it sits on.
type Direction int

const (
	// AbsorbNewer is passed to the command already on the stack; other is the newer command.
	AbsorbNewer Direction = iota
	// MergeIntoOlder is passed to the newer command; other is the command on the stack,
	// which must end up carrying the combined effect.
	MergeIntoOlder
)

func (d Direction) String() string {
	if d == MergeIntoOlder {
		return "merge-into-older"
	}
	return "absorb-newer"
}

// Coalescer is the single merge capability of a command.
// Returning true means the entry on the stack now represents both changes and the
// newer command is discarded.
type Coalescer interface {
	Coalesce(other Command, dir Direction) bool
}

// Disposer is called on a command that was merged away and will never run again.
type Disposer interface {
	Dispose()
}

// Descriptor is the static description of a command.
type Descriptor struct {
	Type    string
	Label   string
	Options domain.CoalesceOptions
	Meta    domain.Meta
}

// Describer is implemented by commands that carry a label, type, meta or coalesce options.
type Describer interface {
	Describe() Descriptor
}

// FactoryInput is what a factory receives at execute time.
type FactoryInput struct {
	Payload any
	Options ExecOptions
}

// Factory builds a command for one execution.
type Factory func(in FactoryInput) (Command, error)

// Resolver looks up factories by name. *registry.Registry implements it.
type Resolver interface {
	Lookup(name string) (Factory, bool)
}

// Funcs builds an ad hoc command out of plain functions.
// ExecuteFn and UndoFn are required; RedoFn defaults to ExecuteFn.
type Funcs struct {
	Type    string
	Label   string
	Options domain.CoalesceOptions
	Meta    domain.Meta

	ExecuteFn  func(ctx *Context) (any, error)
	UndoFn     func(ctx *Context) (any, error)
	RedoFn     func(ctx *Context) (any, error)
	CoalesceFn func(other Command, dir Direction) bool
	DisposeFn  func()
}

func (f *Funcs) Execute(ctx *Context) (any, error) { return f.ExecuteFn(ctx) }

func (f *Funcs) Undo(ctx *Context) (any, error) { return f.UndoFn(ctx) }

func (f *Funcs) Redo(ctx *Context) (any, error) {
	if f.RedoFn != nil {
		return f.RedoFn(ctx)
	}
	return f.ExecuteFn(ctx)
}

func (f *Funcs) Coalesce(other Command, dir Direction) bool {
	if f.CoalesceFn == nil {
		return false
	}
	return f.CoalesceFn(other, dir)
}

func (f *Funcs) Dispose() {
	if f.DisposeFn != nil {
		f.DisposeFn()
	}
}

func (f *Funcs) Describe() Descriptor {
	return Descriptor{Type: f.Type, Label: f.Label, Options: f.Options, Meta: f.Meta}
}

func (f *Funcs) validate() error {
	if f.ExecuteFn == nil {
		return domain.NewValidationError("command", "missing execute", nil)
	}
	if f.UndoFn == nil {
		return domain.NewValidationError("command", "missing undo", nil)
	}
	return nil
}

func describe(cmd Command) Descriptor {
	if d, ok := cmd.(Describer); ok {
		return d.Describe()
	}
	return Descriptor{}
}

func isNil(cmd Command) bool {
	if cmd == nil {
		return true
	}
	v := reflect.ValueOf(cmd)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
