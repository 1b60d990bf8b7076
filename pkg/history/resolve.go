package history

import (
	"github.com/aretw0/strata/pkg/domain"
)

// resolve turns a command reference into a ready command.
// name is the registry name when ref was one, empty otherwise.
func (m *Manager) resolve(ref any, payload any, cfg ExecOptions) (cmd Command, name string, err error) {
	in := FactoryInput{Payload: payload, Options: cfg}

	switch r := ref.(type) {
	case nil:
		return nil, "", domain.NewValidationError("command", "reference is nil", nil)
	case string:
		if r == "" {
			return nil, "", domain.NewValidationError("command", "name is empty", r)
		}
		var factory Factory
		ok := false
		if m.registry != nil {
			factory, ok = m.registry.Lookup(r)
		}
		if !ok {
			return nil, "", &domain.LookupError{Kind: domain.LookupCommand, Name: r}
		}
		name = r
		cmd, err = factory(in)
	case Factory:
		if r == nil {
			return nil, "", domain.NewValidationError("command", "factory is nil", nil)
		}
		cmd, err = r(in)
	case func(FactoryInput) (Command, error):
		if r == nil {
			return nil, "", domain.NewValidationError("command", "factory is nil", nil)
		}
		cmd, err = r(in)
	case Funcs:
		if err := r.validate(); err != nil {
			return nil, "", err
		}
		cmd = &r
	case *Funcs:
		if r == nil {
			return nil, "", domain.NewValidationError("command", "is nil", nil)
		}
		if err := r.validate(); err != nil {
			return nil, "", err
		}
		cp := *r
		cmd = &cp
	case Command:
		cmd = r
	default:
		return nil, "", domain.NewValidationError("command", "must be a name, a factory or a command", ref)
	}

	if err != nil {
		return nil, "", err
	}
	if isNil(cmd) {
		return nil, "", domain.NewValidationError("command", "factory returned no command", nil)
	}
	if f, ok := cmd.(*Funcs); ok {
		if err := f.validate(); err != nil {
			return nil, "", err
		}
	}
	return cmd, name, nil
}
