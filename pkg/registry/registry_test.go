package registry_test

import (
	"errors"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/history"
	"github.com/aretw0/strata/pkg/registry"
	"github.com/aretw0/strata/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop() history.Command {
	return &history.Funcs{
		ExecuteFn: func(*history.Context) (any, error) { return "ran", nil },
		UndoFn:    func(*history.Context) (any, error) { return nil, nil },
	}
}

func factory(history.FactoryInput) (history.Command, error) { return noop(), nil }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := registry.New()

	unregister, err := reg.Register("brush", factory)
	require.NoError(t, err)
	_, err = reg.Register("eraser", factory)
	require.NoError(t, err)

	assert.True(t, reg.Has("brush"))
	assert.Equal(t, []string{"brush", "eraser"}, reg.Names())

	f, ok := reg.Lookup("brush")
	require.True(t, ok)
	cmd, err := f(history.FactoryInput{})
	require.NoError(t, err)
	assert.NotNil(t, cmd)

	unregister()
	unregister()
	assert.False(t, reg.Has("brush"))
	assert.Equal(t, []string{"eraser"}, reg.Names())
}

func TestRegistry_StaleUnregisterKeepsReplacement(t *testing.T) {
	reg := registry.New()

	first, err := reg.Register("brush", factory)
	require.NoError(t, err)
	_, err = reg.Register("brush", factory)
	require.NoError(t, err)

	first()
	assert.True(t, reg.Has("brush"))
}

func TestRegistry_Validation(t *testing.T) {
	reg := registry.New()

	_, err := reg.Register("", factory)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = reg.Register("brush", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = reg.RegisterCommand("brush", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Panics(t, func() { reg.MustRegister("", factory) })
	assert.Empty(t, reg.Names())
}

func TestRegistry_Build(t *testing.T) {
	reg := registry.New()
	reg.MustRegister("brush", factory)

	cmd, err := reg.Build("brush", history.FactoryInput{})
	require.NoError(t, err)
	assert.NotNil(t, cmd)

	_, err = reg.Build("ghost", history.FactoryInput{})
	var lookup *domain.LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, "ghost", lookup.Name)
}

func TestRegistry_ResolvesForHistory(t *testing.T) {
	reg := registry.New()
	_, err := reg.RegisterCommand("ping", noop())
	require.NoError(t, err)

	h := history.New(state.New(nil), history.WithRegistry(reg))

	result, err := h.Execute("ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "ran", result)

	top, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, "ping", top.Type)

	_, err = h.Execute("pong", nil)
	assert.ErrorIs(t, err, domain.ErrLookup)
}
