package state_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	next, prev any
	meta       domain.Meta
}

func selectKey(key string) state.SubscribeOption {
	return state.WithSelector(func(s state.State) any { return s.Get(key) })
}

func TestStore_SelectorOnlyFiresOnItsSlice(t *testing.T) {
	store := state.New(domain.Tree{"a": 0, "b": 0})

	var calls []call
	store.Subscribe(func(next, prev any, meta domain.Meta) {
		calls = append(calls, call{next, prev, meta})
	}, selectKey("a"))

	require.NoError(t, store.Dispatch(domain.Tree{"b": 1}, domain.Meta{"source": "b"}))
	assert.Empty(t, calls)

	// Function form returning a fresh tree where only b differs.
	require.NoError(t, store.Dispatch(func(_ domain.Tree, prior state.State) domain.Tree {
		return domain.Tree{"a": prior.Get("a"), "b": 2}
	}, domain.Meta{"source": "b"}))
	assert.Empty(t, calls)
	assert.Equal(t, 2, store.GetState().Get("b"))

	require.NoError(t, store.Dispatch(domain.Tree{"a": 1}, domain.Meta{"source": "a"}))
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].next)
	assert.Equal(t, 0, calls[0].prev)
	assert.Equal(t, "a", calls[0].meta["source"])
	assert.Equal(t, uint64(3), calls[0].meta["version"])
}

func TestStore_UpdateSlice_Unknown(t *testing.T) {
	store := state.New(domain.Tree{"a": 0})

	err := store.UpdateSlice("unknownSlice", map[string]any{"x": 1}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLookup))
	var lookup *domain.LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "unknownSlice", lookup.Name)
	assert.Equal(t, uint64(0), store.Version())
}

func TestStore_UpdateSlice(t *testing.T) {
	store := state.New(domain.Tree{
		"tool":  map[string]any{"name": "brush", "size": 4},
		"other": "untouched",
	})

	require.NoError(t, store.UpdateSlice("tool", map[string]any{"size": 8}, nil))
	assert.Equal(t, map[string]any{"name": "brush", "size": 8}, store.GetState().Get("tool"))

	err := store.UpdateSlice("tool", func(draft, prior any) any {
		draft.(map[string]any)["name"] = "eraser"
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "eraser", "size": 8}, store.GetState().Get("tool"))
	assert.Equal(t, "untouched", store.GetState().Get("other"))
	assert.Equal(t, uint64(2), store.Version())

	err = store.UpdateSlice("other", state.SliceFunc(func(_, _ any) any { return "replaced" }), nil)
	require.NoError(t, err)
	assert.Equal(t, "replaced", store.GetState().Get("other"))
}

func TestStore_UpdateSlice_RejectsScalarPartial(t *testing.T) {
	store := state.New(domain.Tree{"zoom": 1})

	err := store.UpdateSlice("zoom", 2, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, 1, store.GetState().Get("zoom"))
}

func TestStore_Dispatch_Forms(t *testing.T) {
	store := state.New(domain.Tree{"count": 0, "nested": map[string]any{"a": 1}})

	// function form mutating the draft
	err := store.Dispatch(func(draft domain.Tree, prior state.State) domain.Tree {
		draft["count"] = 1
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.GetState().Get("count"))

	// named function type returning a fresh tree
	err = store.Dispatch(state.UpdateFunc(func(_ domain.Tree, prior state.State) domain.Tree {
		return domain.Tree{"count": 2}
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Tree{"count": 2}, store.GetSnapshot())

	// plain map partial is merged
	require.NoError(t, store.Dispatch(map[string]any{"extra": true}, nil))
	assert.Equal(t, domain.Tree{"count": 2, "extra": true}, store.GetSnapshot())
	assert.Equal(t, uint64(3), store.Version())
}

func TestStore_Dispatch_Validation(t *testing.T) {
	store := state.New(domain.Tree{"a": 1})

	tests := []struct {
		name    string
		updater any
	}{
		{"nil", nil},
		{"nil tree", domain.Tree(nil)},
		{"nil map", map[string]any(nil)},
		{"scalar", 42},
		{"wrong func", func() {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Dispatch(tt.updater, nil)
			assert.True(t, errors.Is(err, domain.ErrValidation))
		})
	}
	assert.Equal(t, uint64(0), store.Version())
}

func TestStore_NoOpCommit(t *testing.T) {
	store := state.New(domain.Tree{"a": 1})

	fired := 0
	store.Subscribe(func(_, _ any, _ domain.Meta) { fired++ })

	require.NoError(t, store.Dispatch(domain.Tree{"a": 1}, nil))
	require.NoError(t, store.Dispatch(func(draft domain.Tree, _ state.State) domain.Tree { return nil }, nil))

	assert.Zero(t, fired)
	assert.Equal(t, uint64(0), store.Version())
}

func TestStore_ValidatorRejectsCommit(t *testing.T) {
	errNegative := domain.NewValidationError("zoom", "must not be negative", nil)
	store := state.New(domain.Tree{"zoom": 1}, state.WithValidator(func(next domain.Tree) error {
		if z, ok := next["zoom"].(int); ok && z < 0 {
			return errNegative
		}
		return nil
	}))

	fired := 0
	store.Subscribe(func(_, _ any, _ domain.Meta) { fired++ })

	err := store.UpdateSlice("zoom", func(draft, _ any) any { return -1 }, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 1, store.GetState().Get("zoom"))
	assert.Equal(t, uint64(0), store.Version())
	assert.Zero(t, fired)

	require.NoError(t, store.Dispatch(domain.Tree{"zoom": 2}, nil))
	assert.Equal(t, 1, fired)
}

func TestStore_DraftMutationDoesNotLeak(t *testing.T) {
	store := state.New(domain.Tree{"nested": map[string]any{"a": 1}})
	before := store.GetState()

	require.NoError(t, store.Dispatch(func(draft domain.Tree, prior state.State) domain.Tree {
		draft["nested"].(map[string]any)["a"] = 2
		return nil
	}, nil))

	assert.Equal(t, 1, before.Get("nested").(map[string]any)["a"])
	assert.Equal(t, 2, store.GetState().Get("nested").(map[string]any)["a"])
}

func TestStore_FunctionResultDoesNotAliasCaller(t *testing.T) {
	store := state.New(domain.Tree{"layer": map[string]any{"x": 1}, "points": []any{1}})

	external := map[string]any{"x": 2}
	require.NoError(t, store.Dispatch(func(draft domain.Tree, _ state.State) domain.Tree {
		draft["layer"] = external
		return nil
	}, nil))

	returned := domain.Tree{"layer": map[string]any{"x": 3}, "points": []any{1}}
	require.NoError(t, store.Dispatch(func(domain.Tree, state.State) domain.Tree {
		return returned
	}, nil))

	points := []any{7}
	require.NoError(t, store.UpdateSlice("points", func(_, _ any) any { return points }, nil))
	require.Equal(t, uint64(3), store.Version())

	external["x"] = 99
	returned["layer"].(map[string]any)["x"] = 99
	points[0] = 42

	assert.Equal(t, 3, store.GetState().Get("layer").(map[string]any)["x"])
	assert.Equal(t, []any{7}, store.GetState().Get("points"))
	assert.Equal(t, uint64(3), store.Version())
}

func TestStore_SnapshotIsOwned(t *testing.T) {
	store := state.New(domain.Tree{"nested": map[string]any{"a": 1}})

	snap := store.GetSnapshot()
	snap["nested"].(map[string]any)["a"] = 99

	assert.Equal(t, 1, store.GetState().Get("nested").(map[string]any)["a"])
}

func TestStore_ReplaceAndReset(t *testing.T) {
	initial := domain.Tree{"a": 1}
	store := state.New(initial)
	initial["a"] = 100

	require.NoError(t, store.Replace(domain.Tree{"b": 2}, domain.Meta{"source": "load"}))
	assert.Equal(t, domain.Tree{"b": 2}, store.GetSnapshot())

	require.NoError(t, store.Reset(nil))
	assert.Equal(t, domain.Tree{"a": 1}, store.GetSnapshot())
	assert.Equal(t, uint64(2), store.Version())

	assert.True(t, errors.Is(store.Replace(nil, nil), domain.ErrValidation))
}

func TestStore_FireImmediately(t *testing.T) {
	store := state.New(domain.Tree{"a": 5})

	var calls []call
	store.Subscribe(func(next, prev any, meta domain.Meta) {
		calls = append(calls, call{next, prev, meta})
	}, selectKey("a"), state.FireImmediately())

	require.Len(t, calls, 1)
	assert.Equal(t, 5, calls[0].next)
	assert.Nil(t, calls[0].prev)
	assert.Equal(t, uint64(0), calls[0].meta["version"])
}

func TestStore_CustomEquality(t *testing.T) {
	store := state.New(domain.Tree{"name": "Brush"})

	fired := 0
	store.Subscribe(func(_, _ any, _ domain.Meta) { fired++ },
		selectKey("name"),
		state.WithEquality(func(a, b any) bool {
			as, _ := a.(string)
			bs, _ := b.(string)
			return len(as) == len(bs)
		}),
	)

	require.NoError(t, store.Dispatch(domain.Tree{"name": "brush"}, nil))
	assert.Zero(t, fired)

	require.NoError(t, store.Dispatch(domain.Tree{"name": "eraser"}, nil))
	assert.Equal(t, 1, fired)
}

func TestStore_ListenerReceivesCopies(t *testing.T) {
	store := state.New(domain.Tree{"nested": map[string]any{"a": 1}})

	store.Subscribe(func(next, _ any, _ domain.Meta) {
		next.(domain.Tree)["nested"].(map[string]any)["a"] = "tampered"
	})

	require.NoError(t, store.Dispatch(domain.Tree{"nested": map[string]any{"a": 2}}, nil))
	assert.Equal(t, 2, store.GetState().Get("nested").(map[string]any)["a"])
}

func TestStore_Unsubscribe(t *testing.T) {
	store := state.New(domain.Tree{"a": 0})

	fired := 0
	unsubscribe := store.Subscribe(func(_, _ any, _ domain.Meta) { fired++ })
	assert.Equal(t, 1, store.Subscribers())

	require.NoError(t, store.Dispatch(domain.Tree{"a": 1}, nil))
	unsubscribe()
	unsubscribe()
	require.NoError(t, store.Dispatch(domain.Tree{"a": 2}, nil))

	assert.Equal(t, 1, fired)
	assert.Zero(t, store.Subscribers())

	noop := store.Subscribe(nil)
	noop()
	assert.Zero(t, store.Subscribers())
}

func TestStore_UnsubscribeDuringNotification(t *testing.T) {
	store := state.New(domain.Tree{"a": 0})

	var second func()
	firstCalls, secondCalls := 0, 0
	store.Subscribe(func(_, _ any, _ domain.Meta) {
		firstCalls++
		second()
	})
	second = store.Subscribe(func(_, _ any, _ domain.Meta) { secondCalls++ })

	require.NoError(t, store.Dispatch(domain.Tree{"a": 1}, nil))

	assert.Equal(t, 1, firstCalls)
	assert.Zero(t, secondCalls)
}

func TestStore_PanicsAreIsolated(t *testing.T) {
	var buf bytes.Buffer
	store := state.New(domain.Tree{"a": 0}, state.WithLogger(logging.NewWithWriter(&buf, logging.ParseLevel("debug"))))

	store.Subscribe(func(_, _ any, _ domain.Meta) { panic("listener boom") })
	store.Subscribe(func(_, _ any, _ domain.Meta) {}, state.WithSelector(func(s state.State) any {
		if s.Version() > 0 {
			panic("selector boom")
		}
		return nil
	}))

	healthy := 0
	store.Subscribe(func(_, _ any, _ domain.Meta) { healthy++ })

	require.NotPanics(t, func() {
		require.NoError(t, store.Dispatch(domain.Tree{"a": 1}, nil))
	})
	assert.Equal(t, 1, healthy)
	assert.Contains(t, buf.String(), "listener panicked")
	assert.Contains(t, buf.String(), "selector panicked")
}

func TestStore_PublishesChangeEvent(t *testing.T) {
	var events []domain.Event
	notifier := ports.NotifierFunc(func(e domain.Event) { events = append(events, e) })
	store := state.New(domain.Tree{"a": 0, "b": 0}, state.WithNotifier(notifier))

	require.NoError(t, store.Dispatch(domain.Tree{"a": 1}, domain.Meta{"source": "test"}))
	require.NoError(t, store.Dispatch(domain.Tree{"a": 1}, nil))

	require.Len(t, events, 1)
	changed, ok := events[0].(domain.StoreChanged)
	require.True(t, ok)
	assert.Equal(t, uint64(1), changed.Version)
	assert.Equal(t, []string{"a"}, changed.Changed)
	assert.Equal(t, "test", changed.Meta["source"])
	assert.Equal(t, domain.Tree{"a": 1, "b": 0}, changed.State)
}
