package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactMiddleware_Masking(t *testing.T) {
	underlying := NewMockStore()
	store := middleware.NewRedactMiddleware([]string{"password", "ssn"})(underlying)

	ctx := context.Background()
	cp := domain.NewCheckpoint("doc", domain.Tree{
		"username":      "jdoe",
		"user_password": "secret123",
		"details": map[string]any{
			"address":    "123 St",
			"ssn_number": "999-99-9999",
		},
		"accounts": []any{
			map[string]any{"password": "hunter2"},
		},
	})
	cp.History = []domain.EntryInfo{
		{ID: "1", Label: "login", Meta: domain.Meta{"password": "typed", "source": "form"}},
	}

	require.NoError(t, store.Save(ctx, "doc", cp))

	// The caller's checkpoint is untouched.
	assert.Equal(t, "secret123", cp.State["user_password"])
	assert.Equal(t, "typed", cp.History[0].Meta["password"])

	stored, err := underlying.Load(ctx, "doc")
	require.NoError(t, err)

	assert.Equal(t, "jdoe", stored.State["username"])
	assert.Equal(t, middleware.Mask, stored.State["user_password"])

	details := stored.State["details"].(map[string]any)
	assert.Equal(t, "123 St", details["address"])
	assert.Equal(t, middleware.Mask, details["ssn_number"])

	account := stored.State["accounts"].([]any)[0].(map[string]any)
	assert.Equal(t, middleware.Mask, account["password"])

	assert.Equal(t, middleware.Mask, stored.History[0].Meta["password"])
	assert.Equal(t, "form", stored.History[0].Meta["source"])
}

func TestRedactMiddleware_PassThrough(t *testing.T) {
	underlying := NewMockStore()
	store := middleware.NewRedactMiddleware(nil)(underlying)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", domain.NewCheckpoint("a", domain.Tree{"password": "x"})))

	loaded, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "x", loaded.State["password"])

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
}
