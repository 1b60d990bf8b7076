package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCheckpointStoreContract runs a suite of tests to verify that a CheckpointStore
// implementation adheres to the defined interface contract.
func RunCheckpointStoreContract(t *testing.T, store CheckpointStore) {
	ctx := context.Background()
	id := "contract-test-doc-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		cp := domain.NewCheckpoint(id, domain.Tree{
			"canvas": map[string]any{"width": 800, "title": "untitled"},
			"layers": []any{"bg"},
		})
		cp.Version = 7
		cp.Pointer = 0
		cp.History = []domain.EntryInfo{{ID: "e1", Label: "Paint", Type: "paint", Revisions: 2}}

		err := store.Save(ctx, id, cp)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, uint64(7), loaded.Version)
		assert.Equal(t, 0, loaded.Pointer)
		// JSON backends turn ints into float64; compare structurally.
		assert.True(t, domain.Equal(cp.State, loaded.State), "state should survive a round trip")
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "Paint", loaded.History[0].Label)
		assert.Equal(t, 2, loaded.History[0].Revisions)
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		loaded.State["canvas"] = "mutated"

		again, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", again.State["canvas"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, id, domain.NewCheckpoint(id, domain.Tree{}))
		require.NoError(t, err)

		err = store.Delete(ctx, id)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound, "Load after Delete should return ErrCheckpointNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		_ = store.Save(ctx, id1, domain.NewCheckpoint(id1, domain.Tree{}))
		_ = store.Save(ctx, id2, domain.NewCheckpoint(id2, domain.Tree{}))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
