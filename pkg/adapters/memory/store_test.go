package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunCheckpointStoreContract(t, store)
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	store := memory.NewStore()
	err := store.Save(context.Background(), "", domain.NewCheckpoint("", nil))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
