package ports

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
)

// CheckpointStore defines the interface for persisting workspace checkpoints.
// This allows a document to be saved, closed and reopened later.
type CheckpointStore interface {
	// Save persists the checkpoint under the given ID, replacing any previous one.
	Save(ctx context.Context, id string, cp *domain.Checkpoint) error

	// Load retrieves the checkpoint for the given ID.
	// Returns domain.ErrCheckpointNotFound if the checkpoint does not exist.
	Load(ctx context.Context, id string) (*domain.Checkpoint, error)

	// Delete removes the checkpoint for the given ID.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored checkpoints.
	List(ctx context.Context) ([]string, error)
}
