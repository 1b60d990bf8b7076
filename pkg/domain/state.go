package domain

import (
	"slices"
	"time"
)

// Checkpoint is a persisted snapshot of a workspace.
// Commands are never serialized: History only carries the entry projections, so a
// restored workspace starts with an empty undo stack.
type Checkpoint struct {
	// ID identifies the checkpoint in its store (e.g. a document name).
	ID string `json:"id"`

	// Version is the store version the snapshot was taken at.
	Version uint64 `json:"version"`

	// State is an owned deep copy of the store tree.
	State Tree `json:"state"`

	// History lists the entries that were on the stack when the checkpoint was taken.
	History []EntryInfo `json:"history,omitempty"`

	// Pointer is the history pointer at save time (-1 when nothing was undoable).
	Pointer int `json:"pointer"`

	// SavedAt is when the checkpoint was taken.
	SavedAt time.Time `json:"saved_at"`
}

// NewCheckpoint creates a checkpoint with an empty history.
func NewCheckpoint(id string, state Tree) *Checkpoint {
	return &Checkpoint{
		ID:      id,
		State:   state.Clone(),
		Pointer: -1,
		SavedAt: time.Now(),
	}
}

// Clone returns a deep copy so stores can isolate what they hand out.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.State = c.State.Clone()
	out.History = slices.Clone(c.History)
	for i := range out.History {
		if out.History[i].Meta != nil {
			out.History[i].Meta = Clone(out.History[i].Meta).(Meta)
		}
	}
	return &out
}
