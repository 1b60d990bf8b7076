package domain

import "sort"

// TreeDiff represents the changes between two trees at slice granularity.
// It is designed to be serialized to JSON for partial updates on a client.
type TreeDiff struct {
	// Changed holds added or modified slices with their new values.
	// Clients should replace these slices in their local copy.
	Changed map[string]any `json:"changed,omitempty"`

	// Removed lists slices that no longer exist.
	Removed []string `json:"removed,omitempty"`
}

// Diff calculates the difference between oldTree and newTree.
// If oldTree is nil, every slice of newTree is reported as changed (initial load).
// Returns nil when nothing changed.
func Diff(oldTree, newTree Tree) *TreeDiff {
	diff := &TreeDiff{
		Changed: make(map[string]any),
	}

	for k, newVal := range newTree {
		oldVal, exists := oldTree[k]
		if !exists || !Equal(oldVal, newVal) {
			diff.Changed[k] = newVal
		}
	}

	for k := range oldTree {
		if _, exists := newTree[k]; !exists {
			diff.Removed = append(diff.Removed, k)
		}
	}
	sort.Strings(diff.Removed)

	if diff.IsEmpty() {
		return nil
	}
	if len(diff.Changed) == 0 {
		diff.Changed = nil
	}
	return diff
}

// Keys returns the sorted names of every changed or removed slice.
func (d *TreeDiff) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.Changed)+len(d.Removed))
	for k := range d.Changed {
		keys = append(keys, k)
	}
	keys = append(keys, d.Removed...)
	sort.Strings(keys)
	return keys
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *TreeDiff) IsEmpty() bool {
	return d == nil || (len(d.Changed) == 0 && len(d.Removed) == 0)
}
