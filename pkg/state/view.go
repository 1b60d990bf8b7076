package state

import "github.com/aretw0/strata/pkg/domain"

// State is a read-only view over one committed tree.
// Values returned by its accessors are shared with the store and must not be
// modified; use Snapshot for an owned copy.
type State struct {
	tree    domain.Tree
	version uint64
}

// Version is the number of commits that led to this state.
func (s State) Version() uint64 {
	return s.version
}

// Get returns the value of a slice, or nil when it does not exist.
func (s State) Get(key string) any {
	return s.tree[key]
}

// Slice returns the value of a slice and whether it exists.
func (s State) Slice(key string) (any, bool) {
	v, ok := s.tree[key]
	return v, ok
}

// Has reports whether the slice exists.
func (s State) Has(key string) bool {
	_, ok := s.tree[key]
	return ok
}

// Keys returns the slice names in sorted order.
func (s State) Keys() []string {
	return s.tree.Keys()
}

// Len returns the number of slices.
func (s State) Len() int {
	return len(s.tree)
}

// Tree exposes the underlying tree without copying. Read-only by contract.
func (s State) Tree() domain.Tree {
	return s.tree
}

// Snapshot returns an owned deep copy of the tree.
func (s State) Snapshot() domain.Tree {
	return s.tree.Clone()
}
