package state

import (
	"log/slog"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// UpdateFunc computes the next tree from a deep-cloned draft of the current one.
// Returning nil commits the (possibly mutated) draft.
type UpdateFunc func(draft domain.Tree, prior State) domain.Tree

// SliceFunc computes the next value of one slice from a deep-cloned draft.
// Returning nil commits the (possibly mutated) draft.
type SliceFunc func(draft any, prior any) any

// Store holds one immutable, versioned state tree.
type Store struct {
	initial domain.Tree
	current State

	subs   []*subscription
	nextID int

	notifier ports.Notifier
	logger   *slog.Logger
	equal    EqualFunc
	validate Validator
}

// New creates a store whose initial (and Reset) tree is a copy of initial.
func New(initial domain.Tree, opts ...Option) *Store {
	if initial == nil {
		initial = domain.Tree{}
	}
	s := &Store{
		initial:  initial.Clone(),
		notifier: ports.Discard,
		logger:   logging.NewNop(),
		equal:    domain.Equal,
	}
	s.current = State{tree: initial.Clone()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetState returns the current snapshot without copying.
func (s *Store) GetState() State {
	return s.current
}

// GetSnapshot returns an owned deep copy of the current tree, safe to hand to
// persistence or to code outside the process boundary.
func (s *Store) GetSnapshot() domain.Tree {
	return s.current.Snapshot()
}

// Version returns the number of commits so far.
func (s *Store) Version() uint64 {
	return s.current.version
}

// Dispatch produces the next tree from updater and commits it.
// updater is either an UpdateFunc (or a plain func with the same signature) or a
// partial tree that is deep-merged into the current one.
func (s *Store) Dispatch(updater any, meta domain.Meta) error {
	var next domain.Tree

	switch u := updater.(type) {
	case UpdateFunc:
		next = s.applyFunc(u)
	case func(domain.Tree, State) domain.Tree:
		next = s.applyFunc(u)
	case domain.Tree:
		if u == nil {
			return domain.NewValidationError("updater", "partial tree is nil", nil)
		}
		next = domain.MergeTree(s.current.tree, u)
	case map[string]any:
		if u == nil {
			return domain.NewValidationError("updater", "partial tree is nil", nil)
		}
		next = domain.MergeTree(s.current.tree, u)
	default:
		return domain.NewValidationError("updater", "must be an update function or a partial tree", updater)
	}

	return s.commit(next, meta)
}

// applyFunc runs fn on a private draft. The result is cloned so the committed tree
// never aliases values fn placed in it.
func (s *Store) applyFunc(fn UpdateFunc) domain.Tree {
	draft := s.current.tree.Clone()
	next := fn(draft, s.current)
	if next == nil {
		next = draft
	}
	return next.Clone()
}

// UpdateSlice is Dispatch scoped to a single existing slice.
// updater is a SliceFunc (or a plain func with the same signature) or a partial map
// deep-merged into the slice. Unknown slices fail with a *domain.LookupError.
func (s *Store) UpdateSlice(key string, updater any, meta domain.Meta) error {
	prior, ok := s.current.tree[key]
	if !ok {
		return &domain.LookupError{Kind: domain.LookupSlice, Name: key}
	}

	var value any
	switch u := updater.(type) {
	case SliceFunc:
		value = applySliceFunc(u, prior)
	case func(any, any) any:
		value = applySliceFunc(u, prior)
	default:
		patch, isMap := domain.AsMap(updater)
		if !isMap || patch == nil {
			return domain.NewValidationError("updater", "must be a slice function or a partial map", updater)
		}
		value = domain.Merge(prior, patch)
	}

	next := make(domain.Tree, len(s.current.tree))
	for k, v := range s.current.tree {
		next[k] = v
	}
	next[key] = value

	return s.commit(next, meta)
}

func applySliceFunc(fn SliceFunc, prior any) any {
	draft := domain.Clone(prior)
	next := fn(draft, prior)
	if next == nil {
		next = draft
	}
	return domain.Clone(next)
}

// Replace overwrites the whole tree, bypassing merge semantics (document load).
func (s *Store) Replace(tree domain.Tree, meta domain.Meta) error {
	if tree == nil {
		return domain.NewValidationError("state", "replacement tree is nil", nil)
	}
	return s.commit(tree.Clone(), meta)
}

// Reset restores the tree the store was created with.
func (s *Store) Reset(meta domain.Meta) error {
	return s.commit(s.initial.Clone(), meta)
}

// commit swaps in next unless it is structurally equal to the current tree.
// A tree rejected by the validator is discarded and the error returned.
func (s *Store) commit(next domain.Tree, meta domain.Meta) error {
	prev := s.current
	if domain.Equal(prev.tree, next) {
		return nil
	}
	if s.validate != nil {
		if err := s.validate(next); err != nil {
			s.logger.Debug("commit rejected", "version", prev.version, "err", err)
			return err
		}
	}

	s.current = State{tree: next, version: prev.version + 1}
	meta = meta.Merge(domain.Meta{"version": s.current.version})

	s.notifySubscribers(meta)

	s.notifier.Notify(domain.StoreChanged{
		Version: s.current.version,
		Meta:    meta,
		Changed: domain.Diff(prev.tree, next).Keys(),
		State:   next.Clone(),
	})
	return nil
}
