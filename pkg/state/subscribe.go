package state

import (
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
)

// Listener receives owned copies of the newly selected value and the previous one.
// prev is nil on the first notification of a FireImmediately subscription.
type Listener func(next, prev any, meta domain.Meta)

// Selector extracts the part of the state a subscription cares about.
type Selector func(State) any

// EqualFunc reports whether two selected values are the same.
type EqualFunc func(a, b any) bool

type subscription struct {
	id       int
	listener Listener
	selector Selector
	equal    EqualFunc
	last     any
	active   bool
}

func selectTree(s State) any {
	return s.tree
}

// Subscribe registers listener and returns a function that removes it.
// The unsubscribe function is idempotent.
func (s *Store) Subscribe(listener Listener, opts ...SubscribeOption) func() {
	if listener == nil {
		return func() {}
	}

	cfg := subscribeConfig{selector: selectTree, equal: s.equal}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.selector == nil {
		cfg.selector = selectTree
	}
	if cfg.equal == nil {
		cfg.equal = s.equal
	}

	s.nextID++
	sub := &subscription{
		id:       s.nextID,
		listener: listener,
		selector: cfg.selector,
		equal:    cfg.equal,
		active:   true,
	}
	sub.last, _ = s.selectSafely(sub)
	s.subs = append(s.subs, sub)

	if cfg.fireImmediately {
		s.invokeSafely(sub, domain.Clone(sub.last), nil, domain.Meta{"version": s.current.version})
	}

	return func() {
		s.unsubscribe(sub.id)
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Store) Subscribers() int {
	return len(s.subs)
}

func (s *Store) unsubscribe(id int) {
	for i, sub := range s.subs {
		if sub.id == id {
			sub.active = false
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// notifySubscribers runs every subscription registered before the commit.
// Listeners that unsubscribe (themselves or others) mid-loop are honoured.
func (s *Store) notifySubscribers(meta domain.Meta) {
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)

	for _, sub := range subs {
		if !sub.active {
			continue
		}
		next, ok := s.selectSafely(sub)
		if !ok {
			continue
		}
		if sub.equal(next, sub.last) {
			continue
		}
		prev := sub.last
		s.invokeSafely(sub, domain.Clone(next), domain.Clone(prev), meta)
		sub.last = next
	}
}

func (s *Store) selectSafely(sub *subscription) (value any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscription selector panicked",
				"subscription", sub.id,
				"version", s.current.version,
				"error", fmt.Errorf("%v", r),
			)
			value, ok = nil, false
		}
	}()
	return sub.selector(s.current), true
}

func (s *Store) invokeSafely(sub *subscription, next, prev any, meta domain.Meta) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscription listener panicked",
				"subscription", sub.id,
				"version", s.current.version,
				"error", fmt.Errorf("%v", r),
			)
		}
	}()
	sub.listener(next, prev, meta)
}
