/*
Package state implements the single source of truth of a strata workspace.

A Store holds exactly one committed tree at a time. Every write (Dispatch,
UpdateSlice, Replace, Reset) synthesizes a brand-new tree and swaps it in
wholesale, so a State obtained earlier is never modified behind its holder's back.

# Commits

A commit that produces a tree structurally equal to the current one is a no-op:
the version does not move and nobody is notified. Otherwise the version is bumped
once, subscribers are evaluated, and a domain.StoreChanged event is published.

# Subscriptions

	unsubscribe := store.Subscribe(func(next, prev any, meta domain.Meta) {
	    fmt.Println("zoom is now", next)
	}, state.WithSelector(func(s state.State) any { return s.Get("zoom") }))
	defer unsubscribe()

Listeners only run when the selected value changes according to the subscription's
equality (domain.Equal by default). They receive owned copies of both values.

# Concurrency

A Store is not safe for concurrent use. Every operation runs to completion on the
caller's goroutine and listeners are invoked synchronously on that same call stack.
*/
package state
