// Package history implements a linear, command-based undo/redo stack on top of a
// state.Store.
//
// Commands are executed through the Manager, which records them as entries:
//
//	h := history.New(store, history.WithRegistry(reg), history.WithCapacity(50))
//	_, err := h.Execute("set", map[string]any{"slice": "tool", "value": "brush"})
//	_, err = h.Undo()
//	_, err = h.Redo()
//
// Executing a command discards every redoable entry first, so the history never
// branches. Entries that opt into coalescing (same key, within the window) may be
// merged into the entry at the pointer instead of being pushed. When the stack grows
// past its capacity the oldest entries are evicted without being undone.
//
// Error semantics:
//   - A failing Execute leaves the stack and the pointer untouched.
//   - A failing Undo or Redo still moves the pointer before the error is returned.
//
// The Manager is not safe for concurrent use and is not reentrant: a command must not
// call back into the Manager from its own Execute, Undo or Redo. Use Batch to record
// several commands as one entry.
package history
