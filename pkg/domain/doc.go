/*
Package domain contains the value types shared by the strata store, the command
history and the adapters around them.

It is kept free of I/O so that persistence, transport and observability adapters can
depend on it without pulling in the core.

# Key Entities

  - Tree: the root of the application state, a map of named top-level slices.
  - Meta: free-form annotations carried by commits and history entries.
  - EntryInfo: the serializable projection of a history entry (never the live command).
  - Event: the closed set of notifications published by the store and the history.
  - Checkpoint: a persisted snapshot of the store plus the history projection.

# Values

Trees hold values from a closed set of shapes: map[string]any, []any and scalars
(strings, booleans, numbers, nil, time.Time). Clone, Equal and Merge operate over that
set; anything else is treated as an opaque immutable scalar.
*/
package domain
