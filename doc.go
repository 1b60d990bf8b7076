/*
Package strata is an application-state store with a command-based undo/redo history,
designed for editing applications such as drawing tools or document editors.

It wires three pieces that can also be used on their own:

  - pkg/state: a single tree of named slices with snapshot reads, functional updates
    and selector-based subscriptions.
  - pkg/registry: a name to command-factory map, so commands can be executed by name.
  - pkg/history: a bounded undo stack of commands with truncate-on-branch, coalescing
    of rapid edits and transactional batches.

Every change is published to a notify.Bus as a typed domain.Event, which is where
metrics, logs and the HTTP event stream attach.

# Usage

	ws, err := strata.New(
		strata.WithInitialState(domain.Tree{"canvas": map[string]any{"color": "white"}}),
		strata.WithCheckpointStore(memory.NewStore()),
	)
	if err != nil {
		log.Fatal(err)
	}

	// Built-in commands: set, merge, unset.
	_, err = ws.Execute(commands.Merge, map[string]any{
		"slice": "canvas",
		"patch": map[string]any{"color": "red"},
	})

	ws.Undo() // color is white again
	ws.Redo() // and red again

	// Persist the tree and the history projection.
	_, err = ws.Checkpoint(ctx, "drawing-1")

# Concurrency

A Workspace is synchronous and not safe for concurrent use. Commands must not call back
into the history from their own Execute or Undo. Servers built on it (see
pkg/adapters/http and pkg/adapters/mcp) hold a mutex around every call.
*/
package strata
