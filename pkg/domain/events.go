package domain

import (
	"fmt"
	"time"
)

// EventKind identifies one of the notifications published by the store and the history.
type EventKind int

const (
	KindStoreChange EventKind = iota + 1
	KindHistoryExecute
	KindHistoryUndo
	KindHistoryRedo
	KindHistoryClear
	KindHistoryCoalesced
	KindHistoryOverflow
	KindHistoryTruncate
	KindHistoryConfigure
)

var kindNames = map[EventKind]string{
	KindStoreChange:      "store:change",
	KindHistoryExecute:   "history:execute",
	KindHistoryUndo:      "history:undo",
	KindHistoryRedo:      "history:redo",
	KindHistoryClear:     "history:clear",
	KindHistoryCoalesced: "history:coalesced",
	KindHistoryOverflow:  "history:overflow",
	KindHistoryTruncate:  "history:truncate",
	KindHistoryConfigure: "history:configure",
}

// Kinds returns every event kind in declaration order.
func Kinds() []EventKind {
	return []EventKind{
		KindStoreChange,
		KindHistoryExecute,
		KindHistoryUndo,
		KindHistoryRedo,
		KindHistoryClear,
		KindHistoryCoalesced,
		KindHistoryOverflow,
		KindHistoryTruncate,
		KindHistoryConfigure,
	}
}

// String returns the wire name of the kind (e.g. "history:undo").
func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// MarshalText encodes the kind by its wire name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is implemented by every notification payload.
type Event interface {
	Kind() EventKind
}

// Position describes the history stack right after an operation.
type Position struct {
	Pointer int `json:"pointer"`
	Length  int `json:"length"`
}

// StoreChanged is published after every commit of the state store.
type StoreChanged struct {
	Version uint64   `json:"version"`
	Meta    Meta     `json:"meta,omitempty"`
	Changed []string `json:"changed,omitempty"`
	State   Tree     `json:"state"`
}

// HistoryExecuted is published when a new entry is pushed.
type HistoryExecuted struct {
	Entry EntryInfo `json:"entry"`
	Position
}

// HistoryUndone is published after a successful undo.
type HistoryUndone struct {
	Entry EntryInfo `json:"entry"`
	Position
}

// HistoryRedone is published after a successful redo.
type HistoryRedone struct {
	Entry EntryInfo `json:"entry"`
	Position
}

// HistoryCleared is published when the stack is emptied.
type HistoryCleared struct {
	Removed int  `json:"removed"`
	Meta    Meta `json:"meta,omitempty"`
	Position
}

// HistoryCoalesced is published when a new entry was merged into the top entry.
type HistoryCoalesced struct {
	Entry    EntryInfo `json:"entry"`
	Absorbed EntryInfo `json:"absorbed"`
	Position
}

// HistoryOverflowed is published when entries were evicted to honour the capacity.
// Evicted entries are not undone; their effects stay in the live state.
type HistoryOverflowed struct {
	Evicted  []EntryInfo `json:"evicted"`
	Capacity int         `json:"capacity"`
	Position
}

// HistoryTruncated is published when redoable entries were discarded by a new execute.
type HistoryTruncated struct {
	Discarded []EntryInfo `json:"discarded"`
	Position
}

// HistoryConfigured is published after the history settings changed.
type HistoryConfigured struct {
	Capacity       int           `json:"capacity"`
	CoalesceWindow time.Duration `json:"coalesce_window"`
	Position
}

func (StoreChanged) Kind() EventKind      { return KindStoreChange }
func (HistoryExecuted) Kind() EventKind   { return KindHistoryExecute }
func (HistoryUndone) Kind() EventKind     { return KindHistoryUndo }
func (HistoryRedone) Kind() EventKind     { return KindHistoryRedo }
func (HistoryCleared) Kind() EventKind    { return KindHistoryClear }
func (HistoryCoalesced) Kind() EventKind  { return KindHistoryCoalesced }
func (HistoryOverflowed) Kind() EventKind { return KindHistoryOverflow }
func (HistoryTruncated) Kind() EventKind  { return KindHistoryTruncate }
func (HistoryConfigured) Kind() EventKind { return KindHistoryConfigure }
