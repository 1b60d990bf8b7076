package domain

import "time"

// CoalesceOptions controls whether a history entry may absorb later entries.
type CoalesceOptions struct {
	// Enabled opts the entry into coalescing.
	Enabled bool `json:"coalesce" yaml:"coalesce" mapstructure:"coalesce"`

	// Key groups entries that may merge; only equal keys coalesce.
	Key string `json:"coalesce_key,omitempty" yaml:"coalesce_key,omitempty" mapstructure:"coalesce_key"`

	// Window is the maximum distance between timestamps of merging entries.
	// Zero on a command means "use the manager default"; a zero window for one
	// entry is requested with history.WithEntryWindow(0).
	Window time.Duration `json:"coalesce_window,omitempty" yaml:"coalesce_window,omitempty" mapstructure:"coalesce_window"`
}

// EntryInfo is the serializable projection of a history entry.
// It is what notifications and checkpoints carry; the live command never leaves the history.
type EntryInfo struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Revisions int             `json:"revisions"`
	Meta      Meta            `json:"meta,omitempty"`
	Options   CoalesceOptions `json:"options"`
}
