package history

import (
	"time"

	"github.com/aretw0/strata/pkg/domain"
)

// Entry is one slot of the undo stack.
type Entry struct {
	ID        string
	Label     string
	Type      string
	Command   Command
	Payload   any
	Timestamp time.Time
	Revisions int
	Options   domain.CoalesceOptions
	Meta      domain.Meta
}

// Info returns the serializable projection of the entry. The command is never included.
func (e *Entry) Info() domain.EntryInfo {
	var meta domain.Meta
	if e.Meta != nil {
		meta = domain.Clone(e.Meta).(domain.Meta)
	}
	return domain.EntryInfo{
		ID:        e.ID,
		Label:     e.Label,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Revisions: e.Revisions,
		Meta:      meta,
		Options:   e.Options,
	}
}

func infos(entries []*Entry) []domain.EntryInfo {
	out := make([]domain.EntryInfo, len(entries))
	for i, e := range entries {
		out[i] = e.Info()
	}
	return out
}
