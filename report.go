package strata

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// Report renders the current state and history as Markdown.
func (w *Workspace) Report() string {
	return RenderReport(w.Snapshot(w.Name))
}

// RenderReport renders a checkpoint as Markdown: a JSON block with the state and a table
// with the history entries. The entry at the pointer is marked with an arrow.
func RenderReport(cp *domain.Checkpoint) string {
	var b strings.Builder

	title := cp.ID
	if title == "" {
		title = "workspace"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Version **%d**, %d history entries.\n\n", cp.Version, len(cp.History))

	b.WriteString("## State\n\n```json\n")
	data, err := json.MarshalIndent(cp.State, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf("%q", err.Error()))
	}
	b.Write(data)
	b.WriteString("\n```\n\n")

	b.WriteString("## History\n\n")
	if len(cp.History) == 0 {
		b.WriteString("_empty_\n")
		return b.String()
	}
	b.WriteString("| | # | Label | Type | Revisions |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for i, e := range cp.History {
		marker := ""
		if i == cp.Pointer {
			marker = "→"
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %d |\n", marker, i, escapeCell(e.Label), escapeCell(e.Type), e.Revisions)
	}
	if cp.Pointer < 0 {
		b.WriteString("\nNothing to undo.\n")
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
