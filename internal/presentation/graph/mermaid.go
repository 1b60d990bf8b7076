package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// GenerateMermaid draws the history of a checkpoint as a left-to-right Mermaid flowchart.
// It applies semantic styling:
// - Origin: ((Circle))
// - Batch entries: [[Subroutine]]
// - Coalesced entries (more than one revision): [/Parallelogram/] annotated with the count
// - Default: [Rectangle]
// Entries up to the pointer are linked with solid arrows; redoable ones with dotted arrows
// and the redoable style. The entry at the pointer gets the current style.
func GenerateMermaid(cp *domain.Checkpoint) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("    origin((\"origin\"))\n")

	prev := "origin"
	for i, e := range cp.History {
		id := nodeID(i)

		opener, closer := "[", "]"
		switch {
		case e.Type == "group":
			opener, closer = "[[", "]]"
		case e.Revisions > 1:
			opener, closer = "[/", "/]"
		}

		label := escapeLabel(e.Label)
		if e.Revisions > 1 {
			label = fmt.Sprintf("%s <br/> ×%d", label, e.Revisions)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label, closer)

		arrow := "-->"
		if i > cp.Pointer {
			arrow = "-.->"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", prev, arrow, id)
		prev = id
	}

	sb.WriteString("\n    %% Position Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("    classDef redoable fill:#f5f5f5,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

	for i := cp.Pointer + 1; i < len(cp.History); i++ {
		fmt.Fprintf(&sb, "    class %s redoable;\n", nodeID(i))
	}
	current := "origin"
	if cp.Pointer >= 0 && cp.Pointer < len(cp.History) {
		current = nodeID(cp.Pointer)
	}
	fmt.Fprintf(&sb, "    class %s current;\n", current)

	return sb.String()
}

func nodeID(i int) string {
	return fmt.Sprintf("e%d", i)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
