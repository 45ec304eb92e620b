package builder

import (
	"fmt"
	"strings"

	"github.com/rcliao/devplan/internal/model"
)

// writeGraph renders the plan as a dependency graph. Edges point from
// prerequisite to dependent and are written after every box and note.
func writeGraph(doc *model.PlanDocument, opts map[string]string) string {
	var sb strings.Builder
	al := newAliases(doc)
	notes := 0

	sb.WriteString("@startuml\n")
	header(&sb, opts)

	doc.Visit(func(n, parent *model.PlanNode) {
		switch n.Kind {
		case model.KindTask:
			graphBox(&sb, "rectangle", al.of(n.ID), taskCaption(n), n.AttrText("color"))
		case model.KindMilestone:
			caption := n.Label()
			if date := n.AttrText("date"); date != "" {
				caption += "\\n" + date
			}
			graphBox(&sb, "hexagon", al.of(n.ID), caption, n.AttrText("color"))
		case model.KindNote:
			text := n.AttrText("text")
			if author := n.AttrText("author"); author != "" {
				text += " (" + author + ")"
			}
			if parent != nil && parent.ID != "" {
				fmt.Fprintf(&sb, "note right of %s : %s\n", al.of(parent.ID), text)
			} else {
				notes++
				alias := al.reserve(fmt.Sprintf("note_%d", notes))
				fmt.Fprintf(&sb, "note \"%s\" as %s\n", quoted(text), alias)
			}
		}
	})
	doc.Visit(func(n, _ *model.PlanNode) {
		if n.Kind != model.KindDependency {
			return
		}
		fmt.Fprintf(&sb, "%s --> %s", al.of(n.AttrText("to")), al.of(n.AttrText("from")))
		if label := n.AttrText("label"); label != "" {
			sb.WriteString(" : " + label)
		}
		sb.WriteString("\n")
	})

	sb.WriteString("@enduml\n")
	return sb.String()
}

func taskCaption(n *model.PlanNode) string {
	caption := n.Label()
	var details []string
	if owner := n.AttrText("owner"); owner != "" {
		details = append(details, "@"+owner)
	}
	if v, ok := n.Attr("duration"); ok {
		details = append(details, formatNumber(v.Number)+"d")
	}
	if v, ok := n.Attr("progress"); ok {
		details = append(details, formatNumber(v.Number)+"%")
	}
	if len(details) > 0 {
		caption += "\\n" + strings.Join(details, " ")
	}
	return caption
}

func graphBox(sb *strings.Builder, shape, alias, caption, color string) {
	fmt.Fprintf(sb, "%s \"%s\" as %s", shape, quoted(caption), alias)
	if color != "" {
		sb.WriteString(" #" + color)
	}
	sb.WriteString("\n")
}
