package builder

import (
	"fmt"
	"math"
	"strings"

	"github.com/rcliao/devplan/internal/model"
)

// writeGantt renders the plan as a PlantUML gantt chart. Tasks become bars,
// milestones become milestones, dependencies become start constraints and
// notes become separators or task notes. Constraints follow all declarations.
func writeGantt(doc *model.PlanDocument, opts map[string]string) string {
	var sb strings.Builder
	al := newAliases(doc)

	sb.WriteString("@startgantt\n")
	header(&sb, opts)

	doc.Visit(func(n, parent *model.PlanNode) {
		switch n.Kind {
		case model.KindTask:
			ganttTask(&sb, al, n)
		case model.KindMilestone:
			ganttMilestone(&sb, al, n)
		case model.KindNote:
			ganttNote(&sb, n, parent)
		}
	})
	doc.Visit(func(n, _ *model.PlanNode) {
		if n.Kind == model.KindDependency {
			ganttDependency(&sb, al, doc, n)
		}
	})

	sb.WriteString("@endgantt\n")
	return sb.String()
}

func ganttLabel(s string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(s)
}

func ganttTask(sb *strings.Builder, al *aliases, n *model.PlanNode) {
	alias := al.of(n.ID)
	days := 1
	if v, ok := n.Attr("duration"); ok && v.Number > 0 {
		days = int(math.Ceil(v.Number))
	}
	unit := "days"
	if days == 1 {
		unit = "day"
	}

	decl := fmt.Sprintf("[%s] as [%s]", ganttLabel(n.Label()), alias)
	if owner := n.AttrText("owner"); owner != "" {
		decl += " on {" + ganttLabel(owner) + "}"
	}
	fmt.Fprintf(sb, "%s lasts %d %s\n", decl, days, unit)

	if start := n.AttrText("start"); start != "" {
		fmt.Fprintf(sb, "[%s] starts %s\n", alias, start)
	}
	if color := n.AttrText("color"); color != "" {
		fmt.Fprintf(sb, "[%s] is colored in %s\n", alias, color)
	}
	if v, ok := n.Attr("progress"); ok {
		pct := math.Max(0, math.Min(100, v.Number))
		fmt.Fprintf(sb, "[%s] is %s%% completed\n", alias, formatNumber(math.Round(pct)))
	}
}

func ganttMilestone(sb *strings.Builder, al *aliases, n *model.PlanNode) {
	alias := al.of(n.ID)
	at := "D+0"
	if date := n.AttrText("date"); date != "" {
		at = date
	}
	fmt.Fprintf(sb, "[%s] as [%s] happens on %s\n", ganttLabel(n.Label()), alias, at)
	if color := n.AttrText("color"); color != "" {
		fmt.Fprintf(sb, "[%s] is colored in %s\n", alias, color)
	}
}

func ganttDependency(sb *strings.Builder, al *aliases, doc *model.PlanDocument, n *model.PlanNode) {
	from, to := n.AttrText("from"), n.AttrText("to")
	verb := "starts"
	if target := doc.Find(from); target != nil && target.Kind == model.KindMilestone {
		verb = "happens"
	}
	fmt.Fprintf(sb, "[%s] %s at [%s]'s end\n", al.of(from), verb, al.of(to))
}

func ganttNote(sb *strings.Builder, n *model.PlanNode, parent *model.PlanNode) {
	text := n.AttrText("text")
	if author := n.AttrText("author"); author != "" {
		text += " (" + author + ")"
	}
	if parent != nil && parent.Kind == model.KindTask {
		fmt.Fprintf(sb, "note bottom\n  %s\nend note\n", text)
		return
	}
	fmt.Fprintf(sb, "-- %s --\n", text)
}
