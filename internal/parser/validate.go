package parser

import (
	"strings"

	"github.com/rcliao/devplan/internal/model"
)

type edge struct {
	to  string
	pos model.Pos
}

// validate resolves dependency references and rejects cycles. Both checks
// walk the document in order so the reported error is stable.
func validate(doc *model.PlanDocument) error {
	var order []string
	declared := map[string]bool{}
	doc.Walk(func(n *model.PlanNode, _ int) bool {
		if n.Kind == model.KindTask || n.Kind == model.KindMilestone {
			order = append(order, n.ID)
			declared[n.ID] = true
		}
		return true
	})

	var dangling *Error
	adj := map[string][]edge{}
	doc.Walk(func(n *model.PlanNode, _ int) bool {
		if dangling != nil {
			return false
		}
		if n.Kind != model.KindDependency {
			return true
		}
		from, to := n.AttrText("from"), n.AttrText("to")
		for _, ref := range []string{from, to} {
			if !declared[ref] {
				dangling = errorf(DanglingReference, n.Pos, "reference to undeclared %q", ref)
				dangling.ReferencedID = ref
				return false
			}
		}
		adj[from] = append(adj[from], edge{to: to, pos: n.Pos})
		return true
	})
	if dangling != nil {
		return dangling
	}

	if cycle, pos := findCycle(order, adj); cycle != nil {
		e := errorf(DependencyCycle, pos, "dependency cycle: %s", strings.Join(cycle, " -> "))
		e.ReferencedID = cycle[0]
		return e
	}
	return nil
}

// findCycle runs a depth-first search in declaration order and returns the
// first cycle found as a closed path, plus the position of the edge that
// closed it.
func findCycle(order []string, adj map[string][]edge) ([]string, model.Pos) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(order))
	parent := make(map[string]string, len(order))

	var (
		cycle  []string
		closed model.Pos
	)
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, e := range adj[id] {
			switch color[e.to] {
			case gray:
				path := []string{e.to}
				for cur := id; cur != e.to; cur = parent[cur] {
					path = append(path, cur)
				}
				// path is e.to, id, ..., walked backwards; reverse into
				// dependency order and close the loop.
				for i, j := 1, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				cycle = append(path, e.to)
				closed = e.pos
				return true
			case white:
				parent[e.to] = id
				if visit(e.to) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range order {
		if color[id] == white && visit(id) {
			return cycle, closed
		}
	}
	return nil, model.Pos{}
}
