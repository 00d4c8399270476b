package graph

import "github.com/mcoda/mcoda/pkg/models"

// Impacts computes the dependency impact of every task: how many tasks are
// unblocked directly and transitively once it completes.
//
// The walk follows the dependents map with an explicit stack rather than
// recursion, memoizes the reachable set per node, and never recomputes a
// finished node. When a node is re-entered while still on the active stack
// (a cycle) its current partial set is merged instead of recursing, so
// cyclic graphs terminate with a best-effort count.
func Impacts(g *Graph) map[string]models.DependencyImpact {
	const (
		unvisited = iota
		onStack
		done
	)

	reach := make(map[string]map[string]struct{}, len(g.Order))
	state := make(map[string]int, len(g.Order))

	type frame struct {
		id   string
		next int
	}

	for _, root := range g.Order {
		if state[root] == done {
			continue
		}
		state[root] = onStack
		reach[root] = make(map[string]struct{})
		stack := []frame{{id: root}}

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			dependents := g.Dependents[f.id]

			if f.next < len(dependents) {
				child := dependents[f.next]
				f.next++
				set := reach[f.id]
				set[child] = struct{}{}
				if state[child] == unvisited {
					state[child] = onStack
					reach[child] = make(map[string]struct{})
					stack = append(stack, frame{id: child})
				} else {
					// Done: memoized set is final. On stack: partial
					// counts, merged as-is to break the cycle.
					for id := range reach[child] {
						set[id] = struct{}{}
					}
				}
				continue
			}

			state[f.id] = done
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := stack[len(stack)-1].id
				set := reach[parent]
				for id := range reach[f.id] {
					set[id] = struct{}{}
				}
			}
		}
	}

	out := make(map[string]models.DependencyImpact, len(g.Order))
	for _, id := range g.Order {
		set := reach[id]
		// A cycle can make a node reach itself; it does not unblock itself.
		if _, self := set[id]; self {
			delete(set, id)
		}
		out[id] = models.DependencyImpact{
			Direct: len(g.Dependents[id]),
			Total:  len(set),
		}
	}
	return out
}
