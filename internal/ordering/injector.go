// Package ordering implements the task ordering engine: foundation edge
// injection, the cycle-tolerant topological scheduler, metadata enrichment,
// and priority persistence.
package ordering

import (
	"fmt"
	"strings"

	"github.com/mcoda/mcoda/internal/classify"
	"github.com/mcoda/mcoda/internal/graph"
)

// maxSkipSamples caps how many skipped edges a warning names.
const maxSkipSamples = 5

// InjectionResult reports what the foundation injector did. Injected edges
// are staged; the caller persists them (when applying) and rebuilds the
// graph before scheduling.
type InjectionResult struct {
	Injected     []graph.Edge
	SkippedCycle int
	// SkipSamples holds up to maxSkipSamples "T -> F" strings for the
	// cycle-skip warning.
	SkipSamples []string
	Warnings    []string
}

// InjectFoundationEdges adds an inferred edge T -> F for every foundation
// task F and non-foundation task T in the selection, unless the edge already
// exists or F already transitively depends on T (which would close a cycle;
// those pairs are skipped and counted instead). The graph's node lists are
// updated in place so each pair's check sees earlier injections.
func InjectFoundationEdges(g *graph.Graph, classes map[string]classify.Classification) InjectionResult {
	var foundations, others []string
	for _, id := range g.Order {
		if classes[id].Foundation {
			foundations = append(foundations, id)
		} else {
			others = append(others, id)
		}
	}

	var res InjectionResult
	if len(foundations) == 0 || len(others) == 0 {
		return res
	}

	for _, t := range others {
		for _, f := range foundations {
			if g.HasEdge(t, f) {
				continue
			}
			if g.Reaches(f, t) {
				res.SkippedCycle++
				if len(res.SkipSamples) < maxSkipSamples {
					res.SkipSamples = append(res.SkipSamples,
						fmt.Sprintf("%s -> %s", g.Nodes[t].Task.Key, g.Nodes[f].Task.Key))
				}
				continue
			}
			g.Nodes[t].Dependencies = append(g.Nodes[t].Dependencies, f)
			g.Dependents[f] = append(g.Dependents[f], t)
			res.Injected = append(res.Injected, graph.Edge{
				TaskID:      t,
				DependsOnID: f,
				Relation:    graph.RelationInferredFoundation,
			})
		}
	}

	if n := len(res.Injected); n > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("injected %d inferred foundation dependencies", n))
	}
	if res.SkippedCycle > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("skipped %d foundation dependencies that would create cycles (e.g. %s)",
				res.SkippedCycle, strings.Join(res.SkipSamples, ", ")))
	}
	return res
}
