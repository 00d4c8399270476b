package agent

import (
	"fmt"

	"github.com/mcoda/mcoda/internal/graph"
)

// DependencyInference is one task's inferred upstream dependencies as
// reported by the agent.
type DependencyInference struct {
	TaskKey   string
	DependsOn []string
}

// ParseDependencyInferences normalizes the agent's dependency payload. The
// accepted shapes are {"dependencies": [...]}, {"deps": [...]}, and a bare
// array; each entry is {"task_key": ..., "depends_on": [...]}. Entries that
// are not objects are preserved as empty inferences so the applier can count
// them as invalid.
func ParseDependencyInferences(payload any) []DependencyInference {
	items := payloadItems(payload, "dependencies", "deps")
	if items == nil {
		return nil
	}

	out := make([]DependencyInference, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			out = append(out, DependencyInference{})
			continue
		}
		inf := DependencyInference{}
		if key, ok := entry["task_key"].(string); ok {
			inf.TaskKey = key
		}
		if deps, ok := entry["depends_on"].([]any); ok {
			for _, d := range deps {
				if s, ok := d.(string); ok {
					inf.DependsOn = append(inf.DependsOn, s)
				} else {
					// Keep a placeholder so invalid entries are counted.
					inf.DependsOn = append(inf.DependsOn, "")
				}
			}
		}
		out = append(out, inf)
	}
	return out
}

// payloadItems unwraps a bare array or the first present named array field.
func payloadItems(payload any, fields ...string) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, field := range fields {
			if items, ok := v[field].([]any); ok {
				return items
			}
		}
	}
	return nil
}

// ApplyResult reports what the dependency applier staged and skipped.
// Warnings are aggregated per category, never per occurrence.
type ApplyResult struct {
	Staged          []graph.Edge
	InvalidTaskKeys int
	InvalidDeps     int
	SelfDeps        int
	SkippedCycle    int
	AlreadyPresent  int
	Warnings        []string
}

// ApplyInferredDependencies validates the inferences against the known task
// key set and stages cycle-safe edges tagged inferred_agent. The graph is
// updated in place so later pairs see earlier additions; the caller persists
// staged edges when applying and rebuilds the graph either way.
func ApplyInferredDependencies(g *graph.Graph, inferences []DependencyInference, keyToID map[string]string) ApplyResult {
	var res ApplyResult

	for _, inf := range inferences {
		taskID, ok := keyToID[inf.TaskKey]
		if !ok {
			res.InvalidTaskKeys++
			continue
		}
		for _, depKey := range inf.DependsOn {
			depID, ok := keyToID[depKey]
			if !ok {
				res.InvalidDeps++
				continue
			}
			if depID == taskID {
				res.SelfDeps++
				continue
			}
			if g.HasEdge(taskID, depID) {
				res.AlreadyPresent++
				continue
			}
			if g.Reaches(depID, taskID) {
				res.SkippedCycle++
				continue
			}
			g.Nodes[taskID].Dependencies = append(g.Nodes[taskID].Dependencies, depID)
			g.Dependents[depID] = append(g.Dependents[depID], taskID)
			res.Staged = append(res.Staged, graph.Edge{
				TaskID:      taskID,
				DependsOnID: depID,
				Relation:    graph.RelationInferredAgent,
			})
		}
	}

	if res.InvalidTaskKeys > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("agent response referenced %d unknown task keys", res.InvalidTaskKeys))
	}
	if res.InvalidDeps > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("agent response contained %d invalid dependency entries", res.InvalidDeps))
	}
	if res.SelfDeps > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("agent response contained %d self-dependencies", res.SelfDeps))
	}
	if res.SkippedCycle > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("skipped %d inferred dependencies that would create cycles", res.SkippedCycle))
	}
	return res
}
