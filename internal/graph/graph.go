// Package graph builds the in-memory dependency graph the ordering engine
// runs on. The graph is rebuilt from durable rows on every invocation and
// again after every edge-injection phase; it is never patched incrementally.
package graph

import (
	"sort"

	"github.com/mcoda/mcoda/pkg/models"
)

// DependencyRow is a raw dependency edge as loaded from the store. The
// target's key and status are carried along so out-of-scope targets can be
// classified without a second lookup.
type DependencyRow struct {
	TaskID          string
	DependsOnID     string
	DependsOnKey    string
	DependsOnStatus models.TaskStatus
}

// Edge is a resolved or staged dependency edge. Relation tags distinguish
// declared edges from injected ones.
type Edge struct {
	TaskID      string
	DependsOnID string
	Relation    string
}

// Relation tags for dependency edges.
const (
	RelationDeclared           = "declared"
	RelationInferredFoundation = "inferred_foundation"
	RelationInferredAgent      = "inferred_agent"
)

// Node is a task plus its resolved in-scope dependencies and the keys of
// references that could not be resolved.
type Node struct {
	Task *models.Task
	// Dependencies holds ids of in-scope tasks this task depends on.
	Dependencies []string
	// MissingDependencies holds keys of references that point outside the
	// selection and are not satisfied by a done status.
	MissingDependencies []string
}

// Graph is the adjacency view over a task selection.
type Graph struct {
	// Nodes maps task id to its node.
	Nodes map[string]*Node
	// Order preserves the input task order for deterministic iteration.
	Order []string
	// Dependents maps task id to the ids of tasks that depend on it.
	Dependents map[string][]string
	// MissingKeys is the de-duplicated, sorted set of unresolved reference
	// keys across the whole selection, for warning reporting.
	MissingKeys []string
}

// Build constructs the graph from a task selection and its dependency rows.
// Rows whose target is outside the selection are dropped when the target is
// in a done status and reported as missing otherwise.
func Build(tasks []*models.Task, rows []DependencyRow) *Graph {
	g := &Graph{
		Nodes:      make(map[string]*Node, len(tasks)),
		Order:      make([]string, 0, len(tasks)),
		Dependents: make(map[string][]string),
	}

	for _, task := range tasks {
		g.Nodes[task.ID] = &Node{Task: task}
		g.Order = append(g.Order, task.ID)
	}

	missing := make(map[string]struct{})
	seen := make(map[[2]string]struct{}, len(rows))
	for _, row := range rows {
		node, ok := g.Nodes[row.TaskID]
		if !ok {
			continue
		}
		pair := [2]string{row.TaskID, row.DependsOnID}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}

		if _, inScope := g.Nodes[row.DependsOnID]; inScope {
			node.Dependencies = append(node.Dependencies, row.DependsOnID)
			g.Dependents[row.DependsOnID] = append(g.Dependents[row.DependsOnID], row.TaskID)
			continue
		}
		// Out-of-scope target: a done dependency is satisfied, anything
		// else is a dangling reference worth surfacing.
		if row.DependsOnStatus.Done() {
			continue
		}
		key := row.DependsOnKey
		if key == "" {
			key = "unknown"
		}
		node.MissingDependencies = append(node.MissingDependencies, key)
		missing[key] = struct{}{}
	}

	for key := range missing {
		g.MissingKeys = append(g.MissingKeys, key)
	}
	sort.Strings(g.MissingKeys)

	return g
}

// HasEdge reports whether taskID already depends on dependsOnID.
func (g *Graph) HasEdge(taskID, dependsOnID string) bool {
	node, ok := g.Nodes[taskID]
	if !ok {
		return false
	}
	for _, dep := range node.Dependencies {
		if dep == dependsOnID {
			return true
		}
	}
	return false
}

// Reaches reports whether target is reachable from start by following
// dependency edges. Used as the cycle check before injecting an edge:
// adding target -> start is unsafe exactly when start already reaches
// target. The walk uses an explicit stack so deep chains cannot overflow.
func (g *Graph) Reaches(start, target string) bool {
	if start == target {
		return true
	}
	visited := map[string]struct{}{start: {}}
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node, ok := g.Nodes[id]
		if !ok {
			continue
		}
		for _, dep := range node.Dependencies {
			if dep == target {
				return true
			}
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			stack = append(stack, dep)
		}
	}
	return false
}

// Edges flattens the graph back into edge rows, preserving node order.
func (g *Graph) Edges() []DependencyRow {
	var rows []DependencyRow
	for _, id := range g.Order {
		node := g.Nodes[id]
		for _, dep := range node.Dependencies {
			target := g.Nodes[dep]
			rows = append(rows, DependencyRow{
				TaskID:          id,
				DependsOnID:     dep,
				DependsOnKey:    target.Task.Key,
				DependsOnStatus: target.Task.Status,
			})
		}
	}
	return rows
}

// Tasks returns the tasks in input order.
func (g *Graph) Tasks() []*models.Task {
	tasks := make([]*models.Task, 0, len(g.Order))
	for _, id := range g.Order {
		tasks = append(tasks, g.Nodes[id].Task)
	}
	return tasks
}
