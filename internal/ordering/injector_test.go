package ordering

import (
	"strings"
	"testing"

	"github.com/mcoda/mcoda/internal/classify"
	"github.com/mcoda/mcoda/internal/graph"
	"github.com/mcoda/mcoda/pkg/models"
)

func foundationClass() classify.Classification {
	return classify.Classification{Stage: models.StageFoundation, Foundation: true}
}

func backendClass() classify.Classification {
	return classify.Classification{Stage: models.StageBackend}
}

func TestInjectFoundationEdges(t *testing.T) {
	tasks := []*models.Task{task("f", "T-1"), task("a", "T-2"), task("b", "T-3")}
	g := graph.Build(tasks, nil)
	classes := map[string]classify.Classification{
		"f": foundationClass(),
		"a": backendClass(),
		"b": backendClass(),
	}

	res := InjectFoundationEdges(g, classes)

	if len(res.Injected) != 2 {
		t.Fatalf("injected %d edges, want 2", len(res.Injected))
	}
	for _, e := range res.Injected {
		if e.Relation != graph.RelationInferredFoundation {
			t.Errorf("relation = %q, want %q", e.Relation, graph.RelationInferredFoundation)
		}
		if e.DependsOnID != "f" {
			t.Errorf("edge targets %q, want f", e.DependsOnID)
		}
	}
	if !g.HasEdge("a", "f") || !g.HasEdge("b", "f") {
		t.Error("graph should carry the injected edges")
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "injected 2") {
		t.Errorf("warnings = %v, want one summary mentioning injected 2", res.Warnings)
	}
}

func TestInjectFoundationEdgesSkipsExisting(t *testing.T) {
	tasks := []*models.Task{task("f", "T-1"), task("a", "T-2")}
	g := graph.Build(tasks, []graph.DependencyRow{depRow("a", "f")})
	classes := map[string]classify.Classification{
		"f": foundationClass(),
		"a": backendClass(),
	}

	res := InjectFoundationEdges(g, classes)
	if len(res.Injected) != 0 {
		t.Errorf("injected %d edges over an existing one, want 0", len(res.Injected))
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
}

func TestInjectFoundationEdgesSkipsCycles(t *testing.T) {
	// The foundation task already depends on "a", so injecting a -> f would
	// close a cycle.
	tasks := []*models.Task{task("f", "T-1"), task("a", "T-2")}
	g := graph.Build(tasks, []graph.DependencyRow{depRow("f", "a")})
	classes := map[string]classify.Classification{
		"f": foundationClass(),
		"a": backendClass(),
	}

	res := InjectFoundationEdges(g, classes)
	if len(res.Injected) != 0 {
		t.Fatalf("injected %d edges, want 0", len(res.Injected))
	}
	if res.SkippedCycle != 1 {
		t.Errorf("SkippedCycle = %d, want 1", res.SkippedCycle)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "skipped 1") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a skip summary", res.Warnings)
	}
}

func TestInjectFoundationEdgesNoFoundationTasks(t *testing.T) {
	tasks := []*models.Task{task("a", "T-1"), task("b", "T-2")}
	g := graph.Build(tasks, nil)
	classes := map[string]classify.Classification{
		"a": backendClass(),
		"b": backendClass(),
	}

	res := InjectFoundationEdges(g, classes)
	if len(res.Injected) != 0 || len(res.Warnings) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}
