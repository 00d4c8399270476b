package graph

import (
	"reflect"
	"testing"

	"github.com/mcoda/mcoda/pkg/models"
)

func task(id, key string) *models.Task {
	return &models.Task{ID: id, Key: key, Status: models.StatusNotStarted}
}

func TestBuildPartitionsResolvedAndMissing(t *testing.T) {
	tasks := []*models.Task{task("1", "T-1"), task("2", "T-2")}
	rows := []DependencyRow{
		{TaskID: "1", DependsOnID: "2", DependsOnKey: "T-2"},
		// Out of scope but completed: satisfied, not missing.
		{TaskID: "1", DependsOnID: "9", DependsOnKey: "T-9", DependsOnStatus: models.StatusCompleted},
		// Out of scope and still open: missing.
		{TaskID: "2", DependsOnID: "8", DependsOnKey: "T-8", DependsOnStatus: models.StatusInProgress},
		// Dangling reference with no key.
		{TaskID: "2", DependsOnID: "7"},
	}

	g := Build(tasks, rows)

	if got := g.Nodes["1"].Dependencies; !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("task 1 dependencies = %v, want [2]", got)
	}
	if got := g.Nodes["1"].MissingDependencies; got != nil {
		t.Errorf("task 1 missing = %v, want none", got)
	}
	if got := g.Nodes["2"].MissingDependencies; !reflect.DeepEqual(got, []string{"T-8", "unknown"}) {
		t.Errorf("task 2 missing = %v, want [T-8 unknown]", got)
	}
	if got := g.MissingKeys; !reflect.DeepEqual(got, []string{"T-8", "unknown"}) {
		t.Errorf("MissingKeys = %v, want [T-8 unknown]", got)
	}
	if got := g.Dependents["2"]; !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("dependents of 2 = %v, want [1]", got)
	}
}

func TestBuildDropsDuplicateRows(t *testing.T) {
	tasks := []*models.Task{task("1", "T-1"), task("2", "T-2")}
	rows := []DependencyRow{
		{TaskID: "1", DependsOnID: "2", DependsOnKey: "T-2"},
		{TaskID: "1", DependsOnID: "2", DependsOnKey: "T-2"},
	}
	g := Build(tasks, rows)
	if got := len(g.Nodes["1"].Dependencies); got != 1 {
		t.Errorf("dependencies = %d, want 1", got)
	}
}

func TestReaches(t *testing.T) {
	tasks := []*models.Task{task("a", "A"), task("b", "B"), task("c", "C")}
	rows := []DependencyRow{
		{TaskID: "a", DependsOnID: "b", DependsOnKey: "B"},
		{TaskID: "b", DependsOnID: "c", DependsOnKey: "C"},
	}
	g := Build(tasks, rows)

	if !g.Reaches("a", "c") {
		t.Error("a should reach c transitively")
	}
	if g.Reaches("c", "a") {
		t.Error("c should not reach a")
	}
	if !g.Reaches("a", "a") {
		t.Error("a trivially reaches itself")
	}
}

func TestImpactsDiamond(t *testing.T) {
	// D depends on B and C, both depend on A.
	tasks := []*models.Task{task("a", "A"), task("b", "B"), task("c", "C"), task("d", "D")}
	rows := []DependencyRow{
		{TaskID: "d", DependsOnID: "b", DependsOnKey: "B"},
		{TaskID: "d", DependsOnID: "c", DependsOnKey: "C"},
		{TaskID: "b", DependsOnID: "a", DependsOnKey: "A"},
		{TaskID: "c", DependsOnID: "a", DependsOnKey: "A"},
	}
	g := Build(tasks, rows)
	impacts := Impacts(g)

	if got := impacts["a"]; got.Direct != 2 || got.Total != 3 {
		t.Errorf("impact(a) = %+v, want {Direct:2 Total:3}", got)
	}
	if got := impacts["b"]; got.Direct != 1 || got.Total != 1 {
		t.Errorf("impact(b) = %+v, want {Direct:1 Total:1}", got)
	}
	if got := impacts["d"]; got.Direct != 0 || got.Total != 0 {
		t.Errorf("impact(d) = %+v, want {Direct:0 Total:0}", got)
	}
}

func TestImpactsCycleTerminates(t *testing.T) {
	tasks := []*models.Task{task("a", "A"), task("b", "B")}
	rows := []DependencyRow{
		{TaskID: "a", DependsOnID: "b", DependsOnKey: "B"},
		{TaskID: "b", DependsOnID: "a", DependsOnKey: "A"},
	}
	g := Build(tasks, rows)
	impacts := Impacts(g)

	// Each task unblocks the other; neither counts itself.
	if got := impacts["a"]; got.Direct != 1 || got.Total != 1 {
		t.Errorf("impact(a) = %+v, want {Direct:1 Total:1}", got)
	}
	if got := impacts["b"]; got.Direct != 1 || got.Total != 1 {
		t.Errorf("impact(b) = %+v, want {Direct:1 Total:1}", got)
	}
}

func TestImpactsMemoizedAcrossRoots(t *testing.T) {
	// Chain c -> b -> a; iterating roots in input order must not change
	// results regardless of which node is walked first.
	tasks := []*models.Task{task("c", "C"), task("b", "B"), task("a", "A")}
	rows := []DependencyRow{
		{TaskID: "c", DependsOnID: "b", DependsOnKey: "B"},
		{TaskID: "b", DependsOnID: "a", DependsOnKey: "A"},
	}
	g := Build(tasks, rows)
	impacts := Impacts(g)

	if got := impacts["a"]; got.Direct != 1 || got.Total != 2 {
		t.Errorf("impact(a) = %+v, want {Direct:1 Total:2}", got)
	}
}
