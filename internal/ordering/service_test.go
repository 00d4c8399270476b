package ordering

import (
	"context"
	"strings"
	"testing"

	"github.com/mcoda/mcoda/internal/agent"
	"github.com/mcoda/mcoda/internal/graph"
	"github.com/mcoda/mcoda/internal/store"
	"github.com/mcoda/mcoda/pkg/models"
)

type fakeStore struct {
	project *models.Project
	epics   map[string]*models.Epic
	stories map[string]*models.Story
	tasks   []*models.Task
	rows    []graph.DependencyRow
	missing map[string]bool

	inserted  []graph.Edge
	persisted []*models.Task
	epicRanks map[string]int
}

func (f *fakeStore) GetProjectByKey(key string) (*models.Project, error) {
	if f.project == nil || f.project.Key != key {
		return nil, store.ErrUnknownProject
	}
	return f.project, nil
}

func (f *fakeStore) GetEpicByKey(projectID, key string) (*models.Epic, error) {
	for _, e := range f.epics {
		if e.Key == key {
			return e, nil
		}
	}
	return nil, store.ErrUnknownEpic
}

func (f *fakeStore) GetStoryByKey(projectID, key string) (*models.Story, error) {
	for _, s := range f.stories {
		if s.Key == key {
			return s, nil
		}
	}
	return nil, store.ErrUnknownStory
}

func (f *fakeStore) ListEpics(projectID string) (map[string]*models.Epic, error) {
	return f.epics, nil
}

func (f *fakeStore) ListStories(projectID string) (map[string]*models.Story, error) {
	return f.stories, nil
}

func (f *fakeStore) ListTasks(filter store.TaskFilter) ([]*models.Task, error) {
	if filter.EpicID == "" {
		return f.tasks, nil
	}
	var out []*models.Task
	for _, t := range f.tasks {
		if t.EpicID == filter.EpicID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDependencies(taskIDs []string) ([]graph.DependencyRow, error) {
	return f.rows, nil
}

func (f *fakeStore) OpenMissingContext(taskIDs []string) (map[string]bool, error) {
	if f.missing == nil {
		return map[string]bool{}, nil
	}
	return f.missing, nil
}

func (f *fakeStore) InsertDependencies(edges []graph.Edge) error {
	f.inserted = append(f.inserted, edges...)
	return nil
}

func (f *fakeStore) PersistOrder(ordered []*models.Task, epicRanks, storyRanks map[string]int) error {
	f.persisted = ordered
	f.epicRanks = epicRanks
	return nil
}

type stubInvoker struct {
	output string
	err    error
	calls  int
}

func (s *stubInvoker) Invoke(ctx context.Context, agentID string, req agent.Request) (*agent.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &agent.Response{Output: s.output, InputTokens: 10, OutputTokens: 5}, nil
}

func testRouter() agent.Router {
	return &agent.ConfigRouter{
		Defaults: map[string]string{"tasks-order": "planner"},
		Agents:   map[string]agent.Agent{"planner": {ID: "agent-1", Slug: "planner"}},
	}
}

func projectTask(id, key, epicID, storyID string) *models.Task {
	tk := task(id, key)
	tk.EpicID = epicID
	tk.StoryID = storyID
	return tk
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		project: &models.Project{ID: "p1", Key: "PROJ"},
		epics:   map[string]*models.Epic{"e1": {ID: "e1", Key: "E-1", ProjectID: "p1"}},
		stories: map[string]*models.Story{"s1": {ID: "s1", Key: "S-1", EpicID: "e1"}},
		tasks: []*models.Task{
			projectTask("a", "T-1", "e1", "s1"),
			projectTask("b", "T-2", "e1", "s1"),
			projectTask("c", "T-3", "e1", "s1"),
		},
		rows: []graph.DependencyRow{
			{TaskID: "a", DependsOnID: "b"},
			{TaskID: "b", DependsOnID: "c"},
		},
	}
}

func TestOrderTasksDryRun(t *testing.T) {
	fs := newFakeStore()
	svc := &Service{Store: fs}

	res, err := svc.OrderTasks(context.Background(), Request{ProjectKey: "PROJ"})
	if err != nil {
		t.Fatalf("OrderTasks: %v", err)
	}

	if len(res.Ordered) != 3 {
		t.Fatalf("ordered %d tasks, want 3", len(res.Ordered))
	}
	want := []string{"T-3", "T-2", "T-1"}
	for i, item := range res.Ordered {
		if item.Task.Key != want[i] {
			t.Errorf("position %d = %s, want %s", i+1, item.Task.Key, want[i])
		}
		if item.Position != i+1 {
			t.Errorf("Position = %d, want %d", item.Position, i+1)
		}
	}
	// Dry run: priorities are computed on the in-memory tasks but nothing
	// reaches the store.
	if fs.persisted != nil || fs.inserted != nil {
		t.Error("dry run must not write")
	}
	if p := res.Ordered[0].Task.Priority; p == nil || *p != 1 {
		t.Errorf("first task priority = %v, want 1", p)
	}
}

func TestOrderTasksApplyPersists(t *testing.T) {
	fs := newFakeStore()
	svc := &Service{Store: fs}

	_, err := svc.OrderTasks(context.Background(), Request{ProjectKey: "PROJ", Apply: true})
	if err != nil {
		t.Fatalf("OrderTasks: %v", err)
	}
	if len(fs.persisted) != 3 {
		t.Fatalf("persisted %d tasks, want 3", len(fs.persisted))
	}
	if fs.epicRanks["e1"] != 1 {
		t.Errorf("epic rank = %d, want 1", fs.epicRanks["e1"])
	}
}

func TestOrderTasksUnknownProject(t *testing.T) {
	svc := &Service{Store: newFakeStore()}
	if _, err := svc.OrderTasks(context.Background(), Request{ProjectKey: "NOPE"}); err == nil {
		t.Fatal("expected an error for an unknown project key")
	}
}

func TestOrderTasksMissingReferenceWarning(t *testing.T) {
	fs := newFakeStore()
	fs.rows = append(fs.rows, graph.DependencyRow{
		TaskID: "a", DependsOnID: "ghost", DependsOnKey: "T-99",
		DependsOnStatus: models.StatusNotStarted,
	})
	svc := &Service{Store: fs}

	res, err := svc.OrderTasks(context.Background(), Request{ProjectKey: "PROJ"})
	if err != nil {
		t.Fatalf("OrderTasks: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "T-99") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one naming T-99", res.Warnings)
	}
	if len(res.Ordered) != 3 {
		t.Error("missing references must not drop tasks")
	}
}

func TestOrderTasksAgentInference(t *testing.T) {
	fs := newFakeStore()
	fs.rows = nil // no declared edges; the agent supplies them
	inv := &stubInvoker{output: "```json\n{\"dependencies\":[{\"task_key\":\"T-1\",\"depends_on\":[\"T-2\"]}]}\n```"}
	svc := &Service{Store: fs, Invoker: inv, Router: testRouter()}

	res, err := svc.OrderTasks(context.Background(), Request{
		ProjectKey:        "PROJ",
		InferDependencies: true,
		Apply:             true,
	})
	if err != nil {
		t.Fatalf("OrderTasks: %v", err)
	}
	if inv.calls != 1 {
		t.Fatalf("agent called %d times, want 1", inv.calls)
	}
	if len(fs.inserted) != 1 || fs.inserted[0].Relation != graph.RelationInferredAgent {
		t.Fatalf("inserted = %+v, want one inferred_agent edge", fs.inserted)
	}
	if position(t, itemKeys(res), "T-2") > position(t, itemKeys(res), "T-1") {
		t.Errorf("inferred dependency not honored: %v", itemKeys(res))
	}
}

func TestOrderTasksAgentFailureDegrades(t *testing.T) {
	fs := newFakeStore()
	inv := &stubInvoker{output: "I could not produce a list, sorry."}
	svc := &Service{Store: fs, Invoker: inv, Router: testRouter()}

	res, err := svc.OrderTasks(context.Background(), Request{
		ProjectKey:        "PROJ",
		InferDependencies: true,
		UseAgentRanking:   true,
	})
	if err != nil {
		t.Fatalf("agent garbage must degrade, not fail: %v", err)
	}
	if len(res.Ordered) != 3 {
		t.Fatalf("ordered %d tasks, want 3", len(res.Ordered))
	}
	var sawParse, sawRank bool
	for _, w := range res.Warnings {
		if strings.Contains(w, "no parseable JSON") {
			sawParse = true
		}
		if strings.Contains(w, "falling back to dependency ordering") {
			sawRank = true
		}
	}
	if !sawParse || !sawRank {
		t.Errorf("warnings = %v, want parse and ranking fallbacks", res.Warnings)
	}
}

func TestOrderTasksAgentRanking(t *testing.T) {
	fs := newFakeStore()
	fs.rows = nil // free tasks; only the agent rank separates them
	inv := &stubInvoker{output: `{"order":["T-3","T-1","T-2"]}`}
	svc := &Service{Store: fs, Invoker: inv, Router: testRouter()}

	res, err := svc.OrderTasks(context.Background(), Request{
		ProjectKey:      "PROJ",
		UseAgentRanking: true,
	})
	if err != nil {
		t.Fatalf("OrderTasks: %v", err)
	}
	got := itemKeys(res)
	want := []string{"T-3", "T-1", "T-2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestOrderTasksNoAgentConfigured(t *testing.T) {
	fs := newFakeStore()
	svc := &Service{Store: fs}

	res, err := svc.OrderTasks(context.Background(), Request{
		ProjectKey:        "PROJ",
		InferDependencies: true,
	})
	if err != nil {
		t.Fatalf("OrderTasks: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "no agent configured") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a no-agent notice", res.Warnings)
	}
}

func TestOrderTasksEmptySelection(t *testing.T) {
	fs := newFakeStore()
	fs.tasks = nil
	svc := &Service{Store: fs}

	res, err := svc.OrderTasks(context.Background(), Request{ProjectKey: "PROJ"})
	if err != nil {
		t.Fatalf("OrderTasks: %v", err)
	}
	if len(res.Ordered) != 0 || len(res.Warnings) != 1 {
		t.Errorf("result = %+v, want empty order with one notice", res)
	}
}

func itemKeys(res *Result) []string {
	keys := make([]string, len(res.Ordered))
	for i, item := range res.Ordered {
		keys[i] = item.Task.Key
	}
	return keys
}
