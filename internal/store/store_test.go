package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcoda/mcoda/internal/graph"
	"github.com/mcoda/mcoda/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "mcoda.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedBacklog(t *testing.T, db *DB) {
	t.Helper()
	stmts := []struct {
		q    string
		args []any
	}{
		{"INSERT INTO projects (id, key, name) VALUES (?, ?, ?)", []any{"p1", "PROJ", "Project"}},
		{"INSERT INTO epics (id, key, project_id, title) VALUES (?, ?, ?, ?)", []any{"e1", "E-1", "p1", "Epic"}},
		{"INSERT INTO user_stories (id, key, epic_id, project_id, title) VALUES (?, ?, ?, ?, ?)",
			[]any{"s1", "S-1", "e1", "p1", "Story"}},
	}
	for _, s := range stmts {
		if _, err := db.Exec(s.q, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		_, err := db.Exec(`INSERT INTO tasks
			(id, key, title, status, epic_id, user_story_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, "T-"+id, "Task "+id, "not_started", "e1", "s1",
			formatTime(base.Add(time.Duration(i)*time.Minute)))
		if err != nil {
			t.Fatalf("seed task %s: %v", id, err)
		}
	}
}

func TestCheckSchemaMissingTables(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	err = db.CheckSchema()
	if !errors.Is(err, ErrSchemaMissing) {
		t.Fatalf("err = %v, want ErrSchemaMissing", err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.CheckSchema(); err != nil {
		t.Errorf("CheckSchema after migrate: %v", err)
	}
}

func TestSelectionLookups(t *testing.T) {
	db := openTestDB(t)
	seedBacklog(t, db)

	p, err := db.GetProjectByKey("PROJ")
	if err != nil || p.ID != "p1" {
		t.Fatalf("GetProjectByKey = (%+v, %v)", p, err)
	}
	if _, err := db.GetProjectByKey("NOPE"); !errors.Is(err, ErrUnknownProject) {
		t.Errorf("err = %v, want ErrUnknownProject", err)
	}

	e, err := db.GetEpicByKey("p1", "E-1")
	if err != nil || e.ID != "e1" || e.Priority != nil {
		t.Fatalf("GetEpicByKey = (%+v, %v)", e, err)
	}
	if _, err := db.GetEpicByKey("p1", "E-9"); !errors.Is(err, ErrUnknownEpic) {
		t.Errorf("err = %v, want ErrUnknownEpic", err)
	}

	s, err := db.GetStoryByKey("p1", "S-1")
	if err != nil || s.EpicID != "e1" {
		t.Fatalf("GetStoryByKey = (%+v, %v)", s, err)
	}
	if _, err := db.GetStoryByKey("p1", "S-9"); !errors.Is(err, ErrUnknownStory) {
		t.Errorf("err = %v, want ErrUnknownStory", err)
	}
}

func TestListTasksScopingAndOrder(t *testing.T) {
	db := openTestDB(t)
	seedBacklog(t, db)

	tasks, err := db.ListTasks(TaskFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}
	// created_at ascending.
	for i, want := range []string{"T-a", "T-b", "T-c"} {
		if tasks[i].Key != want {
			t.Errorf("task %d = %s, want %s", i, tasks[i].Key, want)
		}
	}

	tasks, err = db.ListTasks(TaskFilter{
		ProjectID: "p1",
		Statuses:  []models.TaskStatus{models.StatusInProgress},
	})
	if err != nil {
		t.Fatalf("ListTasks filtered: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("status filter returned %d tasks, want 0", len(tasks))
	}
}

func TestListDependenciesJoinsTargets(t *testing.T) {
	db := openTestDB(t)
	seedBacklog(t, db)

	edges := []graph.Edge{
		{TaskID: "a", DependsOnID: "b", Relation: graph.RelationDeclared},
		{TaskID: "a", DependsOnID: "c", Relation: graph.RelationInferredFoundation},
	}
	if err := db.InsertDependencies(edges); err != nil {
		t.Fatalf("InsertDependencies: %v", err)
	}

	rows, err := db.ListDependencies([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ListDependencies: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].DependsOnKey != "T-b" || rows[0].DependsOnStatus != models.StatusNotStarted {
		t.Errorf("resolved row = %+v, want joined key and status", rows[0])
	}

	// Duplicate inserts are ignored.
	if err := db.InsertDependencies(edges[:1]); err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	rows, _ = db.ListDependencies([]string{"a"})
	if len(rows) != 2 {
		t.Errorf("after duplicate insert got %d rows, want 2", len(rows))
	}
}

func TestOpenMissingContext(t *testing.T) {
	db := openTestDB(t)
	seedBacklog(t, db)

	inserts := []struct {
		taskID   string
		category string
		status   any
	}{
		{"a", "missing_context", nil},     // NULL status counts as open
		{"b", "missing_context", "OPEN"},  // case-insensitive
		{"c", "missing_context", "resolved"},
		{"c", "question", "open"}, // wrong category
	}
	for _, in := range inserts {
		if _, err := db.Exec(
			"INSERT INTO task_comments (task_id, category, status, body) VALUES (?, ?, ?, ?)",
			in.taskID, in.category, in.status, "note",
		); err != nil {
			t.Fatalf("insert comment: %v", err)
		}
	}

	open, err := db.OpenMissingContext([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("OpenMissingContext: %v", err)
	}
	if !open["a"] || !open["b"] {
		t.Errorf("open = %v, want a and b flagged", open)
	}
	if open["c"] {
		t.Error("resolved and wrong-category comments must not flag the task")
	}
}

func TestPersistOrderRoundTrip(t *testing.T) {
	db := openTestDB(t)
	seedBacklog(t, db)

	tasks, err := db.ListTasks(TaskFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	for i, task := range tasks {
		p := i + 1
		task.Priority = &p
		task.Metadata = map[string]any{"ordering": map[string]any{"complexityScore": float64(p)}}
	}

	err = db.PersistOrder(tasks, map[string]int{"e1": 1}, map[string]int{"s1": 1})
	if err != nil {
		t.Fatalf("PersistOrder: %v", err)
	}

	reloaded, err := db.ListTasks(TaskFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	for i, task := range reloaded {
		if task.Priority == nil || *task.Priority != i+1 {
			t.Errorf("task %s priority = %v, want %d", task.Key, task.Priority, i+1)
		}
		block, ok := task.Metadata["ordering"].(map[string]any)
		if !ok || block["complexityScore"] != float64(i+1) {
			t.Errorf("task %s metadata = %v, want ordering block", task.Key, task.Metadata)
		}
	}

	epic, err := db.GetEpicByKey("p1", "E-1")
	if err != nil || epic.Priority == nil || *epic.Priority != 1 {
		t.Errorf("epic priority = %+v (%v), want 1", epic, err)
	}
	story, err := db.GetStoryByKey("p1", "S-1")
	if err != nil || story.Priority == nil || *story.Priority != 1 {
		t.Errorf("story priority = %+v (%v), want 1", story, err)
	}
}
