package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mcoda/mcoda/internal/graph"
	"github.com/mcoda/mcoda/pkg/models"
)

// Sentinel errors for unknown selection keys. All three are fatal to the
// calling command.
var (
	ErrUnknownProject = errors.New("unknown project key")
	ErrUnknownEpic    = errors.New("unknown epic key")
	ErrUnknownStory   = errors.New("unknown story key")
)

// GetProjectByKey resolves a project by its human key.
func (db *DB) GetProjectByKey(key string) (*models.Project, error) {
	var p models.Project
	err := db.QueryRow(
		"SELECT id, key, name FROM projects WHERE key = ?", key,
	).Scan(&p.ID, &p.Key, &p.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProject, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// GetEpicByKey resolves an epic by key within a project.
func (db *DB) GetEpicByKey(projectID, key string) (*models.Epic, error) {
	var e models.Epic
	var priority sql.NullInt64
	err := db.QueryRow(
		"SELECT id, key, project_id, title, priority FROM epics WHERE project_id = ? AND key = ?",
		projectID, key,
	).Scan(&e.ID, &e.Key, &e.ProjectID, &e.Title, &priority)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEpic, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get epic: %w", err)
	}
	e.Priority = nullableInt(priority)
	return &e, nil
}

// GetStoryByKey resolves a user story by key within a project.
func (db *DB) GetStoryByKey(projectID, key string) (*models.Story, error) {
	var s models.Story
	var priority sql.NullInt64
	err := db.QueryRow(
		"SELECT id, key, epic_id, project_id, title, priority FROM user_stories WHERE project_id = ? AND key = ?",
		projectID, key,
	).Scan(&s.ID, &s.Key, &s.EpicID, &s.ProjectID, &s.Title, &priority)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStory, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	s.Priority = nullableInt(priority)
	return &s, nil
}

// ListEpics returns all epics in a project keyed by id.
func (db *DB) ListEpics(projectID string) (map[string]*models.Epic, error) {
	rows, err := db.Query(
		"SELECT id, key, project_id, title, priority FROM epics WHERE project_id = ?",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.Epic)
	for rows.Next() {
		var e models.Epic
		var priority sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Key, &e.ProjectID, &e.Title, &priority); err != nil {
			return nil, fmt.Errorf("scan epic: %w", err)
		}
		e.Priority = nullableInt(priority)
		out[e.ID] = &e
	}
	return out, rows.Err()
}

// ListStories returns all user stories in a project keyed by id.
func (db *DB) ListStories(projectID string) (map[string]*models.Story, error) {
	rows, err := db.Query(
		"SELECT id, key, epic_id, project_id, title, priority FROM user_stories WHERE project_id = ?",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.Story)
	for rows.Next() {
		var s models.Story
		var priority sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Key, &s.EpicID, &s.ProjectID, &s.Title, &priority); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		s.Priority = nullableInt(priority)
		out[s.ID] = &s
	}
	return out, rows.Err()
}

// TaskFilter scopes a task selection.
type TaskFilter struct {
	ProjectID string
	EpicID    string
	StoryID   string
	Statuses  []models.TaskStatus
}

const taskColumns = `t.id, t.key, t.title, t.description, t.type, t.status,
	t.story_points, t.priority, t.assignee_human, t.epic_id, t.user_story_id,
	t.created_at, t.updated_at, t.metadata_json`

// ListTasks loads the task selection for an ordering or backlog run,
// ordered by creation time then key for deterministic input order.
func (db *DB) ListTasks(filter TaskFilter) ([]*models.Task, error) {
	query := "SELECT " + taskColumns + `
		FROM tasks t
		JOIN epics e ON e.id = t.epic_id
		WHERE e.project_id = ?`
	args := []any{filter.ProjectID}

	if filter.EpicID != "" {
		query += " AND t.epic_id = ?"
		args = append(args, filter.EpicID)
	}
	if filter.StoryID != "" {
		query += " AND t.user_story_id = ?"
		args = append(args, filter.StoryID)
	}
	if len(filter.Statuses) > 0 {
		query += " AND t.status IN (" + placeholders(len(filter.Statuses)) + ")"
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	query += " ORDER BY t.created_at, t.key"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(rows *sql.Rows) (*models.Task, error) {
	var t models.Task
	var description, taskType, assignee, storyID, epicID, updatedAt, metadataJSON sql.NullString
	var storyPoints sql.NullFloat64
	var priority sql.NullInt64
	var createdAt string

	err := rows.Scan(&t.ID, &t.Key, &t.Title, &description, &taskType, &t.Status,
		&storyPoints, &priority, &assignee, &epicID, &storyID,
		&createdAt, &updatedAt, &metadataJSON)
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Description = description.String
	t.Type = taskType.String
	t.Assignee = assignee.String
	t.EpicID = epicID.String
	t.StoryID = storyID.String
	if storyPoints.Valid {
		v := storyPoints.Float64
		t.StoryPoints = &v
	}
	t.Priority = nullableInt(priority)
	t.CreatedAt, _ = parseTime(createdAt)
	if updatedAt.Valid {
		t.UpdatedAt, _ = parseTime(updatedAt.String)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(metadataJSON.String), &meta); err == nil {
			t.Metadata = meta
		}
	}
	return &t, nil
}

// ListDependencies loads the dependency rows for a set of tasks, joining
// the target task's key and status so the graph builder can classify
// out-of-scope references.
func (db *DB) ListDependencies(taskIDs []string) ([]graph.DependencyRow, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}

	query := `SELECT d.task_id, d.depends_on_task_id,
			COALESCE(dt.key, ''), COALESCE(dt.status, '')
		FROM task_dependencies d
		LEFT JOIN tasks dt ON dt.id = d.depends_on_task_id
		WHERE d.task_id IN (` + placeholders(len(taskIDs)) + `)
		ORDER BY d.task_id, d.depends_on_task_id`
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var out []graph.DependencyRow
	for rows.Next() {
		var row graph.DependencyRow
		var status string
		if err := rows.Scan(&row.TaskID, &row.DependsOnID, &row.DependsOnKey, &status); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		row.DependsOnStatus = models.TaskStatus(status)
		out = append(out, row)
	}
	return out, rows.Err()
}

// OpenMissingContext reports which tasks have an open missing-context
// comment. A comment is open when its status is NULL or the string "open",
// case-insensitively.
func (db *DB) OpenMissingContext(taskIDs []string) (map[string]bool, error) {
	if len(taskIDs) == 0 {
		return map[string]bool{}, nil
	}

	query := `SELECT DISTINCT task_id FROM task_comments
		WHERE category = 'missing_context'
		AND (status IS NULL OR LOWER(status) = 'open')
		AND task_id IN (` + placeholders(len(taskIDs)) + `)`
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query open missing-context comments: %w", err)
	}
	defer rows.Close()

	open := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		open[id] = true
	}
	return open, rows.Err()
}

// InsertDependencies batch-inserts staged edges, ignoring duplicates.
func (db *DB) InsertDependencies(edges []graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	return db.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO task_dependencies
			(task_id, depends_on_task_id, relation) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare dependency insert: %w", err)
		}
		defer stmt.Close()

		for _, edge := range edges {
			if _, err := stmt.Exec(edge.TaskID, edge.DependsOnID, edge.Relation); err != nil {
				return fmt.Errorf("insert dependency %s -> %s: %w", edge.TaskID, edge.DependsOnID, err)
			}
		}
		return nil
	})
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
