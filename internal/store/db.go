// Package store provides SQLite-backed persistence for the mcoda backlog:
// projects, epics, user stories, tasks, dependencies, and task comments.
// The workspace database lives at .mcoda/mcoda.db.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSchemaMissing indicates one or more required tables are absent. The
// ordering engine treats this as fatal.
var ErrSchemaMissing = errors.New("required backlog tables missing")

// requiredTables are the tables the ordering engine cannot run without.
var requiredTables = []string{
	"projects", "epics", "user_stories", "tasks", "task_dependencies",
}

// DB wraps an SQLite database connection with mcoda-specific operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// WorkspaceDBPath returns the path to the workspace-local database.
func WorkspaceDBPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".mcoda", "mcoda.db")
}

// Open opens an SQLite database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// OpenWorkspace opens the workspace-local database.
func OpenWorkspace(workspaceRoot string) (*DB, error) {
	return Open(WorkspaceDBPath(workspaceRoot))
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// CheckSchema verifies that every table the engine requires exists.
// Returns an error wrapping ErrSchemaMissing naming the absent tables.
func (db *DB) CheckSchema() error {
	var missing []string
	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			missing = append(missing, table)
			continue
		}
		if err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrSchemaMissing, missing)
	}
	return nil
}

// Migrate creates the backlog schema. Safe to run repeatedly.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.conn.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS epics (
	id TEXT PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	project_id TEXT NOT NULL REFERENCES projects(id),
	title TEXT NOT NULL,
	priority INTEGER,
	updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS user_stories (
	id TEXT PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	epic_id TEXT NOT NULL REFERENCES epics(id),
	project_id TEXT NOT NULL REFERENCES projects(id),
	title TEXT NOT NULL,
	priority INTEGER,
	updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT,
	type TEXT,
	status TEXT NOT NULL,
	story_points REAL,
	priority INTEGER,
	assignee_human TEXT,
	epic_id TEXT REFERENCES epics(id),
	user_story_id TEXT REFERENCES user_stories(id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME,
	metadata_json TEXT
);

CREATE TABLE IF NOT EXISTS task_dependencies (
	task_id TEXT NOT NULL REFERENCES tasks(id),
	depends_on_task_id TEXT NOT NULL REFERENCES tasks(id),
	relation TEXT NOT NULL DEFAULT 'declared',
	PRIMARY KEY (task_id, depends_on_task_id)
);

CREATE TABLE IF NOT EXISTS task_comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL REFERENCES tasks(id),
	category TEXT,
	status TEXT,
	body TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_epic_id ON tasks(epic_id);
CREATE INDEX IF NOT EXISTS idx_tasks_user_story_id ON tasks(user_story_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_task_comments_task_id ON task_comments(task_id);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
