// Package telemetry records command runs, jobs, and token usage. Recording
// is best-effort and optional: a disabled recorder changes nothing about
// ordering behavior.
package telemetry

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcoda/mcoda/internal/store"
)

// Job and command-run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Recorder is the telemetry sink consumed by the ordering service and the
// backlog aggregator.
type Recorder interface {
	StartCommandRun(command string) (string, error)
	StartJob(commandRunID, kind string) (string, error)
	UpdateJobStatus(jobID, status, detail string) error
	FinishCommandRun(commandRunID, status, message string) error
	RecordTokenUsage(commandRunID, agentID string, inputTokens, outputTokens int64) error
}

// Nop is the disabled recorder. Every method succeeds without effect.
type Nop struct{}

func (Nop) StartCommandRun(string) (string, error)              { return "", nil }
func (Nop) StartJob(string, string) (string, error)             { return "", nil }
func (Nop) UpdateJobStatus(string, string, string) error        { return nil }
func (Nop) FinishCommandRun(string, string, string) error       { return nil }
func (Nop) RecordTokenUsage(string, string, int64, int64) error { return nil }

// SQLite records telemetry into the workspace database.
type SQLite struct {
	db *store.DB
}

// NewSQLite creates a recorder over the given database, creating its tables
// if needed.
func NewSQLite(db *store.DB) (*SQLite, error) {
	if _, err := db.Exec(telemetrySchema); err != nil {
		return nil, fmt.Errorf("apply telemetry schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

const telemetrySchema = `
CREATE TABLE IF NOT EXISTS command_runs (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	command_run_id TEXT REFERENCES command_runs(id),
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT,
	started_at DATETIME NOT NULL,
	updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS token_usage (
	id TEXT PRIMARY KEY,
	command_run_id TEXT REFERENCES command_runs(id),
	agent_id TEXT,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	recorded_at DATETIME NOT NULL
);
`

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// StartCommandRun opens a run record and returns its id.
func (r *SQLite) StartCommandRun(command string) (string, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(
		"INSERT INTO command_runs (id, command, status, started_at) VALUES (?, ?, ?, ?)",
		id, command, StatusRunning, now(),
	)
	if err != nil {
		return "", fmt.Errorf("start command run: %w", err)
	}
	return id, nil
}

// StartJob opens a job under a command run and returns its id.
func (r *SQLite) StartJob(commandRunID, kind string) (string, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(
		"INSERT INTO jobs (id, command_run_id, kind, status, started_at) VALUES (?, ?, ?, ?, ?)",
		id, nullable(commandRunID), kind, StatusRunning, now(),
	)
	if err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}
	return id, nil
}

// UpdateJobStatus transitions a job.
func (r *SQLite) UpdateJobStatus(jobID, status, detail string) error {
	if jobID == "" {
		return nil
	}
	_, err := r.db.Exec(
		"UPDATE jobs SET status = ?, detail = ?, updated_at = ? WHERE id = ?",
		status, detail, now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// FinishCommandRun closes a run record.
func (r *SQLite) FinishCommandRun(commandRunID, status, message string) error {
	if commandRunID == "" {
		return nil
	}
	_, err := r.db.Exec(
		"UPDATE command_runs SET status = ?, message = ?, finished_at = ? WHERE id = ?",
		status, message, now(), commandRunID,
	)
	if err != nil {
		return fmt.Errorf("finish command run: %w", err)
	}
	return nil
}

// RecordTokenUsage stores one agent invocation's usage.
func (r *SQLite) RecordTokenUsage(commandRunID, agentID string, inputTokens, outputTokens int64) error {
	_, err := r.db.Exec(
		`INSERT INTO token_usage (id, command_run_id, agent_id, input_tokens, output_tokens, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), nullable(commandRunID), agentID, inputTokens, outputTokens, now(),
	)
	if err != nil {
		return fmt.Errorf("record token usage: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Compile-time verification of both implementations.
var (
	_ Recorder = Nop{}
	_ Recorder = (*SQLite)(nil)
)
