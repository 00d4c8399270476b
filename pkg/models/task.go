// Package models defines the backlog hierarchy and scheduling types shared
// across mcoda.
package models

import "time"

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	// StatusNotStarted indicates work has not begun.
	StatusNotStarted TaskStatus = "not_started"
	// StatusInProgress indicates the task is being worked on.
	StatusInProgress TaskStatus = "in_progress"
	// StatusChangesRequested indicates review sent the task back.
	StatusChangesRequested TaskStatus = "changes_requested"
	// StatusReadyToReview indicates implementation is done and awaiting review.
	StatusReadyToReview TaskStatus = "ready_to_review"
	// StatusReviewInProgress indicates the task is under review.
	StatusReviewInProgress TaskStatus = "review_in_progress"
	// StatusReadyToQA indicates review passed and QA is pending.
	StatusReadyToQA TaskStatus = "ready_to_qa"
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted TaskStatus = "completed"
	// StatusCancelled indicates the task was abandoned.
	StatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusChangesRequested,
		StatusReadyToReview, StatusReviewInProgress, StatusReadyToQA,
		StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Done returns true for terminal statuses. A dependency on a done task is
// always considered satisfied.
func (s TaskStatus) Done() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Rank orders statuses for scheduling tie-breaks: active work first, then
// untouched tasks, then the review pipeline, then terminal states.
func (s TaskStatus) Rank() int {
	switch s {
	case StatusInProgress, StatusChangesRequested:
		return 0
	case StatusNotStarted:
		return 1
	case StatusReadyToReview, StatusReviewInProgress:
		return 2
	case StatusReadyToQA:
		return 3
	case StatusCompleted, StatusCancelled:
		return 4
	default:
		return 1
	}
}

// Lane is a status-derived backlog bucket. Lanes are never stored; they are
// recomputed from status on every read.
type Lane string

const (
	LaneImplementation Lane = "implementation"
	LaneReview         Lane = "review"
	LaneQA             Lane = "qa"
	LaneDone           Lane = "done"
)

// LaneForStatus maps a task status onto its backlog lane. Unrecognized
// statuses land in the implementation lane.
func LaneForStatus(s TaskStatus) Lane {
	switch s {
	case StatusReadyToReview, StatusReviewInProgress, StatusChangesRequested:
		return LaneReview
	case StatusReadyToQA:
		return LaneQA
	case StatusCompleted, StatusCancelled:
		return LaneDone
	default:
		return LaneImplementation
	}
}

// Rank orders lanes for display: implementation, review, qa, done.
func (l Lane) Rank() int {
	switch l {
	case LaneImplementation:
		return 0
	case LaneReview:
		return 1
	case LaneQA:
		return 2
	case LaneDone:
		return 3
	default:
		return 0
	}
}

// Project is the top of the backlog hierarchy.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Epic groups user stories under a project.
type Epic struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	// Priority is nil until an ordering run assigns one.
	Priority *int `json:"priority,omitempty"`
}

// Story groups tasks under an epic.
type Story struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	EpicID    string `json:"epic_id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Priority  *int   `json:"priority,omitempty"`
}

// Task is the unit of schedulable work.
type Task struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Type        string     `json:"type,omitempty"`
	Status      TaskStatus `json:"status"`
	// StoryPoints is nil when the task has not been estimated.
	StoryPoints *float64 `json:"story_points,omitempty"`
	// Priority is nil before scheduling; dense and 1-based afterwards.
	Priority *int   `json:"priority,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	EpicID   string `json:"epic_id,omitempty"`
	StoryID  string `json:"user_story_id,omitempty"`
	// Metadata is free-form; the ordering engine owns the "ordering" key.
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LaneOf returns the backlog lane derived from the task's status.
func (t *Task) LaneOf() Lane {
	return LaneForStatus(t.Status)
}
