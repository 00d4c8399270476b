// Package backlog aggregates the task backlog into status-based lanes with
// rollup totals and cross-lane dependency diagnostics. It sits beside the
// ordering pipeline and can delegate to it for dependency-aware lane order.
package backlog

import (
	"context"
	"fmt"
	"sort"

	"github.com/mcoda/mcoda/internal/ordering"
	"github.com/mcoda/mcoda/internal/store"
	"github.com/mcoda/mcoda/pkg/models"
)

// Rollup totals tasks and story points for one scope.
type Rollup struct {
	Tasks       int     `json:"tasks"`
	StoryPoints float64 `json:"story_points"`
}

func (r *Rollup) add(t *models.Task) {
	r.Tasks++
	if t.StoryPoints != nil {
		r.StoryPoints += *t.StoryPoints
	}
}

// LaneTotals holds per-lane rollups for one scope.
type LaneTotals map[models.Lane]Rollup

func (lt LaneTotals) add(t *models.Task, lane models.Lane) {
	r := lt[lane]
	r.add(t)
	lt[lane] = r
}

// TaskEntry is one backlog task with its derived lane.
type TaskEntry struct {
	Task *models.Task `json:"task"`
	Lane models.Lane  `json:"lane"`
	// CycleMember is set only for dependency-aware views.
	CycleMember bool `json:"cycle_member,omitempty"`
}

// StoryView groups a story's tasks with rollups.
type StoryView struct {
	Story *models.Story `json:"story"`
	Tasks []*TaskEntry  `json:"tasks"`
	Total Rollup        `json:"total"`
	Lanes LaneTotals    `json:"lanes"`
}

// EpicView groups an epic's stories with rollups.
type EpicView struct {
	Epic    *models.Epic `json:"epic"`
	Stories []*StoryView `json:"stories"`
	Total   Rollup       `json:"total"`
	Lanes   LaneTotals   `json:"lanes"`
}

// CrossLaneDependency flags a dependency whose two tasks sit in different
// lanes, a sign that lane-based views may hide execution-order risk.
type CrossLaneDependency struct {
	TaskKey        string      `json:"task_key"`
	DependsOnKey   string      `json:"depends_on_key"`
	TaskLane       models.Lane `json:"task_lane"`
	DependencyLane models.Lane `json:"dependency_lane"`
}

// OrderingMeta records whether dependency-aware ordering was requested for
// the snapshot and whether it was applied. Reason explains a fallback.
type OrderingMeta struct {
	Requested bool   `json:"requested"`
	Applied   bool   `json:"applied"`
	Reason    string `json:"reason,omitempty"`
}

// Snapshot is one aggregated view of the backlog.
type Snapshot struct {
	Project *models.Project `json:"project"`
	Epic    *models.Epic    `json:"epic,omitempty"`
	// Tasks is the flat task list in display order.
	Tasks []*TaskEntry `json:"tasks"`
	Epics []*EpicView  `json:"epics"`
	Total Rollup       `json:"total"`
	Lanes LaneTotals   `json:"lanes"`
	// Ordering reports how the display order was produced.
	Ordering OrderingMeta `json:"ordering"`
	// CrossLane lists lane-crossing dependencies sorted by task key then
	// dependency key.
	CrossLane []CrossLaneDependency `json:"cross_lane,omitempty"`
	Warnings  []string              `json:"warnings,omitempty"`
}

// Orderer runs a dependency-aware ordering pass. *ordering.Service
// implements it.
type Orderer interface {
	OrderTasks(ctx context.Context, req ordering.Request) (*ordering.Result, error)
}

// Aggregator builds backlog snapshots.
type Aggregator struct {
	Store   ordering.Backlog
	Orderer Orderer
}

// Request selects the backlog slice and view options.
type Request struct {
	ProjectKey string
	EpicKey    string
	Statuses   []models.TaskStatus
	// DependencyOrder orders tasks by delegating to the scheduler instead
	// of the lane heuristic. Read-only: the delegated run never writes.
	DependencyOrder bool
	// Verbose includes underlying error detail in fallback warnings.
	Verbose bool
}

// Build assembles a snapshot: lane bucketing, rollups at story, epic, and
// overall scope, display order, and cross-lane diagnostics.
func (a *Aggregator) Build(ctx context.Context, req Request) (*Snapshot, error) {
	snap := &Snapshot{Lanes: make(LaneTotals)}

	project, err := a.Store.GetProjectByKey(req.ProjectKey)
	if err != nil {
		return nil, err
	}
	snap.Project = project

	filter := store.TaskFilter{ProjectID: project.ID, Statuses: req.Statuses}
	if req.EpicKey != "" {
		epic, err := a.Store.GetEpicByKey(project.ID, req.EpicKey)
		if err != nil {
			return nil, err
		}
		snap.Epic = epic
		filter.EpicID = epic.ID
	}

	tasks, err := a.Store.ListTasks(filter)
	if err != nil {
		return nil, err
	}

	epics, err := a.Store.ListEpics(project.ID)
	if err != nil {
		return nil, err
	}
	stories, err := a.Store.ListStories(project.ID)
	if err != nil {
		return nil, err
	}

	entries := a.orderedEntries(ctx, req, snap, tasks, epics, stories)
	snap.Tasks = entries

	for _, e := range entries {
		snap.Total.add(e.Task)
		snap.Lanes.add(e.Task, e.Lane)
	}
	snap.Epics = groupByHierarchy(entries, epics, stories)

	crossLane, err := a.detectCrossLane(entries)
	if err != nil {
		return nil, err
	}
	snap.CrossLane = crossLane
	if len(crossLane) > 0 {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf(
			"%d dependencies cross lanes; lane-based views may be misleading", len(crossLane)))
	}

	return snap, nil
}

// orderedEntries produces the flat task list in display order, delegating to
// the scheduler when requested and falling back to the lane heuristic on any
// failure.
func (a *Aggregator) orderedEntries(ctx context.Context, req Request, snap *Snapshot,
	tasks []*models.Task, epics map[string]*models.Epic, stories map[string]*models.Story) []*TaskEntry {

	snap.Ordering.Requested = req.DependencyOrder
	if req.DependencyOrder {
		switch {
		case a.Orderer == nil:
			snap.Ordering.Reason = "no orderer configured"
			snap.Warnings = append(snap.Warnings,
				"dependency-aware ordering unavailable; using default backlog order")
		default:
			res, err := a.Orderer.OrderTasks(ctx, ordering.Request{
				ProjectKey:        req.ProjectKey,
				EpicKey:           req.EpicKey,
				Statuses:          req.Statuses,
				DisableInjection:  true,
				DisableEnrichment: true,
			})
			if err == nil {
				snap.Ordering.Applied = true
				entries := make([]*TaskEntry, 0, len(res.Ordered))
				for _, item := range res.Ordered {
					entries = append(entries, &TaskEntry{
						Task:        item.Task,
						Lane:        item.Task.LaneOf(),
						CycleMember: item.CycleMember,
					})
				}
				snap.Warnings = append(snap.Warnings, res.Warnings...)
				return entries
			}
			snap.Ordering.Reason = err.Error()
			warning := "dependency-aware ordering failed; using default backlog order"
			if req.Verbose {
				warning = fmt.Sprintf("%s: %v", warning, err)
			}
			snap.Warnings = append(snap.Warnings, warning)
		}
	}

	entries := make([]*TaskEntry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, &TaskEntry{Task: t, Lane: t.LaneOf()})
	}
	sortDefault(entries, epics, stories)
	return entries
}

// sortDefault orders entries by lane rank, then epic, story, and task
// priority with nils last, then task key.
func sortDefault(entries []*TaskEntry, epics map[string]*models.Epic, stories map[string]*models.Story) {
	prio := func(e *TaskEntry) (epic, story *int) {
		if ep, ok := epics[e.Task.EpicID]; ok {
			epic = ep.Priority
		}
		if st, ok := stories[e.Task.StoryID]; ok {
			story = st.Priority
		}
		return epic, story
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if ra, rb := a.Lane.Rank(), b.Lane.Rank(); ra != rb {
			return ra < rb
		}
		aEpic, aStory := prio(a)
		bEpic, bStory := prio(b)
		if c := compareNullable(aEpic, bEpic); c != 0 {
			return c < 0
		}
		if c := compareNullable(aStory, bStory); c != 0 {
			return c < 0
		}
		if c := compareNullable(a.Task.Priority, b.Task.Priority); c != 0 {
			return c < 0
		}
		return a.Task.Key < b.Task.Key
	})
}

func compareNullable(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return *a - *b
	}
}

// groupByHierarchy buckets the ordered entries into epic and story views,
// preserving first-appearance order.
func groupByHierarchy(entries []*TaskEntry, epics map[string]*models.Epic,
	stories map[string]*models.Story) []*EpicView {

	var views []*EpicView
	epicIndex := make(map[string]*EpicView)
	storyIndex := make(map[string]*StoryView)

	for _, e := range entries {
		epic, ok := epics[e.Task.EpicID]
		if !ok {
			continue
		}
		ev, ok := epicIndex[epic.ID]
		if !ok {
			ev = &EpicView{Epic: epic, Lanes: make(LaneTotals)}
			epicIndex[epic.ID] = ev
			views = append(views, ev)
		}
		ev.Total.add(e.Task)
		ev.Lanes.add(e.Task, e.Lane)

		story, ok := stories[e.Task.StoryID]
		if !ok {
			continue
		}
		sv, ok := storyIndex[story.ID]
		if !ok {
			sv = &StoryView{Story: story, Lanes: make(LaneTotals)}
			storyIndex[story.ID] = sv
			ev.Stories = append(ev.Stories, sv)
		}
		sv.Tasks = append(sv.Tasks, e)
		sv.Total.add(e.Task)
		sv.Lanes.add(e.Task, e.Lane)
	}

	return views
}

// detectCrossLane emits one record per dependency whose two tasks sit in
// different lanes. Only in-scope pairs are considered.
func (a *Aggregator) detectCrossLane(entries []*TaskEntry) ([]CrossLaneDependency, error) {
	byID := make(map[string]*TaskEntry, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		byID[e.Task.ID] = e
		ids = append(ids, e.Task.ID)
	}

	rows, err := a.Store.ListDependencies(ids)
	if err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}

	var out []CrossLaneDependency
	for _, row := range rows {
		from, ok := byID[row.TaskID]
		if !ok {
			continue
		}
		to, ok := byID[row.DependsOnID]
		if !ok {
			continue
		}
		if from.Lane == to.Lane {
			continue
		}
		out = append(out, CrossLaneDependency{
			TaskKey:        from.Task.Key,
			DependsOnKey:   to.Task.Key,
			TaskLane:       from.Lane,
			DependencyLane: to.Lane,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskKey != out[j].TaskKey {
			return out[i].TaskKey < out[j].TaskKey
		}
		return out[i].DependsOnKey < out[j].DependsOnKey
	})
	return out, nil
}
