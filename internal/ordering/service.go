package ordering

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mcoda/mcoda/internal/agent"
	"github.com/mcoda/mcoda/internal/classify"
	"github.com/mcoda/mcoda/internal/docdex"
	"github.com/mcoda/mcoda/internal/graph"
	"github.com/mcoda/mcoda/internal/store"
	"github.com/mcoda/mcoda/internal/telemetry"
	"github.com/mcoda/mcoda/pkg/models"
)

// Backlog is the persistence surface the ordering service needs. *store.DB
// implements it; tests substitute fakes.
type Backlog interface {
	GetProjectByKey(key string) (*models.Project, error)
	GetEpicByKey(projectID, key string) (*models.Epic, error)
	GetStoryByKey(projectID, key string) (*models.Story, error)
	ListEpics(projectID string) (map[string]*models.Epic, error)
	ListStories(projectID string) (map[string]*models.Story, error)
	ListTasks(filter store.TaskFilter) ([]*models.Task, error)
	ListDependencies(taskIDs []string) ([]graph.DependencyRow, error)
	OpenMissingContext(taskIDs []string) (map[string]bool, error)
	InsertDependencies(edges []graph.Edge) error
	PersistOrder(ordered []*models.Task, epicRanks, storyRanks map[string]int) error
}

// Service orchestrates one ordering run end to end.
type Service struct {
	Store    Backlog
	Invoker  agent.Invoker
	Router   agent.Router
	Searcher docdex.Searcher
	Recorder telemetry.Recorder
	// StageOrder overrides the default stage precedence when non-empty.
	StageOrder []models.Stage
	// Policy gates whether a planning document is required for agent steps.
	Policy docdex.Policy
}

// Request selects the tasks to order and which optional phases run.
type Request struct {
	Workspace  string
	ProjectKey string
	EpicKey    string
	StoryKey   string
	Statuses   []models.TaskStatus
	// Apply persists injected edges, priorities, and metadata. False is a
	// dry run: everything is computed and reported, nothing is written.
	Apply bool
	// InferDependencies asks the agent to propose missing edges.
	InferDependencies bool
	// UseAgentRanking asks the agent to refine tie-breaks.
	UseAgentRanking   bool
	OverrideAgentSlug string
	// RecordTelemetry toggles job/command-run recording without changing
	// ordering behavior.
	RecordTelemetry bool
	// DisableInjection and DisableEnrichment support read-only delegated
	// runs (the backlog aggregator's dependency-aware ordering).
	DisableInjection  bool
	DisableEnrichment bool
	// StreamSink, when set, receives partial agent output. Ordering only
	// consumes the final text.
	StreamSink func(agent.Chunk)
}

// TaskOrderItem is one scheduled task with its derived metadata.
type TaskOrderItem struct {
	Task                *models.Task
	Position            int
	CycleMember         bool
	MissingDependencies []string
	Meta                models.OrderingMetadata
}

// Result is the ordering run output. Warnings accumulate every degraded
// step; callers decide how to surface them.
type Result struct {
	Project      *models.Project
	Epic         *models.Epic
	Story        *models.Story
	Ordered      []TaskOrderItem
	Cycle        bool
	Warnings     []string
	JobID        string
	CommandRunID string
}

// commandName identifies ordering runs in telemetry and agent routing.
const commandName = "tasks-order"

// OrderTasks runs the full pipeline: load, build graph, classify, inject
// foundation edges, apply agent inferences, analyze impact, enrich, rank,
// schedule, persist. Recoverable problems become warnings; only unknown
// selection keys, missing schema, and planning policy violations abort.
func (s *Service) OrderTasks(ctx context.Context, req Request) (*Result, error) {
	rec := s.recorder(req)
	runID, _ := rec.StartCommandRun(commandName)
	jobID, _ := rec.StartJob(runID, "task-ordering")

	res, err := s.orderTasks(ctx, req, rec, runID)
	if err != nil {
		rec.UpdateJobStatus(jobID, telemetry.StatusFailed, err.Error())
		rec.FinishCommandRun(runID, telemetry.StatusFailed, err.Error())
		return nil, err
	}

	res.JobID = jobID
	res.CommandRunID = runID
	rec.UpdateJobStatus(jobID, telemetry.StatusCompleted, "")
	rec.FinishCommandRun(runID, telemetry.StatusCompleted, "")
	return res, nil
}

func (s *Service) orderTasks(ctx context.Context, req Request, rec telemetry.Recorder, runID string) (*Result, error) {
	res := &Result{}

	project, err := s.Store.GetProjectByKey(req.ProjectKey)
	if err != nil {
		return nil, err
	}
	res.Project = project

	filter := store.TaskFilter{ProjectID: project.ID, Statuses: req.Statuses}
	if req.EpicKey != "" {
		epic, err := s.Store.GetEpicByKey(project.ID, req.EpicKey)
		if err != nil {
			return nil, err
		}
		res.Epic = epic
		filter.EpicID = epic.ID
	}
	if req.StoryKey != "" {
		story, err := s.Store.GetStoryByKey(project.ID, req.StoryKey)
		if err != nil {
			return nil, err
		}
		res.Story = story
		filter.StoryID = story.ID
	}

	tasks, err := s.Store.ListTasks(filter)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		res.Warnings = append(res.Warnings, "no tasks matched the selection")
		return res, nil
	}

	g, err := s.buildGraph(tasks)
	if err != nil {
		return nil, err
	}
	if len(g.MissingKeys) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%d unresolved dependency references: %s",
			len(g.MissingKeys), strings.Join(g.MissingKeys, ", ")))
	}

	classes := classify.All(tasks)

	if !req.DisableInjection {
		inj := InjectFoundationEdges(g, classes)
		res.Warnings = append(res.Warnings, inj.Warnings...)
		if req.Apply && len(inj.Injected) > 0 {
			if err := s.Store.InsertDependencies(inj.Injected); err != nil {
				return nil, fmt.Errorf("persist injected dependencies: %w", err)
			}
		}
		if len(inj.Injected) > 0 {
			if g, err = s.rebuildGraph(tasks, g); err != nil {
				return nil, err
			}
		}
	}

	// Planning context is only fetched and enforced when an agent phase
	// will consume it.
	var planningText, docSource string
	if req.InferDependencies || req.UseAgentRanking {
		pc, err := docdex.Resolve(ctx, s.Searcher, project.Key, s.Policy)
		if err != nil {
			if errors.Is(err, docdex.ErrPlanningContext) {
				return nil, err
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("planning document lookup failed: %v", err))
		} else if pc != nil {
			planningText = pc.Text
			docSource = pc.Doc.ID
		}
	}

	keyToID := make(map[string]string, len(tasks))
	for _, task := range tasks {
		keyToID[task.Key] = task.ID
	}

	if req.InferDependencies {
		staged, warnings := s.inferDependencies(ctx, req, rec, runID, g, tasks, keyToID, planningText)
		res.Warnings = append(res.Warnings, warnings...)
		if len(staged) > 0 {
			if req.Apply {
				if err := s.Store.InsertDependencies(staged); err != nil {
					return nil, fmt.Errorf("persist inferred dependencies: %w", err)
				}
			}
			if g, err = s.rebuildGraph(tasks, g); err != nil {
				return nil, err
			}
		}
	}

	impacts := graph.Impacts(g)

	missingContext, err := s.Store.OpenMissingContext(g.Order)
	if err != nil {
		return nil, fmt.Errorf("query missing-context comments: %w", err)
	}

	epics, err := s.Store.ListEpics(project.ID)
	if err != nil {
		return nil, err
	}
	stories, err := s.Store.ListStories(project.ID)
	if err != nil {
		return nil, err
	}

	info := make(map[string]TaskInfo, len(tasks))
	metas := make(map[string]models.OrderingMetadata, len(tasks))
	for _, task := range tasks {
		c := classes[task.ID]
		meta := Enrich(task, c, impacts[task.ID], len(g.Nodes[task.ID].Dependencies),
			missingContext[task.ID], docSource)
		metas[task.ID] = meta
		if !req.DisableEnrichment {
			MergeOrderingMetadata(task, meta)
		}

		ti := TaskInfo{
			MissingContextOpen: meta.MissingContextOpen,
			Foundation:         c.Foundation,
			Stage:              c.Stage,
			ImpactTotal:        impacts[task.ID].Total,
			Complexity:         meta.ComplexityScore,
		}
		if epic, ok := epics[task.EpicID]; ok {
			ti.EpicPriority = epic.Priority
		}
		if story, ok := stories[task.StoryID]; ok {
			ti.StoryPriority = story.Priority
		}
		info[task.ID] = ti
	}

	scheduler := &Scheduler{StageOrder: s.StageOrder, Info: info}

	if req.UseAgentRanking {
		ranks, warnings := s.agentRanking(ctx, req, rec, runID, scheduler, g, keyToID, planningText)
		res.Warnings = append(res.Warnings, warnings...)
		scheduler.AgentRank = ranks
	}

	sched := scheduler.Schedule(g)
	res.Cycle = sched.Cycle
	if sched.Cycle {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"dependency cycle detected: %d tasks could not be strictly ordered", len(sched.CycleMembers)))
	}

	AssignTaskPriorities(sched.Ordered)
	epicRanks, storyRanks := GroupPriorities(sched.Ordered)
	if req.Apply {
		if err := s.Store.PersistOrder(sched.Ordered, epicRanks, storyRanks); err != nil {
			return nil, fmt.Errorf("persist task order: %w", err)
		}
	}

	for i, task := range sched.Ordered {
		_, cycleMember := sched.CycleMembers[task.ID]
		res.Ordered = append(res.Ordered, TaskOrderItem{
			Task:                task,
			Position:            i + 1,
			CycleMember:         cycleMember,
			MissingDependencies: g.Nodes[task.ID].MissingDependencies,
			Meta:                metas[task.ID],
		})
	}
	return res, nil
}

// buildGraph loads dependency rows and assembles the graph.
func (s *Service) buildGraph(tasks []*models.Task) (*graph.Graph, error) {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	rows, err := s.Store.ListDependencies(ids)
	if err != nil {
		return nil, fmt.Errorf("load dependencies: %w", err)
	}
	return graph.Build(tasks, rows), nil
}

// rebuildGraph reconstructs adjacency after an injection phase from the
// current graph's edges (declared plus staged), without reloading rows.
func (s *Service) rebuildGraph(tasks []*models.Task, current *graph.Graph) (*graph.Graph, error) {
	rebuilt := graph.Build(tasks, current.Edges())
	// Carry forward missing references: staged edges never resolve them.
	for id, node := range current.Nodes {
		rebuilt.Nodes[id].MissingDependencies = node.MissingDependencies
	}
	rebuilt.MissingKeys = current.MissingKeys
	return rebuilt, nil
}

func (s *Service) recorder(req Request) telemetry.Recorder {
	if !req.RecordTelemetry || s.Recorder == nil {
		return telemetry.Nop{}
	}
	return s.Recorder
}

// inferDependencies runs the agent inference phase. Every failure mode is
// recoverable: the warnings explain what was skipped and the run proceeds
// on declared edges alone.
func (s *Service) inferDependencies(ctx context.Context, req Request, rec telemetry.Recorder,
	runID string, g *graph.Graph, tasks []*models.Task, keyToID map[string]string,
	planningText string) ([]graph.Edge, []string) {

	output, _, warnings := s.invokeAgent(ctx, req, rec, runID,
		agent.BuildDependencyInferencePrompt(tasks, planningText))
	if output == "" {
		return nil, warnings
	}

	payload, ok := agent.ExtractJSON(output)
	if !ok {
		return nil, append(warnings, "agent dependency response contained no parseable JSON; using declared dependencies only")
	}
	inferences := agent.ParseDependencyInferences(payload)
	if inferences == nil {
		return nil, append(warnings, "agent dependency response had an unexpected shape; using declared dependencies only")
	}

	applied := agent.ApplyInferredDependencies(g, inferences, keyToID)
	warnings = append(warnings, applied.Warnings...)
	return applied.Staged, warnings
}

// agentRanking runs the re-ranking phase, returning a rank map or nil with
// a fallback warning.
func (s *Service) agentRanking(ctx context.Context, req Request, rec telemetry.Recorder,
	runID string, scheduler *Scheduler, g *graph.Graph, keyToID map[string]string,
	planningText string) (map[string]int, []string) {

	// Rank against a provisional pure-heuristic order so the agent sees a
	// sensible baseline.
	provisional := scheduler.Schedule(g)

	output, _, warnings := s.invokeAgent(ctx, req, rec, runID,
		agent.BuildRankingPrompt(provisional.Ordered, planningText))
	if output == "" {
		return nil, warnings
	}

	payload, ok := agent.ExtractJSON(output)
	if !ok {
		return nil, append(warnings, "agent ranking response contained no parseable JSON; falling back to dependency ordering")
	}
	ranks := agent.ParseRanking(payload, keyToID)
	if ranks == nil {
		return nil, append(warnings, "agent ranking response contained no recognizable task keys; falling back to dependency ordering")
	}
	return ranks, warnings
}

// invokeAgent resolves and calls the agent, recording token usage. An empty
// output string signals the caller to skip the phase.
func (s *Service) invokeAgent(ctx context.Context, req Request, rec telemetry.Recorder,
	runID, prompt string) (output, agentID string, warnings []string) {

	if s.Invoker == nil || s.Router == nil {
		return "", "", []string{"no agent configured; skipping agent-assisted ordering"}
	}
	resolved, err := s.Router.ResolveAgentForCommand(req.Workspace, commandName, req.OverrideAgentSlug)
	if err != nil {
		return "", "", []string{fmt.Sprintf("agent resolution failed: %v; skipping agent-assisted ordering", err)}
	}

	areq := agent.Request{
		Input: prompt,
		Metadata: map[string]any{
			"command": commandName,
			"project": req.ProjectKey,
		},
	}

	var resp *agent.Response
	if streamer, ok := s.Invoker.(agent.StreamInvoker); ok && req.StreamSink != nil {
		resp, err = streamer.InvokeStream(ctx, resolved.ID, areq, req.StreamSink)
	} else {
		resp, err = s.Invoker.Invoke(ctx, resolved.ID, areq)
	}
	if err != nil {
		return "", "", []string{fmt.Sprintf("agent invocation failed: %v; skipping agent-assisted ordering", err)}
	}

	rec.RecordTokenUsage(runID, resolved.ID, resp.InputTokens, resp.OutputTokens)
	return resp.Output, resolved.ID, nil
}
