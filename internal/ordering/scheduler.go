package ordering

import (
	"math"
	"sort"

	"github.com/mcoda/mcoda/internal/graph"
	"github.com/mcoda/mcoda/pkg/models"
)

// TaskInfo carries the derived sort keys for a single task. The service
// layer assembles these from the classifier, impact analyzer, enricher, and
// hierarchy rows before scheduling.
type TaskInfo struct {
	EpicPriority       *int
	StoryPriority      *int
	MissingContextOpen bool
	Foundation         bool
	Stage              models.Stage
	ImpactTotal        int
	Complexity         float64
}

// Scheduler produces a deterministic, dependency-respecting task order.
type Scheduler struct {
	// StageOrder is the configured stage precedence; nil means the default.
	StageOrder []models.Stage
	// Info holds derived keys per task id. Missing entries sort with zero
	// values.
	Info map[string]TaskInfo
	// AgentRank maps task id to an agent-provided rank. Nil disables the
	// agent tie-break; tasks absent from a non-nil map sort after ranked
	// ones.
	AgentRank map[string]int
}

// ScheduleResult is the scheduler output. Ordered always contains every
// input task; cycle members are appended at the end, comparator-sorted.
type ScheduleResult struct {
	Ordered      []*models.Task
	Cycle        bool
	CycleMembers map[string]struct{}
}

// Schedule runs Kahn's algorithm over the graph. The ready list is re-sorted
// with the full comparator after every change, which keeps tie-break order
// exact at backlog scale. If a cycle prevents some tasks from being placed
// they are flagged and appended rather than dropped.
func (s *Scheduler) Schedule(g *graph.Graph) ScheduleResult {
	indegree := make(map[string]int, len(g.Order))
	for _, id := range g.Order {
		indegree[id] = len(g.Nodes[id].Dependencies)
	}

	var ready []string
	for _, id := range g.Order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	s.sortIDs(g, ready)

	res := ScheduleResult{CycleMembers: make(map[string]struct{})}
	placed := make(map[string]struct{}, len(g.Order))

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		res.Ordered = append(res.Ordered, g.Nodes[id].Task)
		placed[id] = struct{}{}

		for _, dep := range g.Dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		s.sortIDs(g, ready)
	}

	if len(res.Ordered) < len(g.Order) {
		res.Cycle = true
		var rest []string
		for _, id := range g.Order {
			if _, ok := placed[id]; !ok {
				rest = append(rest, id)
				res.CycleMembers[id] = struct{}{}
			}
		}
		s.sortIDs(g, rest)
		for _, id := range rest {
			res.Ordered = append(res.Ordered, g.Nodes[id].Task)
		}
	}

	return res
}

func (s *Scheduler) sortIDs(g *graph.Graph, ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return s.Less(g.Nodes[ids[i]].Task, g.Nodes[ids[j]].Task)
	})
}

// Less is the scheduling comparator. Keys apply in strict precedence; the
// task key comparison at the end makes the order total.
func (s *Scheduler) Less(a, b *models.Task) bool {
	ia, ib := s.Info[a.ID], s.Info[b.ID]

	if c := compareNullableInt(ia.EpicPriority, ib.EpicPriority); c != 0 {
		return c < 0
	}
	if c := compareNullableInt(ia.StoryPriority, ib.StoryPriority); c != 0 {
		return c < 0
	}
	// Tasks with an open missing-context flag sort after the rest.
	if ia.MissingContextOpen != ib.MissingContextOpen {
		return !ia.MissingContextOpen
	}
	// Foundation work sorts first.
	if ia.Foundation != ib.Foundation {
		return ia.Foundation
	}
	if c := s.stageIndex(ia.Stage) - s.stageIndex(ib.Stage); c != 0 {
		return c < 0
	}
	// Highest unlock value first.
	if ia.ImpactTotal != ib.ImpactTotal {
		return ia.ImpactTotal > ib.ImpactTotal
	}
	if ia.Complexity != ib.Complexity {
		return ia.Complexity > ib.Complexity
	}
	if c := s.compareAgentRank(a.ID, b.ID); c != 0 {
		return c < 0
	}
	if c := compareNullableInt(a.Priority, b.Priority); c != 0 {
		return c < 0
	}
	if c := compareStoryPoints(a.StoryPoints, b.StoryPoints); c != 0 {
		return c < 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if ra, rb := a.Status.Rank(), b.Status.Rank(); ra != rb {
		return ra < rb
	}
	return a.Key < b.Key
}

// stageIndex resolves a stage to its position in the configured order.
// Stages outside the configured order sort last.
func (s *Scheduler) stageIndex(stage models.Stage) int {
	order := s.StageOrder
	if len(order) == 0 {
		order = models.DefaultStageOrder()
	}
	for i, st := range order {
		if st == stage {
			return i
		}
	}
	return len(order)
}

func (s *Scheduler) compareAgentRank(a, b string) int {
	if s.AgentRank == nil {
		return 0
	}
	ra, oka := s.AgentRank[a]
	rb, okb := s.AgentRank[b]
	switch {
	case oka && okb:
		return ra - rb
	case oka:
		return -1
	case okb:
		return 1
	default:
		return 0
	}
}

// compareNullableInt orders ascending with nil last.
func compareNullableInt(a, b *int) int {
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

// compareStoryPoints orders ascending with nil and non-finite values last.
func compareStoryPoints(a, b *float64) int {
	va, oka := finitePoints(a)
	vb, okb := finitePoints(b)
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return 1
	case !okb:
		return -1
	case va < vb:
		return -1
	case va > vb:
		return 1
	default:
		return 0
	}
}

func finitePoints(p *float64) (float64, bool) {
	if p == nil || math.IsInf(*p, 0) || math.IsNaN(*p) {
		return 0, false
	}
	return *p, true
}
