package ordering

import (
	"sort"

	"github.com/mcoda/mcoda/pkg/models"
)

// AssignTaskPriorities writes dense 1-based priorities across the final
// order, mutating the tasks in place.
func AssignTaskPriorities(ordered []*models.Task) {
	for i, task := range ordered {
		p := i + 1
		task.Priority = &p
	}
}

// GroupPriorities ranks epics and stories by the minimum task priority among
// their tasks. Ranks are 1-based; ties keep the order in which the group
// first appears in the task order.
func GroupPriorities(ordered []*models.Task) (epics map[string]int, stories map[string]int) {
	epics = rankGroups(ordered, func(t *models.Task) string { return t.EpicID })
	stories = rankGroups(ordered, func(t *models.Task) string { return t.StoryID })
	return epics, stories
}

func rankGroups(ordered []*models.Task, keyOf func(*models.Task) string) map[string]int {
	type group struct {
		id    string
		min   int
		first int
	}
	index := make(map[string]*group)
	var groups []*group

	for i, task := range ordered {
		id := keyOf(task)
		if id == "" || task.Priority == nil {
			continue
		}
		g, ok := index[id]
		if !ok {
			g = &group{id: id, min: *task.Priority, first: i}
			index[id] = g
			groups = append(groups, g)
			continue
		}
		if *task.Priority < g.min {
			g.min = *task.Priority
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].min != groups[j].min {
			return groups[i].min < groups[j].min
		}
		return groups[i].first < groups[j].first
	})

	ranks := make(map[string]int, len(groups))
	for i, g := range groups {
		ranks[g.id] = i + 1
	}
	return ranks
}
