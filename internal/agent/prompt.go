package agent

import (
	"fmt"
	"strings"

	"github.com/mcoda/mcoda/pkg/models"
)

// dependencyInferencePrompt asks the agent to propose missing dependencies.
// The response contract matches what ParseDependencyInferences accepts.
const dependencyInferencePrompt = `You are a planning assistant for a software backlog.
Given the tasks below, identify dependencies that are implied by the work but
not yet declared. Only use task keys from the list. Do not invent tasks.

Respond with a JSON object in this exact format:
{
  "dependencies": [
    {"task_key": "TASK-2", "depends_on": ["TASK-1"]}
  ]
}

Tasks:
`

// rankingPrompt asks the agent to refine tie-breaks in an existing order.
const rankingPrompt = `You are a planning assistant for a software backlog.
The tasks below are already in a dependency-safe order. Suggest a refined
order that keeps every dependency before its dependents. Respond with a JSON
object in this exact format:
{
  "order": [{"task_key": "TASK-1"}, {"task_key": "TASK-2"}]
}

Tasks in current order:
`

// BuildDependencyInferencePrompt renders the inference prompt for a task
// selection, optionally grounded on planning document text.
func BuildDependencyInferencePrompt(tasks []*models.Task, planningContext string) string {
	var b strings.Builder
	b.WriteString(dependencyInferencePrompt)
	writeTaskLines(&b, tasks)
	if planningContext != "" {
		b.WriteString("\nPlanning context:\n")
		b.WriteString(planningContext)
	}
	return b.String()
}

// BuildRankingPrompt renders the re-ranking prompt for an ordered selection.
func BuildRankingPrompt(ordered []*models.Task, planningContext string) string {
	var b strings.Builder
	b.WriteString(rankingPrompt)
	writeTaskLines(&b, ordered)
	if planningContext != "" {
		b.WriteString("\nPlanning context:\n")
		b.WriteString(planningContext)
	}
	return b.String()
}

func writeTaskLines(b *strings.Builder, tasks []*models.Task) {
	for _, task := range tasks {
		fmt.Fprintf(b, "- %s [%s]: %s", task.Key, task.Status, task.Title)
		if task.Description != "" {
			desc := task.Description
			if len(desc) > 200 {
				desc = desc[:200]
			}
			fmt.Fprintf(b, ": %s", desc)
		}
		b.WriteString("\n")
	}
}
