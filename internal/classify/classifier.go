// Package classify assigns each task a stage and foundation flag, either
// from explicit task metadata or from text heuristics over its title,
// description, and type.
package classify

import (
	"fmt"
	"strings"

	"github.com/mcoda/mcoda/pkg/models"
)

// Classification is the stage decision for a single task, with the reasons
// that produced it. Reasons are surfaced in ordering metadata.
type Classification struct {
	Stage      models.Stage
	Foundation bool
	Reasons    []string
}

// Keyword groups for the heuristic pass. Matching is case-insensitive over
// title, description, and type.
var (
	foundationKeywords = []string{
		"schema", "migration", "database setup", "scaffold", "bootstrap",
		"infrastructure", "infra", "ci pipeline", "ci/cd", "docker",
		"project setup", "auth framework", "base model", "core model",
		"foundation",
	}
	backendKeywords = []string{
		"api", "endpoint", "service", "handler", "backend", "server",
		"queue", "worker", "repository", "database", "sql", "cron",
		"webhook", "integration",
	}
	frontendKeywords = []string{
		"ui", "frontend", "component", "page", "screen", "view", "css",
		"style", "react", "form", "modal", "layout", "button",
	}
)

// Classify resolves the stage for a task. Explicit metadata wins: a valid
// metadata.stage string is used as-is, with metadata.foundation honored when
// it is a boolean and defaulting to stage == foundation otherwise. Tasks
// without usable metadata fall through to the keyword heuristics.
func Classify(task *models.Task) Classification {
	if c, ok := fromMetadata(task); ok {
		return c
	}
	return fromText(task)
}

// fromMetadata reads an explicit stage decision out of task metadata.
func fromMetadata(task *models.Task) (Classification, bool) {
	if task.Metadata == nil {
		return Classification{}, false
	}
	raw, ok := task.Metadata["stage"].(string)
	if !ok {
		return Classification{}, false
	}
	stage, ok := models.ParseStage(raw)
	if !ok {
		return Classification{}, false
	}

	foundation := stage == models.StageFoundation
	reasons := []string{fmt.Sprintf("stage %q set in task metadata", raw)}
	if explicit, ok := task.Metadata["foundation"].(bool); ok {
		foundation = explicit
		reasons = append(reasons, fmt.Sprintf("foundation=%v set in task metadata", explicit))
	}
	return Classification{Stage: stage, Foundation: foundation, Reasons: reasons}, true
}

// fromText classifies a task by keyword matching. Foundation keywords are
// checked first since foundation work tends to also mention backend terms.
func fromText(task *models.Task) Classification {
	text := strings.ToLower(task.Title + " " + task.Description + " " + task.Type)

	if hit, ok := firstMatch(text, foundationKeywords); ok {
		return Classification{
			Stage:      models.StageFoundation,
			Foundation: true,
			Reasons:    []string{fmt.Sprintf("matched foundation keyword %q", hit)},
		}
	}
	if hit, ok := firstMatch(text, backendKeywords); ok {
		return Classification{
			Stage:   models.StageBackend,
			Reasons: []string{fmt.Sprintf("matched backend keyword %q", hit)},
		}
	}
	if hit, ok := firstMatch(text, frontendKeywords); ok {
		return Classification{
			Stage:   models.StageFrontend,
			Reasons: []string{fmt.Sprintf("matched frontend keyword %q", hit)},
		}
	}
	return Classification{
		Stage:   models.StageOther,
		Reasons: []string{"no stage keywords matched"},
	}
}

func firstMatch(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

// All classifies every task in a selection, keyed by task id.
func All(tasks []*models.Task) map[string]Classification {
	out := make(map[string]Classification, len(tasks))
	for _, task := range tasks {
		out[task.ID] = Classify(task)
	}
	return out
}
