package ordering

import (
	"math"

	"github.com/mcoda/mcoda/internal/classify"
	"github.com/mcoda/mcoda/pkg/models"
)

// stageWeight scales the text-length contribution of the complexity score.
func stageWeight(stage models.Stage) float64 {
	switch stage {
	case models.StageBackend:
		return 2
	case models.StageFrontend:
		return 1.5
	case models.StageFoundation:
		return 1.2
	default:
		return 1
	}
}

// ComplexityScore estimates task difficulty from story points, unlock value,
// dependency count, text volume, and flags. The result is at least 1 and
// rounded to two decimals.
func ComplexityScore(task *models.Task, stage models.Stage, foundation bool,
	impactTotal, dependencyCount int, missingContextOpen bool) float64 {

	textLen := len(task.Title) + len(task.Description)
	textWeight := math.Min(6, math.Ceil(float64(textLen)/200))

	var points float64
	if task.StoryPoints != nil && !math.IsInf(*task.StoryPoints, 0) && !math.IsNaN(*task.StoryPoints) {
		points = *task.StoryPoints
	}

	score := points*5 +
		float64(impactTotal)*3 +
		float64(dependencyCount)*2 +
		textWeight*stageWeight(stage)
	if foundation {
		score += 2
	}
	if missingContextOpen {
		score += 4
	}
	score = math.Max(1, score)
	return math.Round(score*100) / 100
}

// Enrich computes the full ordering metadata for one task. docSource is the
// id of the planning document used for agent context, empty when none was.
func Enrich(task *models.Task, c classify.Classification,
	impact models.DependencyImpact, dependencyCount int,
	missingContextOpen bool, docSource string) models.OrderingMetadata {

	score := ComplexityScore(task, c.Stage, c.Foundation, impact.Total,
		dependencyCount, missingContextOpen)

	return models.OrderingMetadata{
		Stage:                 c.Stage,
		Foundation:            c.Foundation,
		DependencyImpact:      impact,
		DependencyCount:       dependencyCount,
		ComplexityScore:       score,
		ComplexityBand:        models.BandForScore(score),
		MissingContextOpen:    missingContextOpen,
		ClassificationReasons: c.Reasons,
		DocContextSource:      docSource,
	}
}

// MergeOrderingMetadata writes the ordering sub-object onto the task's
// metadata map, replacing any previous ordering block but leaving the rest
// of the map alone.
func MergeOrderingMetadata(task *models.Task, meta models.OrderingMetadata) {
	if task.Metadata == nil {
		task.Metadata = make(map[string]any)
	}
	task.Metadata["ordering"] = meta.ToMap()
}
