package models

// Stage classifies where a task sits in the build-out of a feature.
type Stage string

const (
	StageFoundation Stage = "foundation"
	StageBackend    Stage = "backend"
	StageFrontend   Stage = "frontend"
	StageOther      Stage = "other"
)

// ParseStage returns the stage for a string and whether it was recognized.
func ParseStage(s string) (Stage, bool) {
	switch Stage(s) {
	case StageFoundation, StageBackend, StageFrontend, StageOther:
		return Stage(s), true
	default:
		return "", false
	}
}

// DefaultStageOrder is the stage precedence used by the scheduler when no
// override is configured.
func DefaultStageOrder() []Stage {
	return []Stage{StageFoundation, StageBackend, StageFrontend, StageOther}
}

// DependencyImpact counts how many tasks a given task unblocks.
type DependencyImpact struct {
	// Direct is the number of immediate in-scope dependents.
	Direct int `json:"direct"`
	// Total is the number of distinct tasks transitively unblocked.
	Total int `json:"total"`
}

// ComplexityBand buckets complexity scores for display and tie-breaking.
type ComplexityBand string

const (
	BandLow      ComplexityBand = "low"
	BandMedium   ComplexityBand = "medium"
	BandHigh     ComplexityBand = "high"
	BandVeryHigh ComplexityBand = "very_high"
)

// BandForScore maps a complexity score onto its band.
func BandForScore(score float64) ComplexityBand {
	switch {
	case score < 12:
		return BandLow
	case score < 24:
		return BandMedium
	case score < 40:
		return BandHigh
	default:
		return BandVeryHigh
	}
}

// OrderingMetadata is the engine-owned sub-object persisted under
// Task.Metadata["ordering"].
type OrderingMetadata struct {
	Stage                 Stage            `json:"stage"`
	Foundation            bool             `json:"foundation"`
	DependencyImpact      DependencyImpact `json:"dependencyImpact"`
	DependencyCount       int              `json:"dependencyCount"`
	ComplexityScore       float64          `json:"complexityScore"`
	ComplexityBand        ComplexityBand   `json:"complexityBand"`
	MissingContextOpen    bool             `json:"missingContextOpen"`
	ClassificationReasons []string         `json:"classificationReasons,omitempty"`
	DocContextSource      string           `json:"docContextSource,omitempty"`
}

// ToMap renders the metadata as a plain map suitable for merging into the
// task's free-form metadata and serializing to JSON.
func (m OrderingMetadata) ToMap() map[string]any {
	out := map[string]any{
		"stage":      string(m.Stage),
		"foundation": m.Foundation,
		"dependencyImpact": map[string]any{
			"direct": m.DependencyImpact.Direct,
			"total":  m.DependencyImpact.Total,
		},
		"dependencyCount":    m.DependencyCount,
		"complexityScore":    m.ComplexityScore,
		"complexityBand":     string(m.ComplexityBand),
		"missingContextOpen": m.MissingContextOpen,
	}
	if len(m.ClassificationReasons) > 0 {
		reasons := make([]any, len(m.ClassificationReasons))
		for i, r := range m.ClassificationReasons {
			reasons[i] = r
		}
		out["classificationReasons"] = reasons
	}
	if m.DocContextSource != "" {
		out["docContextSource"] = m.DocContextSource
	}
	return out
}
