package story

import "time"

// ChapterStatus tracks a chapter document's lifecycle.
type ChapterStatus string

const (
	ChapterStatusDraft    ChapterStatus = "draft"
	ChapterStatusApproved ChapterStatus = "approved"
)

// Chapter is a Document of type CHAPTER, ordered by OrderIndex
// (0-based) and tagged with a 1-based ChapterIndex.
type Chapter struct {
	ID           string        `json:"id" validate:"required"`
	ProjectID    string        `json:"project_id" validate:"required"`
	OrderIndex   int           `json:"order_index"`
	ChapterIndex int           `json:"chapter_index" validate:"required,min=1"`
	Status       ChapterStatus `json:"status" validate:"required,oneof=draft approved"`

	Title   string `json:"title"`
	Content string `json:"content"`
	Summary string `json:"summary"`

	WordCount int `json:"word_count"`

	Plan ChapterPlan `json:"plan"`

	ContinuityValidationHistory []ContinuityValidation `json:"continuity_validation_history,omitempty"`
	PlotPointCoverage           *PlotPointValidation    `json:"plot_point_coverage,omitempty"`

	FailedBeats          int  `json:"failed_beats"`
	DistributedTimedOut  bool `json:"distributed_timed_out"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

// IssueSeverity classifies a detected continuity issue.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityHigh     IssueSeverity = "high"
	SeverityMedium   IssueSeverity = "medium"
	SeverityLow      IssueSeverity = "low"
)

// Issue is a single detected inconsistency, from either the LLM
// consistency analyst or the graph validator.
type Issue struct {
	Type     string        `json:"type"`
	Severity IssueSeverity `json:"severity"`
	Detail   string        `json:"detail"`
}

// ContinuityValidation is the fused result of §4.1.6: the LLM
// consistency analyst plus the graph validator, after severity fusion
// and TrackedContradiction/intentional-mystery filtering.
type ContinuityValidation struct {
	SevereIssues    []Issue `json:"severe_issues"`
	MinorIssues     []Issue `json:"minor_issues"`
	Blocking        bool    `json:"blocking"`
	CoherenceScore  float64 `json:"coherence_score"`
	Summary         string  `json:"summary"`
}

// PlotPointValidation is the result of §4.1.6's plot-point check.
type PlotPointValidation struct {
	CoveredPoints       []string `json:"covered_points"`
	MissingPoints       []string `json:"missing_points"`
	ForbiddenViolations []string `json:"forbidden_violations"`
	CoverageScore       float64  `json:"coverage_score"`
	Explanation         string   `json:"explanation"`
}

// Blocking reports whether this plot-point validation should force a
// revision: any missing required point or forbidden-action violation
// blocks.
func (v PlotPointValidation) IsBlocking() bool {
	return len(v.MissingPoints) > 0 || len(v.ForbiddenViolations) > 0
}

// Critique is the critic phase's scored evaluation.
type Critique struct {
	Score            float64  `json:"score"`
	Issues           []string `json:"issues"`
	Suggestions      []string `json:"suggestions"`
	CliffhangerOK    bool     `json:"cliffhanger_ok"`
	PacingOK         bool     `json:"pacing_ok"`
	ContinuityRisks  []string `json:"continuity_risks"`
}

// Feedback merges issues and suggestions into the feedback list passed
// to the next write iteration.
func (c Critique) Feedback() []string {
	out := make([]string, 0, len(c.Issues)+len(c.Suggestions))
	out = append(out, c.Issues...)
	out = append(out, c.Suggestions...)
	return out
}
