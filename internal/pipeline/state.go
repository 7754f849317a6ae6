package pipeline

import (
	"github.com/vampirenirmal/storyforge/internal/story"
)

// PipelineState is the Go counterpart of writing_pipeline.py's
// NovelState TypedDict: the accumulating state threaded through every
// phase of a single generateChapter call. Phases read what earlier
// phases produced and write their own fields; core.PhaseInput.Data and
// core.PhaseOutput.Data both carry a *PipelineState so the phase chain
// stays compatible with core.Phase without a parallel untyped map.
type PipelineState struct {
	Project *story.Project

	ChapterID    string
	ChapterIndex int
	ChapterTitle string
	Summary      string
	EmotionalStake string
	Instruction  string

	TargetWordCount int
	MinWordCount    int
	MaxWordCount    int

	UseRAG           bool
	AutoApprove      bool

	MemoryContext   string
	RetrievedChunks []string
	StyleChunks     []string

	MentionedCharacters []string

	Plan *story.ChapterPlan

	Draft     string
	BeatTexts []string
	FailedBeats int

	ContinuityValidation story.ContinuityValidation
	PlotValidation       story.PlotPointValidation
	ContinuityAlerts     []string

	Critique      story.Critique
	RevisionCount int
	MaxRevisions  int

	Warnings []DegradedWarning
}

// resolvedPlotConstraints merges the ChapterPlan's own constraints with
// whatever the Project's PlanChapter entry declares, so a plan-level
// requirement is never silently dropped from validation or the writer
// prompt.
func (s *PipelineState) resolvedPlotConstraints() (required, forbidden, success []string) {
	if s.Plan == nil {
		return nil, nil, nil
	}
	return s.Plan.RequiredPlotPoints, s.Plan.ForbiddenActions, s.Plan.SuccessCriteria
}

// planEntry returns the Project's plan-level entry for this chapter,
// if any.
func (s *PipelineState) planEntry() *story.PlanChapter {
	if s.Project == nil {
		return nil
	}
	for i := range s.Project.Plan.Chapters {
		if s.Project.Plan.Chapters[i].ChapterIndex == s.ChapterIndex {
			return &s.Project.Plan.Chapters[i]
		}
	}
	return nil
}
