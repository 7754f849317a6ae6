package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/core"
	"github.com/vampirenirmal/storyforge/internal/phase"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// CollectContextPhase resolves the target word-count range for the
// project (clamped via config.ChapterConfig.Clamp) and the chapter's
// title/summary/emotional-stake, either from an explicit request or
// from the project's accepted Plan entry. Grounded on
// writing_pipeline.py's collect_context.
type CollectContextPhase struct {
	phase.BasePhase
	chapterCfg config.ChapterConfig
}

func NewCollectContextPhase(chapterCfg config.ChapterConfig) *CollectContextPhase {
	return &CollectContextPhase{
		BasePhase:  phase.NewBasePhase("collect_context", 30*time.Second),
		chapterCfg: chapterCfg,
	}
}

func (p *CollectContextPhase) ValidateInput(ctx context.Context, input core.PhaseInput) error {
	state, ok := input.Data.(*PipelineState)
	if !ok || state == nil {
		return fmt.Errorf("collect_context: %w - expected *PipelineState", core.ErrInvalidInput)
	}
	if state.Project == nil {
		return fmt.Errorf("collect_context: %w - project is required", core.ErrInvalidInput)
	}
	return nil
}

func (p *CollectContextPhase) ValidateOutput(ctx context.Context, output core.PhaseOutput) error {
	if output.Error != nil {
		return output.Error
	}
	return nil
}

func (p *CollectContextPhase) Execute(ctx context.Context, input core.PhaseInput) (core.PhaseOutput, error) {
	state := input.Data.(*PipelineState)

	if state.Project.Plan.Status != story.PlanStatusAccepted {
		return core.PhaseOutput{}, newPhaseError(p.Name(), 1, ErrPlanNotAccepted, state)
	}

	if entry := state.planEntry(); entry != nil {
		if state.ChapterTitle == "" {
			state.ChapterTitle = entry.Title
		}
		if state.Summary == "" {
			state.Summary = entry.Summary
		}
	}

	state.TargetWordCount = p.chapterCfg.Clamp(state.TargetWordCount)
	state.MinWordCount = p.chapterCfg.MinWords
	state.MaxWordCount = p.chapterCfg.MaxWords

	return core.PhaseOutput{Data: state}, nil
}
