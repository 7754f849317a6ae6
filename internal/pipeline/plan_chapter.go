package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/core"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/phase"
	"github.com/vampirenirmal/storyforge/internal/story"
)

const planSystemPrompt = "You are a serial-fiction planning assistant. Return strict JSON with the keys: chapter_number, scene_beats (3 to 7 scenes), target_emotion, required_plot_points, optional_subplots, arc_constraints, forbidden_actions, success_criteria, cliffhanger_type, estimated_word_count. The cliffhanger must be strong enough to carry a pay-to-read reader into the next chapter. Return only the JSON object."

const planSchemaJSON = `{
	"type": "object",
	"properties": {
		"chapter_number": {"type": "integer"},
		"scene_beats": {"type": "array", "minItems": 3, "maxItems": 7, "items": {"type": "string"}},
		"target_emotion": {"type": "string"},
		"required_plot_points": {"type": "array", "items": {"type": "string"}},
		"optional_subplots": {"type": "array", "items": {"type": "string"}},
		"arc_constraints": {"type": "array", "items": {"type": "string"}},
		"forbidden_actions": {"type": "array", "items": {"type": "string"}},
		"success_criteria": {"type": "array", "items": {"type": "string"}},
		"cliffhanger_type": {"type": "string"},
		"estimated_word_count": {"type": "integer"}
	},
	"required": ["scene_beats"]
}`

var planSchema *jsonschema.Schema

func init() {
	s, err := llm.CompileSchema("chapter-plan.json", []byte(planSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("pipeline: compiling plan schema: %v", err))
	}
	planSchema = s
}

// PlanChapterPhase produces the ChapterPlan for a chapter: reused
// as-is if state.Plan is already set (a pregenerated plan, spec
// §4.1.4), otherwise generated via an LLM call and merged with any
// plan-level constraints from the Project's accepted Plan. Grounded on
// writing_pipeline.py's plan_chapter.
type PlanChapterPhase struct {
	phase.BasePhase
	client        *llm.Client
	planReasoning config.PlanReasoningConfig
}

func NewPlanChapterPhase(client *llm.Client, planReasoning config.PlanReasoningConfig) *PlanChapterPhase {
	return &PlanChapterPhase{
		BasePhase:     phase.NewBasePhase("plan_chapter", 5*time.Minute),
		client:        client,
		planReasoning: planReasoning,
	}
}

func (p *PlanChapterPhase) ValidateInput(ctx context.Context, input core.PhaseInput) error {
	if _, ok := input.Data.(*PipelineState); !ok {
		return fmt.Errorf("plan_chapter: %w - expected *PipelineState", core.ErrInvalidInput)
	}
	return nil
}

func (p *PlanChapterPhase) ValidateOutput(ctx context.Context, output core.PhaseOutput) error {
	if output.Error != nil {
		return output.Error
	}
	state := output.Data.(*PipelineState)
	if state.Plan == nil || len(state.Plan.SceneBeats) < 3 {
		return fmt.Errorf("plan_chapter: %w - fewer than 3 scene beats", core.ErrInvalidInput)
	}
	return nil
}

func (p *PlanChapterPhase) Execute(ctx context.Context, input core.PhaseInput) (core.PhaseOutput, error) {
	state := input.Data.(*PipelineState)

	if state.Plan != nil {
		return core.PhaseOutput{Data: state}, nil
	}

	if pregenerated, ok := state.Project.PregeneratedPlans[state.ChapterIndex]; ok {
		plan := pregenerated
		if entry := state.planEntry(); entry != nil {
			plan.MergeConstraints(*entry)
		}
		state.Plan = &plan
		return core.PhaseOutput{Data: state}, nil
	}

	req := llm.Request{
		System:    planSystemPrompt,
		Prompt:    p.buildPrompt(state),
		MaxTokens: 900,
		Phase:     "plan_chapter",
		Reasoning: p.planReasoning.Applies(state.ChapterIndex, state.Summary+" "+state.ChapterTitle),
	}

	raw, err := p.client.CompleteStructured(ctx, req, planSchema)
	if err != nil {
		return core.PhaseOutput{}, newPhaseError(p.Name(), 1, err, state)
	}

	var payload struct {
		ChapterNumber      int      `json:"chapter_number"`
		SceneBeats         []string `json:"scene_beats"`
		TargetEmotion      string   `json:"target_emotion"`
		RequiredPlotPoints []string `json:"required_plot_points"`
		OptionalSubplots   []string `json:"optional_subplots"`
		ArcConstraints     []string `json:"arc_constraints"`
		ForbiddenActions   []string `json:"forbidden_actions"`
		SuccessCriteria    []string `json:"success_criteria"`
		CliffhangerType    string   `json:"cliffhanger_type"`
		EstimatedWordCount int      `json:"estimated_word_count"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.PhaseOutput{}, newPhaseError(p.Name(), 1, fmt.Errorf("decoding plan response: %w", err), state)
	}

	plan := &story.ChapterPlan{
		ChapterNumber:      state.ChapterIndex,
		SceneBeats:         payload.SceneBeats,
		TargetEmotion:      payload.TargetEmotion,
		RequiredPlotPoints: payload.RequiredPlotPoints,
		OptionalSubplots:   payload.OptionalSubplots,
		ArcConstraints:     payload.ArcConstraints,
		ForbiddenActions:   payload.ForbiddenActions,
		SuccessCriteria:    payload.SuccessCriteria,
		CliffhangerType:    payload.CliffhangerType,
		EstimatedWordCount: payload.EstimatedWordCount,
	}
	if entry := state.planEntry(); entry != nil {
		plan.MergeConstraints(*entry)
	}
	state.Plan = plan

	return core.PhaseOutput{Data: state}, nil
}

func (p *PlanChapterPhase) buildPrompt(state *PipelineState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Genre/premise: %s\n", state.Project.Concept.Premise)
	fmt.Fprintf(&b, "Tone: %s\n", state.Project.Concept.Tone)
	if len(state.Project.Concept.Tropes) > 0 {
		fmt.Fprintf(&b, "Tropes: %s\n", strings.Join(state.Project.Concept.Tropes, ", "))
	}
	fmt.Fprintf(&b, "Global synopsis: %s\n", state.Project.Plan.GlobalSummary)
	fmt.Fprintf(&b, "Chapter index: %d\n", state.ChapterIndex)
	fmt.Fprintf(&b, "Chapter summary: %s\n", state.Summary)
	fmt.Fprintf(&b, "Emotional stake: %s\n", state.EmotionalStake)

	recent := state.Project.RecentChapterSummaries
	if n := len(recent); n > 0 {
		b.WriteString("Recent chapter summaries:\n")
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, s := range recent[start:] {
			fmt.Fprintf(&b, "- %s\n", s.Summary)
		}
	}
	if state.MemoryContext != "" {
		fmt.Fprintf(&b, "Memory context:\n%s\n", state.MemoryContext)
	}
	if entry := state.planEntry(); entry != nil {
		if len(entry.RequiredPlotPoints) > 0 {
			fmt.Fprintf(&b, "Required plot points (global plan): %s\n", strings.Join(entry.RequiredPlotPoints, ", "))
		}
		if len(entry.ForbiddenActions) > 0 {
			fmt.Fprintf(&b, "Forbidden actions (global plan): %s\n", strings.Join(entry.ForbiddenActions, ", "))
		}
		if len(entry.SuccessCriteria) > 0 {
			fmt.Fprintf(&b, "Success criteria (global plan): %s\n", strings.Join(entry.SuccessCriteria, ", "))
		}
	}
	return b.String()
}
