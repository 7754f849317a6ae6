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

const criticSystemPrompt = "Evaluate this chapter for pacing, cliffhanger strength, and coherence. Return strict JSON only."

const criticSchemaJSON = `{
	"type": "object",
	"properties": {
		"score": {"type": "number", "minimum": 0, "maximum": 10},
		"issues": {"type": "array", "items": {"type": "string"}},
		"suggestions": {"type": "array", "items": {"type": "string"}},
		"cliffhanger_ok": {"type": "boolean"},
		"pacing_ok": {"type": "boolean"},
		"continuity_risks": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["score"]
}`

var criticSchema *jsonschema.Schema

func init() {
	s, err := llm.CompileSchema("critic.json", []byte(criticSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("pipeline: compiling critic schema: %v", err))
	}
	criticSchema = s
}

// CriticPhase scores the draft for rhythm, cliffhanger, and coherence,
// feeding issues and suggestions back as revision notes for the next
// write_chapter pass. Grounded on writing_pipeline.py's critic. The
// revision count is incremented here unconditionally, same as Python:
// QualityGate reads the post-increment value.
type CriticPhase struct {
	phase.BasePhase
	client *llm.Client
	trunc  config.TruncationConfig
}

func NewCriticPhase(client *llm.Client, trunc config.TruncationConfig) *CriticPhase {
	return &CriticPhase{
		BasePhase: phase.NewBasePhase("critic", 3*time.Minute),
		client:    client,
		trunc:     trunc,
	}
}

func (p *CriticPhase) ValidateInput(ctx context.Context, input core.PhaseInput) error {
	if _, ok := input.Data.(*PipelineState); !ok {
		return fmt.Errorf("critic: %w - expected *PipelineState", core.ErrInvalidInput)
	}
	return nil
}

func (p *CriticPhase) ValidateOutput(ctx context.Context, output core.PhaseOutput) error {
	return output.Error
}

func (p *CriticPhase) Execute(ctx context.Context, input core.PhaseInput) (core.PhaseOutput, error) {
	state := input.Data.(*PipelineState)

	if strings.TrimSpace(state.Draft) == "" {
		state.Critique = story.Critique{Issues: []string{"No content generated."}}
		state.RevisionCount++
		return core.PhaseOutput{Data: state}, nil
	}

	memoryContext := truncateTail(state.MemoryContext, p.trunc.MemoryContextMaxChars)
	ragChunks := state.RetrievedChunks
	if len(ragChunks) > 3 {
		ragChunks = ragChunks[:3]
	}
	ragBlock := truncateTail(strings.Join(ragChunks, "\n\n"), p.trunc.RAGContextMaxChars)
	text := truncateTail(state.Draft, p.trunc.CriticMaxChars)

	prompt := fmt.Sprintf(
		"Memory context:\n%s\nRelevant excerpts:\n%s\nChapter text:\n%s",
		memoryContext, ragBlock, text,
	)

	raw, err := p.client.CompleteStructured(ctx, llm.Request{
		System: criticSystemPrompt, Prompt: prompt, MaxTokens: 600, Phase: "critic",
	}, criticSchema)
	if err != nil {
		return core.PhaseOutput{}, newPhaseError(p.Name(), 1, err, state)
	}

	var payload struct {
		Score           float64  `json:"score"`
		Issues          []string `json:"issues"`
		Suggestions     []string `json:"suggestions"`
		CliffhangerOK   bool     `json:"cliffhanger_ok"`
		PacingOK        bool     `json:"pacing_ok"`
		ContinuityRisks []string `json:"continuity_risks"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.PhaseOutput{}, newPhaseError(p.Name(), 1, fmt.Errorf("decoding critic response: %w", err), state)
	}

	state.Critique = story.Critique{
		Score:           payload.Score,
		Issues:          payload.Issues,
		Suggestions:     payload.Suggestions,
		CliffhangerOK:   payload.CliffhangerOK,
		PacingOK:        payload.PacingOK,
		ContinuityRisks: payload.ContinuityRisks,
	}
	state.ContinuityAlerts = append(state.ContinuityAlerts, payload.ContinuityRisks...)
	state.RevisionCount++

	return core.PhaseOutput{Data: state}, nil
}
