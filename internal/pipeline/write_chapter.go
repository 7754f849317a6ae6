package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/core"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/phase"
)

// BeatDispatcher is the distributed-beat escape hatch: when non-nil and config.BeatConfig.
// DistributedBeats is set, WriteChapterPhase tries it first and falls
// back to in-process parallel beats on any error, exactly as
// writing_pipeline.py's write_chapter falls through from Celery to
// asyncio.gather on failure. internal/queue provides the concrete
// implementation; a nil dispatcher here (e.g. in tests, or a process
// running without the queue wired up) always falls through.
type BeatDispatcher interface {
	DispatchBeats(ctx context.Context, beats []string, basePrompt string, targetWords, minBeatWords int) (chapterText string, beatTexts []string, ok bool)
}

// WriteChapterPhase generates the chapter draft from state.Plan's
// scene beats, choosing among four strategies in the same priority
// order as writing_pipeline.py's write_chapter: partial revision (only
// the last beat is rewritten, if this is a revision and all prior
// beats already exist), distributed dispatch, in-process parallel, and
// sequential-with-early-stop as the final fallback.
type WriteChapterPhase struct {
	phase.BasePhase
	client     *llm.Client
	cfg        config.BeatConfig
	dispatcher BeatDispatcher
	logger     *slog.Logger
}

func NewWriteChapterPhase(client *llm.Client, cfg config.BeatConfig, dispatcher BeatDispatcher) *WriteChapterPhase {
	return &WriteChapterPhase{
		BasePhase:  phase.NewBasePhase("write_chapter", 20*time.Minute),
		client:     client,
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     slog.Default().With("component", "write_chapter"),
	}
}

func (p *WriteChapterPhase) ValidateInput(ctx context.Context, input core.PhaseInput) error {
	state, ok := input.Data.(*PipelineState)
	if !ok || state.Plan == nil {
		return fmt.Errorf("write_chapter: %w - a ChapterPlan is required", core.ErrInvalidInput)
	}
	return nil
}

func (p *WriteChapterPhase) ValidateOutput(ctx context.Context, output core.PhaseOutput) error {
	return output.Error
}

func (p *WriteChapterPhase) Execute(ctx context.Context, input core.PhaseInput) (core.PhaseOutput, error) {
	state := input.Data.(*PipelineState)
	beats := state.Plan.SceneBeats
	if len(beats) == 0 {
		beats = []string{"Setup", "Rising tension", "Cliffhanger reveal"}
	}

	target := state.TargetWordCount
	if target == 0 {
		target = state.Plan.EstimatedWordCount
	}
	if target < state.MinWordCount {
		target = state.MinWordCount
	} else if target > state.MaxWordCount && state.MaxWordCount > 0 {
		target = state.MaxWordCount
	}

	perBeatTarget := maxInt(p.cfg.MinBeatWords, int(float64(target)/float64(len(beats))*0.85))
	basePrompt := p.buildBasePrompt(state, target)
	beatOutline := buildBeatsOutline(beats)

	if p.cfg.PartialRevision && state.RevisionCount > 0 && len(state.BeatTexts) == len(beats) {
		text, beatTexts := p.runPartialRevision(ctx, state, beats, basePrompt, beatOutline, target, perBeatTarget)
		state.Draft = text
		state.BeatTexts = beatTexts
		return core.PhaseOutput{Data: state}, nil
	}

	if p.cfg.DistributedBeats && len(beats) > 1 && p.dispatcher != nil {
		if text, beatTexts, ok := p.dispatcher.DispatchBeats(ctx, beats, basePrompt+"\n"+beatOutline+"\n", target, p.cfg.MinBeatWords); ok {
			state.Draft = text
			state.BeatTexts = beatTexts
			return core.PhaseOutput{Data: state}, nil
		}
		p.logger.Warn("distributed beat generation unavailable, falling back to parallel")
	}

	if p.cfg.ParallelBeats && len(beats) > 1 {
		works := make([]beatWork, len(beats))
		for idx, beat := range beats {
			currentWords := int(float64(perBeatTarget) * float64(idx))
			remaining := maxInt(target-currentWords, 0)
			beatTarget := remaining
			if remaining == 0 {
				beatTarget = perBeatTarget
			}
			beatTarget = maxInt(p.cfg.MinBeatWords, minInt(perBeatTarget, beatTarget))
			works[idx] = beatWork{
				Index: idx, Beat: beat, BasePrompt: basePrompt, BeatOutline: beatOutline,
				TotalBeats: len(beats), TargetWords: beatTarget,
				Continuation: "Assume earlier scenes are already written; begin this scene directly.",
			}
		}
		texts, failed, err := runBeatsParallel(ctx, p.client, works, 0, p.cfg)
		if err != nil {
			return core.PhaseOutput{}, newPhaseError(p.Name(), 1, err, state)
		}
		logDegradedBeats(p.logger, failed, len(beats))
		state.FailedBeats = failed
		state.BeatTexts = texts
		state.Draft = joinNonEmpty(texts)
		return core.PhaseOutput{Data: state}, nil
	}

	texts, failed, content := runBeatsSequential(ctx, p.client, beats, basePrompt, beatOutline, target, p.cfg.MinBeatWords, perBeatTarget, p.cfg.EarlyStopRatio, p.cfg)
	logDegradedBeats(p.logger, failed, len(beats))
	state.FailedBeats = failed
	state.BeatTexts = texts
	state.Draft = content

	return core.PhaseOutput{Data: state}, nil
}

func (p *WriteChapterPhase) runPartialRevision(ctx context.Context, state *PipelineState, beats []string, basePrompt, beatOutline string, target, perBeatTarget int) (string, []string) {
	previous := state.BeatTexts[:len(state.BeatTexts)-1]
	previousBlock := truncateTail(strings.Join(previous, "\n\n"), p.cfg.PreviousBeatsMaxChars)
	currentWords := countWords(strings.Join(previous, "\n\n"))
	remaining := maxInt(target-currentWords, 0)
	beatTarget := remaining
	if remaining == 0 {
		beatTarget = perBeatTarget
	}
	beatTarget = maxInt(p.cfg.MinBeatWords, beatTarget)

	w := beatWork{
		Index: len(beats) - 1, Beat: beats[len(beats)-1], BasePrompt: basePrompt, BeatOutline: beatOutline,
		TotalBeats: len(beats), TargetWords: beatTarget, PreviousBlock: previousBlock,
		Continuation: "Assume earlier scenes are already written; begin this scene directly.",
	}
	text, err := p.client.Complete(ctx, llm.Request{
		System: writerSystemPrompt, Prompt: buildBeatPrompt(w),
		MaxTokens: maxTokensForWords(beatTarget, p.cfg), Phase: fmt.Sprintf("write_chapter.beat_%d", len(beats)),
	})
	text = strings.TrimSpace(text)

	updated := append([]string(nil), state.BeatTexts...)
	if text != "" {
		updated[len(updated)-1] = text
	}
	if err != nil {
		p.logger.Warn("partial beat revision failed, keeping previous text for this beat", "error", err)
	}
	return joinNonEmpty(updated), updated
}

func (p *WriteChapterPhase) buildBasePrompt(state *PipelineState, target int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the next chapter of a serial-fiction novel. Short paragraphs for mobile reading. End on a strong cliffhanger with a complete sentence.\n")
	fmt.Fprintf(&b, "Primary target: about %d words.\n", target)
	fmt.Fprintf(&b, "Acceptable range: %d-%d words. Stay within this range.\n", state.MinWordCount, state.MaxWordCount)
	fmt.Fprintf(&b, "Chapter title: %s\n", state.ChapterTitle)
	fmt.Fprintf(&b, "Chapter summary: %s\n", state.Summary)
	fmt.Fprintf(&b, "Emotional stake: %s\n", state.EmotionalStake)
	fmt.Fprintf(&b, "Target emotion: %s\n", state.Plan.TargetEmotion)
	fmt.Fprintf(&b, "Cliffhanger type: %s\n", state.Plan.CliffhangerType)
	fmt.Fprintf(&b, "Premise: %s\n", state.Project.Concept.Premise)
	fmt.Fprintf(&b, "Tone: %s\n", state.Project.Concept.Tone)
	if len(state.Project.Concept.Tropes) > 0 {
		fmt.Fprintf(&b, "Tropes: %s\n", strings.Join(state.Project.Concept.Tropes, ", "))
	}

	if len(state.Plan.RequiredPlotPoints) > 0 {
		b.WriteString("Required plot points:\n")
		for _, pt := range state.Plan.RequiredPlotPoints {
			fmt.Fprintf(&b, "- %s\n", pt)
		}
	}
	if len(state.Plan.ForbiddenActions) > 0 {
		b.WriteString("Forbidden actions:\n")
		for _, a := range state.Plan.ForbiddenActions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	if len(state.Plan.SuccessCriteria) > 0 {
		fmt.Fprintf(&b, "Success criteria: %s\n", strings.Join(state.Plan.SuccessCriteria, "; "))
	}

	if state.MemoryContext != "" {
		fmt.Fprintf(&b, "Memory context:\n%s\n", state.MemoryContext)
	}
	if len(state.StyleChunks) > 0 {
		fmt.Fprintf(&b, "Style references:\n%s\n", strings.Join(state.StyleChunks, "\n"))
	}
	if len(state.RetrievedChunks) > 0 {
		fmt.Fprintf(&b, "Relevant excerpts:\n%s\n", strings.Join(state.RetrievedChunks, "\n\n"))
	}

	var notes []string
	notes = append(notes, state.Critique.Feedback()...)
	if len(state.PlotValidation.MissingPoints) > 0 {
		notes = append(notes, fmt.Sprintf("MISSING REQUIRED PLOT POINTS TO ADD: %s", strings.Join(state.PlotValidation.MissingPoints, ", ")))
	}
	if len(state.PlotValidation.ForbiddenViolations) > 0 {
		notes = append(notes, fmt.Sprintf("FORBIDDEN ACTIONS TO AVOID: %s", strings.Join(state.PlotValidation.ForbiddenViolations, ", ")))
	}
	if state.Instruction != "" {
		notes = append(notes, state.Instruction)
	}
	if len(notes) > 0 {
		b.WriteString("Revision notes:\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}

	return b.String()
}

func joinNonEmpty(parts []string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
