package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vampirenirmal/storyforge/internal/coherence"
	"github.com/vampirenirmal/storyforge/internal/core"
	"github.com/vampirenirmal/storyforge/internal/phase"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// ValidateContinuityPhase runs the LLM consistency analyst and the
// graph validator concurrently, folds in plot-point coverage, and
// fuses everything into one ContinuityValidation. Grounded on
// writing_pipeline.py's validate_continuity, which runs
// ConsistencyAnalyst.execute and _validate_with_graph via
// asyncio.gather, appends plot-point and graph issues, then drops
// anything matching an already-resolved TrackedContradiction.
//
// coherence.Fuse already filters its input issues against resolved
// contradictions and declared intentional mysteries (fusion.go,
// matchesInactiveContradiction/matchesIntentionalMystery), so rather
// than replicate that filter a second time at this layer, plot-point
// issues are folded into FusionInput.GraphIssues before the single
// Fuse call: they go through the exact same filtering and severity
// classification as the graph validator's own findings, instead of a
// redundant second pass.
type ValidateContinuityPhase struct {
	phase.BasePhase
	analyst   *coherence.Analyst
	graph     *coherence.GraphValidator
	plotCheck *PlotPointChecker

	drift     *coherence.CharacterDriftDetector
	pov       *coherence.POVValidator
	semantic  *coherence.SemanticValidator
	voice     *coherence.VoiceConsistencyAnalyzer
	chekhov   *coherence.ChekhovTracker
	voiceRefs func(projectID, character string) []string
}

func NewValidateContinuityPhase(analyst *coherence.Analyst, graph *coherence.GraphValidator, plotCheck *PlotPointChecker) *ValidateContinuityPhase {
	return &ValidateContinuityPhase{
		BasePhase: phase.NewBasePhase("validate_continuity", 5*time.Minute),
		analyst:   analyst,
		graph:     graph,
		plotCheck: plotCheck,
	}
}

// ValidateContinuityOption attaches one of the optional §4.7 coherence
// gates (character drift, POV, semantic, voice, Chekhov) to an already
// constructed phase.
type ValidateContinuityOption func(*ValidateContinuityPhase)

func WithCharacterDrift(d *coherence.CharacterDriftDetector) ValidateContinuityOption {
	return func(p *ValidateContinuityPhase) { p.drift = d }
}

func WithPOVValidator(v *coherence.POVValidator) ValidateContinuityOption {
	return func(p *ValidateContinuityPhase) { p.pov = v }
}

func WithSemanticValidator(v *coherence.SemanticValidator) ValidateContinuityOption {
	return func(p *ValidateContinuityPhase) { p.semantic = v }
}

// WithVoiceAnalyzer attaches the voice-consistency analyzer and the
// callback it uses to fetch a character's previously validated
// dialogue lines for a given project (container wires this to the RAG
// style collection, scoped per-project since voiceRefs is called once
// per chapter validation rather than bound to one project at
// construction time).
func WithVoiceAnalyzer(a *coherence.VoiceConsistencyAnalyzer, refs func(projectID, character string) []string) ValidateContinuityOption {
	return func(p *ValidateContinuityPhase) {
		p.voice = a
		p.voiceRefs = refs
	}
}

func WithChekhovTracker(t *coherence.ChekhovTracker) ValidateContinuityOption {
	return func(p *ValidateContinuityPhase) { p.chekhov = t }
}

func (p *ValidateContinuityPhase) With(opts ...ValidateContinuityOption) *ValidateContinuityPhase {
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ValidateContinuityPhase) ValidateInput(ctx context.Context, input core.PhaseInput) error {
	state, ok := input.Data.(*PipelineState)
	if !ok || strings.TrimSpace(state.Draft) == "" {
		return fmt.Errorf("validate_continuity: %w - a non-empty draft is required", core.ErrInvalidInput)
	}
	return nil
}

func (p *ValidateContinuityPhase) ValidateOutput(ctx context.Context, output core.PhaseOutput) error {
	return output.Error
}

func (p *ValidateContinuityPhase) Execute(ctx context.Context, input core.PhaseInput) (core.PhaseOutput, error) {
	state := input.Data.(*PipelineState)
	state.MentionedCharacters = mentionedCharacters(state.Draft, state.Project.Continuity.Characters)

	type analystOutcome struct {
		result coherence.AnalystResult
		err    error
	}
	type graphOutcome struct {
		issues []story.Issue
		err    error
	}

	analystCh := make(chan analystOutcome, 1)
	graphCh := make(chan graphOutcome, 1)

	go func() {
		result, err := p.analyst.Analyze(ctx, coherence.AnalystInput{
			ChapterText:    state.Draft,
			MemoryContext:  state.MemoryContext,
			StoryBible:     state.Project.Bible,
			RecentChapters: recentSummaryExcerpts(state.Project.RecentChapterSummaries, 5),
		})
		analystCh <- analystOutcome{result, err}
	}()

	go func() {
		issues, err := p.graph.Validate(ctx, coherence.GraphValidatorInput{
			ProjectID:           state.Project.ID,
			ChapterIndex:        state.ChapterIndex,
			MentionedCharacters: state.MentionedCharacters,
		})
		graphCh <- graphOutcome{issues, err}
	}()

	analystResult := <-analystCh
	graphResult := <-graphCh

	if analystResult.err != nil {
		return core.PhaseOutput{}, newPhaseError(p.Name(), 1, analystResult.err, state)
	}
	if graphResult.err != nil {
		return core.PhaseOutput{}, newPhaseError(p.Name(), 1, graphResult.err, state)
	}

	graphIssues := graphResult.issues

	required, forbidden, _ := state.resolvedPlotConstraints()
	if p.plotCheck != nil {
		validation, err := p.plotCheck.Check(ctx, state.Draft, required, forbidden)
		if err != nil {
			state.Warnings = append(state.Warnings, DegradedWarning{Source: "plot_point_check", Detail: err.Error()})
		} else {
			state.PlotValidation = validation
			graphIssues = append(graphIssues, plotPointIssues(validation)...)
		}
	}

	graphIssues = append(graphIssues, p.runExtendedGates(ctx, state)...)

	state.ContinuityValidation = coherence.Fuse(coherence.FusionInput{
		AnalystResult:         analystResult.result,
		GraphIssues:           graphIssues,
		TrackedContradictions: state.Project.Contradictions,
		IntentionalMysteries:  state.Project.Concept.IntentionalMysteries,
	})

	if state.PlotValidation.IsBlocking() {
		state.ContinuityValidation.Blocking = true
	}

	return core.PhaseOutput{Data: state}, nil
}

// runExtendedGates runs every attached optional §4.7 coherence gate
// and converts its findings into story.Issue so they flow through the
// same Fuse call as the analyst and graph validator. Each gate is
// independently optional and skipped when not attached, so a phase
// built with only NewValidateContinuityPhase behaves exactly as
// before this was added.
func (p *ValidateContinuityPhase) runExtendedGates(ctx context.Context, state *PipelineState) []story.Issue {
	var issues []story.Issue

	if p.drift != nil {
		findings, _, err := p.drift.Analyze(ctx, state.Draft, state.Project.Continuity.Characters)
		if err != nil {
			state.Warnings = append(state.Warnings, DegradedWarning{Source: "character_drift", Detail: err.Error()})
		}
		for _, f := range findings {
			if !f.DriftDetected {
				continue
			}
			severity := story.SeverityMedium
			if f.Severity >= 8 {
				severity = story.SeverityHigh
			}
			issues = append(issues, story.Issue{
				Type: "character_drift", Severity: severity,
				Detail: fmt.Sprintf("%s: %s", f.Character, f.Explanation),
			})
		}
	}

	if p.pov != nil {
		result, err := p.pov.Validate(ctx, state.Draft, state.Project.Concept.POVCharacter, state.Project.Concept.POVType, state.Project.Bible.EstablishedFacts)
		if err != nil {
			state.Warnings = append(state.Warnings, DegradedWarning{Source: "pov_validator", Detail: err.Error()})
		} else {
			issues = append(issues, result.Issues...)
		}
	}

	if p.semantic != nil {
		newFacts := coherence.ExtractFacts(state.Draft)
		conflicts := p.semantic.DetectContradictions(newFacts, state.Project.Bible.EstablishedFacts)
		for _, c := range conflicts {
			issues = append(issues, story.Issue{
				Type: "semantic_contradiction", Severity: c.Severity,
				Detail: fmt.Sprintf("%q conflicts with established fact %q", c.NewFact, c.EstablishedFact),
			})
		}
	}

	if p.voice != nil && p.voiceRefs != nil {
		projectID := state.Project.ID
		refs := func(character string) []string { return p.voiceRefs(projectID, character) }
		analyses := p.voice.AnalyzeChapter(state.Draft, state.MentionedCharacters, refs)
		for character, a := range analyses {
			if !a.DriftDetected {
				continue
			}
			issues = append(issues, story.Issue{
				Type: "voice_drift", Severity: story.SeverityMedium,
				Detail: fmt.Sprintf("%s: dialogue consistency score %.2f below threshold (%s)", character, a.ConsistencyScore, a.Reason),
			})
		}
	}

	if p.chekhov != nil {
		alerts := p.chekhov.CheckUnresolved(state.Project.ChekhovGuns, state.ChapterIndex, 0, 0)
		for _, a := range alerts {
			issues = append(issues, story.Issue{
				Type: "chekhov_overdue", Severity: a.Severity,
				Detail: fmt.Sprintf("%s (%s) waiting %d chapters: %s", a.Element, a.ElementType, a.ChaptersWaiting, a.Recommendation),
			})
		}
	}

	return issues
}

// plotPointIssues converts a plot-point validation's gaps into blocking
// story.Issue entries so they flow through coherence.Fuse's ordinary
// severity and resolved-contradiction filtering alongside graph issues.
func plotPointIssues(v story.PlotPointValidation) []story.Issue {
	issues := make([]story.Issue, 0, len(v.MissingPoints)+len(v.ForbiddenViolations))
	for _, pt := range v.MissingPoints {
		issues = append(issues, story.Issue{
			Type: "missing_plot_point", Severity: story.SeverityCritical,
			Detail: fmt.Sprintf("required plot point not covered: %s", pt),
		})
	}
	for _, a := range v.ForbiddenViolations {
		issues = append(issues, story.Issue{
			Type: "forbidden_action", Severity: story.SeverityCritical,
			Detail: fmt.Sprintf("forbidden action occurred: %s", a),
		})
	}
	return issues
}

// mentionedCharacters scans the draft for any tracked character name,
// mirroring the lightweight substring detection the memory/continuity
// layer already uses rather than a second LLM call just to list names.
func mentionedCharacters(draft string, known []story.CharacterFact) []string {
	lower := strings.ToLower(draft)
	var out []string
	for _, c := range known {
		if c.Name != "" && strings.Contains(lower, strings.ToLower(c.Name)) {
			out = append(out, c.Name)
		}
	}
	return out
}

// recentSummaryExcerpts returns the summary text of the last n approved
// chapters, the closest available stand-in for
// writing_pipeline.py's last-five-chapter excerpt block without
// re-fetching full chapter content for every validation call.
func recentSummaryExcerpts(summaries []story.ChapterSummary, n int) []string {
	start := len(summaries) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(summaries)-start)
	for _, s := range summaries[start:] {
		out = append(out, s.Summary)
	}
	return out
}
