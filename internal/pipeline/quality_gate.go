package pipeline

import "github.com/vampirenirmal/storyforge/internal/config"

// QualityGateDecision is the conditional-edge outcome of
// writing_pipeline.py's _quality_gate: either loop back to
// write_chapter ("revise") or stop ("done").
type QualityGateDecision string

const (
	GateRevise QualityGateDecision = "revise"
	GateDone   QualityGateDecision = "done"
)

// QualityGate evaluates the same six ordered rules as _quality_gate,
// in the same order. Order matters: max_revisions always wins even
// over a clean validation, so the gate always terminates.
//
// Rule 3 compares story.ContinuityValidation.CoherenceScore, which the
// consistency analyst's JSON schema constrains to [0, 10], against
// config.QualityGateConfig.CoherenceThreshold, which is a [0, 1]
// fraction. storyforge resolves the unit mismatch by scaling the
// coherence score down to [0, 1] before comparing; CoherenceThreshold
// is defined as "coherence score as a fraction of the maximum" rather
// than a second, differently-scaled absolute score. This decision is
// recorded in DESIGN.md's Open Questions.
func QualityGate(state *PipelineState, cfg config.QualityGateConfig) QualityGateDecision {
	if state.RevisionCount >= cfg.MaxRevisions {
		return GateDone
	}

	v := state.ContinuityValidation
	if v.Blocking {
		return GateRevise
	}

	if v.CoherenceScore/10.0 < cfg.CoherenceThreshold {
		return GateRevise
	}

	if len(state.PlotValidation.MissingPoints) > 0 || len(state.PlotValidation.ForbiddenViolations) > 0 {
		return GateRevise
	}

	if state.Critique.Score >= cfg.ScoreThreshold {
		return GateDone
	}

	return GateRevise
}
