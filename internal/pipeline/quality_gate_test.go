package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/story"
)

func testGateConfig() config.QualityGateConfig {
	return config.QualityGateConfig{MaxRevisions: 3, ScoreThreshold: 7.0, CoherenceThreshold: 0.75}
}

func TestQualityGateDoneWhenRevisionCountReachesMax(t *testing.T) {
	state := &PipelineState{
		RevisionCount: 3,
		ContinuityValidation: story.ContinuityValidation{Blocking: true, CoherenceScore: 0},
		Critique:      story.Critique{Score: 0},
	}
	require.Equal(t, GateDone, QualityGate(state, testGateConfig()))
}

func TestQualityGateRevisesOnBlockingValidation(t *testing.T) {
	state := &PipelineState{
		ContinuityValidation: story.ContinuityValidation{Blocking: true, CoherenceScore: 9.0},
		Critique:              story.Critique{Score: 9.0},
	}
	require.Equal(t, GateRevise, QualityGate(state, testGateConfig()))
}

func TestQualityGateRevisesOnLowCoherenceScore(t *testing.T) {
	state := &PipelineState{
		ContinuityValidation: story.ContinuityValidation{Blocking: false, CoherenceScore: 5.0},
		Critique:              story.Critique{Score: 9.0},
	}
	require.Equal(t, GateRevise, QualityGate(state, testGateConfig()))
}

func TestQualityGateRevisesOnMissingPlotPoints(t *testing.T) {
	state := &PipelineState{
		ContinuityValidation: story.ContinuityValidation{Blocking: false, CoherenceScore: 9.0},
		PlotValidation:        story.PlotPointValidation{MissingPoints: []string{"the reveal"}},
		Critique:              story.Critique{Score: 9.0},
	}
	require.Equal(t, GateRevise, QualityGate(state, testGateConfig()))
}

func TestQualityGateDoneWhenEverythingPasses(t *testing.T) {
	state := &PipelineState{
		ContinuityValidation: story.ContinuityValidation{Blocking: false, CoherenceScore: 9.0},
		Critique:              story.Critique{Score: 8.0},
	}
	require.Equal(t, GateDone, QualityGate(state, testGateConfig()))
}

func TestQualityGateRevisesWhenCriticScoreBelowThreshold(t *testing.T) {
	state := &PipelineState{
		ContinuityValidation: story.ContinuityValidation{Blocking: false, CoherenceScore: 9.0},
		Critique:              story.Critique{Score: 4.0},
	}
	require.Equal(t, GateRevise, QualityGate(state, testGateConfig()))
}

func TestQualityGateAlwaysTerminatesWithinMaxRevisions(t *testing.T) {
	cfg := testGateConfig()
	state := &PipelineState{
		ContinuityValidation: story.ContinuityValidation{Blocking: true, CoherenceScore: 0},
		Critique:              story.Critique{Score: 0},
	}
	for state.RevisionCount = 0; state.RevisionCount < cfg.MaxRevisions; state.RevisionCount++ {
		require.Equal(t, GateRevise, QualityGate(state, cfg))
	}
	require.Equal(t, GateDone, QualityGate(state, cfg))
}
