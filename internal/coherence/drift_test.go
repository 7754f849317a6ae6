package coherence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/story"
)

func TestCharacterDriftDetectorSkipsCharactersNotMentioned(t *testing.T) {
	srv := anthropicStub(`{"drift_detected": true, "severity": 9, "explanation": "should never be called"}`)
	defer srv.Close()

	client := llm.NewClient("test-key-0123456789", llm.WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""), llm.WithRetry(0))
	detector := NewCharacterDriftDetector(client, config.CoherenceConfig{CharacterDriftEnabled: true})

	findings, score, err := detector.Analyze(context.Background(), "a chapter about someone else entirely", []story.CharacterFact{
		{Name: "Orin", Traits: []string{"stoic"}},
	})
	require.NoError(t, err)
	require.Empty(t, findings)
	require.Zero(t, score)
}

func TestCharacterDriftDetectorComputesAggregateScore(t *testing.T) {
	srv := anthropicStub(`{"drift_detected": true, "severity": 8, "explanation": "Orin acted recklessly out of character"}`)
	defer srv.Close()

	client := llm.NewClient("test-key-0123456789", llm.WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""), llm.WithRetry(0))
	detector := NewCharacterDriftDetector(client, config.CoherenceConfig{CharacterDriftEnabled: true})

	findings, score, err := detector.Analyze(context.Background(), "Orin charged in recklessly, out of nowhere.", []story.CharacterFact{
		{Name: "Orin", Traits: []string{"stoic", "cautious"}},
	})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.True(t, findings[0].DriftDetected)
	require.InDelta(t, 0.8, score, 0.001)
}

func TestCharacterDriftDetectorDisabledReturnsZeroScore(t *testing.T) {
	detector := NewCharacterDriftDetector(nil, config.CoherenceConfig{CharacterDriftEnabled: false})

	findings, score, err := detector.Analyze(context.Background(), "Orin did something.", []story.CharacterFact{{Name: "Orin"}})
	require.NoError(t, err)
	require.Nil(t, findings)
	require.Zero(t, score)
}
