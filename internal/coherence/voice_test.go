package coherence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/rag"
)

func TestExtractDialoguesFindsQuotedLines(t *testing.T) {
	dialogues := ExtractDialogues(`Elena said, "We should leave now." Orin nodded.`)
	require.Contains(t, dialogues, "We should leave now.")
}

func TestVoiceAnalyzerDisabledReturnsNeutralScore(t *testing.T) {
	analyzer := NewVoiceConsistencyAnalyzer(rag.NewHashEmbedder(32), config.CoherenceConfig{VoiceAnalyzerEnabled: false})

	result := analyzer.Analyze("Elena", []string{"We should leave now."}, nil)
	require.Equal(t, 1.0, result.ConsistencyScore)
	require.False(t, result.AnalysisAvailable)
}

func TestVoiceAnalyzerInsufficientReferenceDialoguesSkipsAnalysis(t *testing.T) {
	analyzer := NewVoiceConsistencyAnalyzer(rag.NewHashEmbedder(32), config.CoherenceConfig{
		VoiceAnalyzerEnabled: true, VoiceMinDialoguesForAnalysis: 5,
	})

	result := analyzer.Analyze("Elena", []string{"We should leave now."}, []string{"one", "two"})
	require.False(t, result.AnalysisAvailable)
	require.Equal(t, "insufficient historical dialogues", result.Reason)
}

func TestVoiceAnalyzerFlagsDriftBelowThreshold(t *testing.T) {
	analyzer := NewVoiceConsistencyAnalyzer(rag.NewHashEmbedder(32), config.CoherenceConfig{
		VoiceAnalyzerEnabled: true, VoiceConsistencyThreshold: 0.9, VoiceMinDialoguesForAnalysis: 1,
	})

	reference := []string{
		"We must hold the line, whatever it costs.",
		"I will not abandon my post.",
		"Courage is all we have left.",
	}
	result := analyzer.Analyze("Elena", []string{"lol whatever, I'm outta here dude"}, reference)
	require.True(t, result.AnalysisAvailable)
	require.True(t, result.DriftDetected)
}
