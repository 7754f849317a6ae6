package coherence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/rag"
)

func TestExtractFactsKeepsSentencesThatLookFactual(t *testing.T) {
	facts := ExtractFacts("Elena is the captain of the ship. It was a dark and stormy night. Hi.")
	require.Contains(t, facts, "Elena is the captain of the ship")
}

func TestSemanticValidatorDetectsPatternContradiction(t *testing.T) {
	embedder := rag.NewHashEmbedder(64)
	validator := NewSemanticValidator(embedder, config.CoherenceConfig{SemanticValidatorEnabled: true, SemanticConflictThreshold: 0.01})

	conflicts := validator.DetectContradictions(
		[]string{"Orin is dead after the battle"},
		[]string{"Orin is very much alive after the battle"},
	)
	require.NotEmpty(t, conflicts)
	require.Equal(t, [2]string{"alive", "dead"}, conflicts[0].Pattern)
}

func TestSemanticValidatorDisabledReturnsNil(t *testing.T) {
	embedder := rag.NewHashEmbedder(64)
	validator := NewSemanticValidator(embedder, config.CoherenceConfig{SemanticValidatorEnabled: false})

	conflicts := validator.DetectContradictions([]string{"Orin is alive"}, []string{"Orin is dead"})
	require.Nil(t, conflicts)
}

func TestSemanticValidatorNoEmbedderDegradesToNoOp(t *testing.T) {
	validator := NewSemanticValidator(nil, config.CoherenceConfig{SemanticValidatorEnabled: true})

	conflicts := validator.DetectContradictions([]string{"Orin is alive"}, []string{"Orin is dead"})
	require.Nil(t, conflicts)
}
