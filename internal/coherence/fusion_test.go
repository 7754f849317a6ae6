package coherence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/story"
)

func TestFuseClassifiesSeverityIntoSevereAndMinor(t *testing.T) {
	result := Fuse(FusionInput{
		AnalystResult: AnalystResult{
			CoherenceScore: 8.0,
			Issues: []story.Issue{
				{Type: "world_rule_violation", Severity: story.SeverityCritical, Detail: "magic broke a stated rule"},
				{Type: "pacing", Severity: story.SeverityLow, Detail: "slow middle act"},
			},
		},
	})

	require.Len(t, result.SevereIssues, 1)
	require.Len(t, result.MinorIssues, 1)
	require.True(t, result.Blocking)
}

func TestFuseBlocksOnLowCoherenceScoreEvenWithoutSevereIssues(t *testing.T) {
	result := Fuse(FusionInput{
		AnalystResult: AnalystResult{CoherenceScore: 4.0},
	})

	require.True(t, result.Blocking)
	require.Empty(t, result.SevereIssues)
}

func TestFuseDoesNotBlockOnGoodScoreWithOnlyMinorIssues(t *testing.T) {
	result := Fuse(FusionInput{
		AnalystResult: AnalystResult{
			CoherenceScore: 8.5,
			Issues:         []story.Issue{{Type: "pacing", Severity: story.SeverityLow, Detail: "a bit slow"}},
		},
	})

	require.False(t, result.Blocking)
}

func TestFuseFiltersIssuesMatchingInactiveTrackedContradiction(t *testing.T) {
	result := Fuse(FusionInput{
		AnalystResult: AnalystResult{
			CoherenceScore: 9.0,
			Issues: []story.Issue{
				{Type: "character_contradiction", Severity: story.SeverityHigh, Detail: "Mira died in ch.3 then appeared alive in ch.9"},
			},
		},
		TrackedContradictions: []story.TrackedContradiction{
			{Type: "character_contradiction", Description: "Mira died in ch.3 then appeared alive in ch.9", Status: story.ContradictionResolved},
		},
	})

	require.Empty(t, result.SevereIssues)
	require.Empty(t, result.MinorIssues)
	require.False(t, result.Blocking)
}

func TestFuseDoesNotFilterActiveTrackedContradictions(t *testing.T) {
	result := Fuse(FusionInput{
		AnalystResult: AnalystResult{
			CoherenceScore: 9.0,
			Issues: []story.Issue{
				{Type: "character_contradiction", Severity: story.SeverityHigh, Detail: "Mira died in ch.3 then appeared alive in ch.9"},
			},
		},
		TrackedContradictions: []story.TrackedContradiction{
			{Type: "character_contradiction", Description: "Mira died in ch.3 then appeared alive in ch.9", Status: story.ContradictionPending},
		},
	})

	require.Len(t, result.SevereIssues, 1)
}

func TestFuseFiltersIssuesMatchingIntentionalMystery(t *testing.T) {
	result := Fuse(FusionInput{
		AnalystResult: AnalystResult{
			CoherenceScore: 9.0,
			Issues: []story.Issue{
				{Type: "character_contradiction", Severity: story.SeverityHigh, Detail: "Orin appears dead in ch.4 but alive in ch.12"},
			},
		},
		IntentionalMysteries: []story.IntentionalMystery{
			{Description: "Orin faked his death", Characters: []string{"Orin"}},
		},
	})

	require.Empty(t, result.SevereIssues)
}
