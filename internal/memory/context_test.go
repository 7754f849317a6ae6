package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/story"
)

func sampleFacts() story.ContinuityFacts {
	return story.ContinuityFacts{
		Characters: []story.CharacterFact{
			{Name: "Elena Voss", Role: "protagonist", CurrentState: "determined", ArcStage: "rising"},
			{Name: "Orin", Role: "mentor", CurrentState: "wary"},
		},
		Events: []story.EventFact{
			{Name: "The Betrayal", Summary: "Orin reveals his past.", ChapterIndex: 8, UnresolvedThreads: []string{"who sent the letter"}},
			{Name: "Old News", Summary: "Ancient history.", ChapterIndex: 1},
		},
		Relations: []story.RelationFact{
			{From: "Elena Voss", To: "Orin", Type: "mentor", CurrentState: "strained"},
		},
	}
}

func TestSmartContextTruncatorIncludesAllSectionsWithinBudget(t *testing.T) {
	trunc := NewSmartContextTruncator(8000)
	block := trunc.Build(TruncatorInput{Facts: sampleFacts(), ChapterIndex: 10})

	require.Contains(t, block, "## Characters")
	require.Contains(t, block, "## Recent Events")
	require.Contains(t, block, "## Relations")
	require.Contains(t, block, "## Unresolved Threads")
	require.LessOrEqual(t, len(block), 8000)
}

func TestSmartContextTruncatorRecentEventsFiltersByChapterWindow(t *testing.T) {
	trunc := NewSmartContextTruncator(8000)
	block := trunc.Build(TruncatorInput{Facts: sampleFacts(), ChapterIndex: 10})

	require.Contains(t, block, "The Betrayal")
	require.NotContains(t, block, "Old News")
}

func TestSmartContextTruncatorFiltersToKnownCharacters(t *testing.T) {
	trunc := NewSmartContextTruncator(8000)
	block := trunc.Build(TruncatorInput{
		Facts: sampleFacts(), ChapterIndex: 10, KnownCharacters: []string{"Elena Voss"},
	})

	require.Contains(t, block, "Elena Voss")
	require.NotContains(t, block, "Orin (mentor)")
}

func TestSmartContextTruncatorRespectsMaxChars(t *testing.T) {
	trunc := NewSmartContextTruncator(120)
	block := trunc.Build(TruncatorInput{Facts: sampleFacts(), ChapterIndex: 10})

	require.LessOrEqual(t, len(block), 120)
}

func TestClipToBudgetTruncatesWithEllipsis(t *testing.T) {
	clipped, used := clipToBudget("this is a long string that needs clipping", 10)
	require.LessOrEqual(t, len(clipped), 10)
	require.Equal(t, len(clipped), used)
	require.Contains(t, clipped, "...")
}

func TestClipToBudgetReturnsWholeStringWhenItFits(t *testing.T) {
	clipped, used := clipToBudget("short", 100)
	require.Equal(t, "short", clipped)
	require.Equal(t, 5, used)
}
