package coherence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/memory"
	"github.com/vampirenirmal/storyforge/internal/story"
)

func newTestGraph(t *testing.T) *memory.Graph {
	t.Helper()
	g, err := memory.NewGraph(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGraphValidatorSurfacesContradictionsAndOrphans(t *testing.T) {
	graph := newTestGraph(t)
	ctx := context.Background()

	err := graph.Upsert(ctx, "proj-1", story.ContinuityFacts{
		Characters: []story.CharacterFact{
			{
				Name: "Mira",
				StatusHistory: []story.StatusChange{
					{Value: "dead", ChapterIndex: 3},
					{Value: "alive", ChapterIndex: 9},
				},
			},
		},
		Events: []story.EventFact{
			{Name: "The Lost Key", ChapterIndex: 1, UnresolvedThreads: []string{"who took the key"}},
		},
	})
	require.NoError(t, err)

	queries := memory.NewQueries(graph)
	validator := NewGraphValidator(queries)

	issues, err := validator.Validate(ctx, GraphValidatorInput{
		ProjectID: "proj-1", ChapterIndex: 15, MentionedCharacters: []string{"Mira"},
	})
	require.NoError(t, err)

	var sawContradiction, sawOrphan bool
	for _, issue := range issues {
		switch issue.Type {
		case "character_contradiction":
			sawContradiction = true
		case "orphaned_plot_thread":
			sawOrphan = true
		}
	}
	require.True(t, sawContradiction)
	require.True(t, sawOrphan)
}

func TestGraphValidatorReturnsNoIssuesForCleanContinuity(t *testing.T) {
	graph := newTestGraph(t)
	ctx := context.Background()

	err := graph.Upsert(ctx, "proj-2", story.ContinuityFacts{
		Characters: []story.CharacterFact{
			{Name: "Aria", StatusHistory: []story.StatusChange{{Value: "alive", ChapterIndex: 1}}},
		},
	})
	require.NoError(t, err)

	queries := memory.NewQueries(graph)
	validator := NewGraphValidator(queries)

	issues, err := validator.Validate(ctx, GraphValidatorInput{
		ProjectID: "proj-2", ChapterIndex: 5, MentionedCharacters: []string{"Aria"},
	})
	require.NoError(t, err)
	require.Empty(t, issues)
}
