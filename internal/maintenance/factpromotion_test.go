package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/storage"
	"github.com/vampirenirmal/storyforge/internal/story"
)

func TestFactPromoterPromotesTraitsAtOrAboveThreshold(t *testing.T) {
	fsStore := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(fsStore)
	project := newTestProject()
	project.Continuity = story.ContinuityFacts{
		Characters: []story.CharacterFact{
			{Name: "Mira", Traits: []string{"stubborn", "stubborn", "stubborn"}, Motivations: []string{"revenge", "revenge", "revenge"}},
		},
		Locations: []story.LocationFact{
			{Name: "The Spire", Rules: []string{"no magic above the third floor", "no magic above the third floor", "no magic above the third floor"}},
		},
		Events: []story.EventFact{
			{Name: "betrayal", Impact: "The alliance between the two houses permanently shattered"},
			{Name: "betrayal-echo", Impact: "The alliance between the two houses permanently shattered"},
			{Name: "betrayal-echo-2", Impact: "The alliance between the two houses permanently shattered"},
		},
	}
	seedProject(t, fsStore, project)

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	promoter := NewFactPromoter(repo, 3, func() time.Time { return now }, nil)

	result, err := promoter.PromoteProject(context.Background(), project.ID)
	require.NoError(t, err)
	// stubborn trait + revenge motivation + spire rule + world rule = 4
	require.Len(t, result.Promoted, 4)

	reloaded, err := repo.GetProject(context.Background(), project.ID, "")
	require.NoError(t, err)
	require.Len(t, reloaded.Bible.PromotedFacts, 4)
	require.Len(t, reloaded.Bible.WorldRules, 1)

	for _, pf := range reloaded.Bible.PromotedFacts {
		require.InDelta(t, 0.3, pf.Confidence, 1e-9)
		require.Equal(t, now, pf.PromotedAt)
	}
}

func TestFactPromoterIgnoresBelowThresholdObservations(t *testing.T) {
	fsStore := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(fsStore)
	project := newTestProject()
	project.Continuity = story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Traits: []string{"stubborn"}}},
	}
	seedProject(t, fsStore, project)

	promoter := NewFactPromoter(repo, 3, nil, nil)
	result, err := promoter.PromoteProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.Empty(t, result.Promoted)
}

func TestFactPromoterDoesNotDuplicateAlreadyPromotedFacts(t *testing.T) {
	fsStore := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(fsStore)
	project := newTestProject()
	project.Continuity = story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Traits: []string{"stubborn", "stubborn", "stubborn"}}},
	}
	seedProject(t, fsStore, project)

	promoter := NewFactPromoter(repo, 3, nil, nil)
	_, err := promoter.PromoteProject(context.Background(), project.ID)
	require.NoError(t, err)

	result, err := promoter.PromoteProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.Empty(t, result.Promoted, "already-promoted facts should not be re-added")
}
