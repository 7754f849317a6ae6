package maintenance

import (
	"context"
	"encoding/json"
	"path"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/storage"
	"github.com/vampirenirmal/storyforge/internal/story"
)

func seedProject(t *testing.T, store *storage.FileSystem, p *story.Project) {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), path.Join("projects", p.ID, "project.json"), data))
}

func newTestProject() *story.Project {
	return &story.Project{
		ID:      uuid.NewString(),
		OwnerID: "author-1",
		Concept: story.Concept{Premise: "a serial", POVType: story.POVLimited},
		Plan:    story.Plan{Status: story.PlanStatusAccepted},
		Continuity: story.ContinuityFacts{
			Characters: []story.CharacterFact{
				{Name: "Mira", Status: "alive"},
			},
		},
	}
}

type fakeExtractor struct {
	facts story.ContinuityFacts
	err   error
}

func (f *fakeExtractor) ExtractFacts(ctx context.Context, chapterText string, chapterIndex int) (story.ContinuityFacts, error) {
	return f.facts, f.err
}

func TestCompareContinuityFlagsSignificantChangeOnlyPastThreshold(t *testing.T) {
	old := story.ContinuityFacts{Characters: []story.CharacterFact{
		{Name: "A", Status: "alive"}, {Name: "B", Status: "alive"},
	}}
	fresh := story.ContinuityFacts{Characters: []story.CharacterFact{
		{Name: "A", Status: "dead"}, {Name: "C", Status: "alive"}, {Name: "D", Status: "alive"},
	}}

	diff := compareContinuity(old, fresh)
	require.ElementsMatch(t, []string{"C", "D"}, diff.AddedCharacters)
	require.ElementsMatch(t, []string{"B"}, diff.RemovedCharacters)
	require.Len(t, diff.StatusChanges, 1)
	require.False(t, diff.SignificantChanges, "3 total changes should stay under the >5 threshold")
}

func TestCompareContinuitySignificantChangesCrossesThreshold(t *testing.T) {
	var old, fresh story.ContinuityFacts
	for i := 0; i < 6; i++ {
		fresh.Characters = append(fresh.Characters, story.CharacterFact{Name: string(rune('A' + i))})
	}
	diff := compareContinuity(old, fresh)
	require.True(t, diff.SignificantChanges)
}

func TestReconcileProjectSkipsUpdateWhenDriftIsMinor(t *testing.T) {
	store := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(store)
	project := newTestProject()
	seedProject(t, store, project)

	extractor := &fakeExtractor{facts: story.ContinuityFacts{
		Characters: []story.CharacterFact{{Name: "Mira", Status: "alive"}},
	}}
	rec := NewReconciler(repo, repo, extractor, nil)

	result, err := rec.ReconcileProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.False(t, result.Updated)
}

func TestReconcileProjectReplacesContinuityOnSignificantDrift(t *testing.T) {
	store := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(store)
	project := newTestProject()
	seedProject(t, store, project)

	draft := &story.Chapter{
		ID: uuid.NewString(), ProjectID: project.ID, OrderIndex: 0, ChapterIndex: 1,
		Status: story.ChapterStatusApproved, Content: "Mira arrives.",
	}
	require.NoError(t, repo.Create(context.Background(), draft))

	freshFacts := story.ContinuityFacts{}
	for i := 0; i < 6; i++ {
		freshFacts.Characters = append(freshFacts.Characters, story.CharacterFact{Name: string(rune('A' + i))})
	}
	extractor := &fakeExtractor{facts: freshFacts}
	rec := NewReconciler(repo, repo, extractor, nil)

	result, err := rec.ReconcileProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.True(t, result.Updated)
	require.Equal(t, 1, result.ChaptersProcessed)

	reloaded, err := repo.GetProject(context.Background(), project.ID, "")
	require.NoError(t, err)
	require.Len(t, reloaded.Continuity.Characters, 6)
}

func TestReconcileAllProjectsProcessesEveryProject(t *testing.T) {
	store := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(store)
	p1, p2 := newTestProject(), newTestProject()
	seedProject(t, store, p1)
	seedProject(t, store, p2)

	rec := NewReconciler(repo, repo, &fakeExtractor{facts: story.ContinuityFacts{}}, nil)
	results, err := ReconcileAllProjects(context.Background(), rec, repo)
	require.NoError(t, err)
	require.Len(t, results, 2)
}
