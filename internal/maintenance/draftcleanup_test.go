package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/storage"
	"github.com/vampirenirmal/storyforge/internal/story"
)

func TestDraftCleanerDeletesOnlyStaleDrafts(t *testing.T) {
	fsStore := storage.NewFileSystem(t.TempDir())
	repo := storage.NewFilesystemRepo(fsStore)
	project := newTestProject()
	seedProject(t, fsStore, project)

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	stale := &story.Chapter{ID: "stale", ProjectID: project.ID, ChapterIndex: 1, Status: story.ChapterStatusDraft, CreatedAt: now.Add(-40 * 24 * time.Hour)}
	fresh := &story.Chapter{ID: "fresh", ProjectID: project.ID, ChapterIndex: 2, Status: story.ChapterStatusDraft, CreatedAt: now.Add(-5 * 24 * time.Hour)}
	approved := &story.Chapter{ID: "approved", ProjectID: project.ID, ChapterIndex: 3, Status: story.ChapterStatusApproved, CreatedAt: now.Add(-400 * 24 * time.Hour)}
	require.NoError(t, repo.Create(context.Background(), stale))
	require.NoError(t, repo.Create(context.Background(), fresh))
	require.NoError(t, repo.Create(context.Background(), approved))

	cleaner := NewDraftCleaner(repo, repo, func() time.Time { return now }, nil)
	result, err := cleaner.CleanupProject(context.Background(), project.ID, 30)
	require.NoError(t, err)
	require.Equal(t, 1, result.DeletedDrafts)

	remaining, err := repo.AllChapters(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	for _, c := range remaining {
		require.NotEqual(t, "stale", c.ID)
	}
}
