package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vampirenirmal/storyforge/internal/story"
)

// chapterDeleter is the narrow deletion surface, satisfied by
// *storage.FilesystemRepo.
type chapterDeleter interface {
	DeleteChapter(ctx context.Context, projectID, chapterID string) error
}

// DraftCleanupResult reports how many stale drafts a cleanup run
// removed.
type DraftCleanupResult struct {
	ProjectID     string
	DeletedDrafts int
}

// DraftCleaner deletes chapters stuck in draft status older than a
// retention window, ported from _cleanup_old_drafts. now is injected
// so the job is deterministic under test.
type DraftCleaner struct {
	chapters chapterAllLister
	deleter  chapterDeleter
	now      func() time.Time
	logger   *slog.Logger
}

func NewDraftCleaner(chapters chapterAllLister, deleter chapterDeleter, now func() time.Time, logger *slog.Logger) *DraftCleaner {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftCleaner{chapters: chapters, deleter: deleter, now: now, logger: logger.With("component", "draft_cleaner")}
}

// CleanupProject deletes every draft chapter in projectID created
// before daysThreshold days ago.
func (c *DraftCleaner) CleanupProject(ctx context.Context, projectID string, daysThreshold int) (DraftCleanupResult, error) {
	chapters, err := c.chapters.AllChapters(ctx, projectID)
	if err != nil {
		return DraftCleanupResult{}, fmt.Errorf("listing chapters for draft cleanup of %s: %w", projectID, err)
	}

	cutoff := c.now().Add(-time.Duration(daysThreshold) * 24 * time.Hour)

	var deleted int
	for _, ch := range chapters {
		if ch.Status != story.ChapterStatusDraft {
			continue
		}
		if !ch.CreatedAt.Before(cutoff) {
			continue
		}
		if err := c.deleter.DeleteChapter(ctx, projectID, ch.ID); err != nil {
			c.logger.Warn("failed to delete stale draft", "project_id", projectID, "chapter_id", ch.ID, "error", err)
			continue
		}
		deleted++
	}

	c.logger.Info("cleaned up stale drafts", "project_id", projectID, "deleted", deleted, "days_threshold", daysThreshold)
	return DraftCleanupResult{ProjectID: projectID, DeletedDrafts: deleted}, nil
}
