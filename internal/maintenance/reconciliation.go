// Package maintenance runs the background jobs that keep a project's
// derived state (continuity memory, the RAG index, draft clutter, the
// story bible) from drifting out of sync with its approved chapters.
// Grounded on coherence_maintenance.py and coherence_tasks.py: each
// job here is a straight port of one of that module's async task
// bodies, minus the Celery/SQLAlchemy plumbing storyforge doesn't
// have.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vampirenirmal/storyforge/internal/memory"
	"github.com/vampirenirmal/storyforge/internal/storage"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// factExtractor is the narrow surface Reconciler needs from
// *memory.Service, isolated so tests can substitute a fake rather than
// construct a real LLM-backed extractor.
type factExtractor interface {
	ExtractFacts(ctx context.Context, chapterText string, chapterIndex int) (story.ContinuityFacts, error)
}

// ContinuityDiff reports what changed between a project's stored
// continuity and a fresh re-extraction from its approved chapters.
// Mirrors _compare_continuity's shape exactly.
type ContinuityDiff struct {
	AddedCharacters    []string
	RemovedCharacters  []string
	StatusChanges      []CharacterStatusChange
	SignificantChanges bool
}

type CharacterStatusChange struct {
	Character string
	OldStatus string
	NewStatus string
}

// significantChangeThreshold mirrors _compare_continuity's bare ">5"
// literal.
const significantChangeThreshold = 5

// compareContinuity diffs character presence and status between an
// old and a freshly re-extracted ContinuityFacts. Ported from
// _compare_continuity; storyforge's ContinuityFacts carries Locations,
// Relations, etc. but the Python task only ever compares characters.
func compareContinuity(old, fresh story.ContinuityFacts) ContinuityDiff {
	oldByName := make(map[string]story.CharacterFact, len(old.Characters))
	for _, c := range old.Characters {
		oldByName[c.Name] = c
	}
	freshByName := make(map[string]story.CharacterFact, len(fresh.Characters))
	for _, c := range fresh.Characters {
		freshByName[c.Name] = c
	}

	var diff ContinuityDiff
	for name := range freshByName {
		if _, ok := oldByName[name]; !ok {
			diff.AddedCharacters = append(diff.AddedCharacters, name)
		}
	}
	for name := range oldByName {
		if _, ok := freshByName[name]; !ok {
			diff.RemovedCharacters = append(diff.RemovedCharacters, name)
		}
	}
	for name, oldChar := range oldByName {
		if freshChar, ok := freshByName[name]; ok && oldChar.Status != freshChar.Status {
			diff.StatusChanges = append(diff.StatusChanges, CharacterStatusChange{
				Character: name,
				OldStatus: oldChar.Status,
				NewStatus: freshChar.Status,
			})
		}
	}

	diff.SignificantChanges = len(diff.AddedCharacters)+len(diff.RemovedCharacters)+len(diff.StatusChanges) > significantChangeThreshold
	return diff
}

// ReconciliationResult is what one project's reconciliation run
// produced, returned from both the single and bulk jobs.
type ReconciliationResult struct {
	ProjectID         string
	ChaptersProcessed int
	Updated           bool
	Diff              ContinuityDiff
}

// Reconciler re-extracts continuity from every approved chapter and
// replaces the project's stored continuity only when the drift is
// significant, matching _reconcile_project_memory's
// extract-then-compare-then-conditionally-replace shape.
type Reconciler struct {
	projects storage.ProjectRepository
	chapters chapterLister
	memory   factExtractor
	logger   *slog.Logger
}

// chapterLister is the narrow slice of FilesystemRepo reconciliation
// needs beyond ProjectRepository: every approved chapter for a
// project, in order.
type chapterLister interface {
	ListApprovedChapters(ctx context.Context, projectID string) ([]*story.Chapter, error)
}

func NewReconciler(projects storage.ProjectRepository, chapters chapterLister, mem factExtractor, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{projects: projects, chapters: chapters, memory: mem, logger: logger.With("component", "reconciler")}
}

// ReconcileProject re-derives continuity for a single project from
// its approved chapters, replacing the stored continuity only if the
// drift crosses the significance threshold.
func (r *Reconciler) ReconcileProject(ctx context.Context, projectID string) (ReconciliationResult, error) {
	project, err := r.projects.GetProject(ctx, projectID, "")
	if err != nil {
		return ReconciliationResult{}, fmt.Errorf("loading project %s: %w", projectID, err)
	}

	approved, err := r.chapters.ListApprovedChapters(ctx, projectID)
	if err != nil {
		return ReconciliationResult{}, fmt.Errorf("listing approved chapters for %s: %w", projectID, err)
	}

	fresh := story.ContinuityFacts{}
	for _, chapter := range approved {
		if chapter.Content == "" {
			continue
		}
		extracted, err := r.memory.ExtractFacts(ctx, chapter.Content, chapter.ChapterIndex)
		if err != nil {
			r.logger.Warn("fact extraction failed during reconciliation", "project_id", projectID, "chapter_index", chapter.ChapterIndex, "error", err)
			continue
		}
		fresh = memory.MergeContinuity(fresh, extracted, chapter.ChapterIndex)
	}

	diff := compareContinuity(project.Continuity, fresh)

	result := ReconciliationResult{ProjectID: projectID, ChaptersProcessed: len(approved), Diff: diff}
	if !diff.SignificantChanges {
		r.logger.Info("reconciliation found no significant drift", "project_id", projectID, "chapters_processed", len(approved))
		return result, nil
	}

	err = r.projects.UpdateMetadata(ctx, projectID, func(p *story.Project) error {
		p.Continuity = fresh
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("persisting reconciled continuity for %s: %w", projectID, err)
	}
	result.Updated = true
	r.logger.Info("reconciled project continuity", "project_id", projectID, "chapters_processed", len(approved),
		"added", len(diff.AddedCharacters), "removed", len(diff.RemovedCharacters), "status_changes", len(diff.StatusChanges))
	return result, nil
}

// projectLister is the bulk-discovery surface, satisfied by
// *storage.FilesystemRepo.
type projectLister interface {
	ListProjectIDs(ctx context.Context) ([]string, error)
}

// ReconcileAllProjects runs ReconcileProject over every project on
// disk. storyforge's story.Project has no archived/status field (the
// Python original filters out ProjectStatus.ARCHIVED); since nothing
// here marks a project archived, every project is "active" and all
// are processed (documented in DESIGN.md).
func ReconcileAllProjects(ctx context.Context, r *Reconciler, lister projectLister) ([]ReconciliationResult, error) {
	ids, err := lister.ListProjectIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects for bulk reconciliation: %w", err)
	}
	results := make([]ReconciliationResult, 0, len(ids))
	for _, id := range ids {
		res, err := r.ReconcileProject(ctx, id)
		if err != nil {
			r.logger.Warn("reconciliation failed for project", "project_id", id, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}
