package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vampirenirmal/storyforge/internal/rag"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// chapterAllLister is the narrow surface ragrebuild and draftcleanup
// need: every chapter document for a project, regardless of status.
type chapterAllLister interface {
	AllChapters(ctx context.Context, projectID string) ([]*story.Chapter, error)
}

// RAGRebuildResult reports how many chunks a rebuild produced.
type RAGRebuildResult struct {
	ProjectID   string
	ChunksCount int
}

// RAGRebuilder clears and re-indexes a project's chapter documents,
// ported from _rebuild_project_rag/_rebuild_all_project_rags.
type RAGRebuilder struct {
	chapters chapterAllLister
	rag      *rag.Service
	logger   *slog.Logger
}

func NewRAGRebuilder(chapters chapterAllLister, ragSvc *rag.Service, logger *slog.Logger) *RAGRebuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGRebuilder{chapters: chapters, rag: ragSvc, logger: logger.With("component", "rag_rebuilder")}
}

// RebuildProject re-indexes every chapter document belonging to a
// project from scratch (clearExisting=true), same as
// RagService.aindex_documents(..., clear_existing=True).
func (b *RAGRebuilder) RebuildProject(ctx context.Context, projectID string) (RAGRebuildResult, error) {
	chapters, err := b.chapters.AllChapters(ctx, projectID)
	if err != nil {
		return RAGRebuildResult{}, fmt.Errorf("listing chapters for rag rebuild of %s: %w", projectID, err)
	}

	docs := make([]rag.Document, 0, len(chapters))
	for _, c := range chapters {
		if c.Content == "" {
			continue
		}
		docs = append(docs, rag.Document{ID: c.ID, Content: c.Content})
	}

	if err := b.rag.IndexDocuments(ctx, projectID, rag.KindChapter, docs, true); err != nil {
		return RAGRebuildResult{}, fmt.Errorf("rebuilding rag index for %s: %w", projectID, err)
	}

	count := b.rag.CountProjectVectors(ctx, projectID)
	b.logger.Info("rebuilt rag index", "project_id", projectID, "documents", len(docs), "chunks", count)
	return RAGRebuildResult{ProjectID: projectID, ChunksCount: count}, nil
}

// RebuildAllProjects rebuilds the RAG index for every project on
// disk. As with ReconcileAllProjects, storyforge has no archived
// status to exclude, so every project is in scope.
func RebuildAllProjects(ctx context.Context, b *RAGRebuilder, lister projectLister) ([]RAGRebuildResult, error) {
	ids, err := lister.ListProjectIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects for bulk rag rebuild: %w", err)
	}
	results := make([]RAGRebuildResult, 0, len(ids))
	for _, id := range ids {
		res, err := b.RebuildProject(ctx, id)
		if err != nil {
			b.logger.Warn("rag rebuild failed for project", "project_id", id, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}
