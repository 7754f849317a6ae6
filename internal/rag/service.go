package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vampirenirmal/storyforge/internal/config"
)

// Document is a single piece of project content to index: an approved
// chapter's full text (kind "chapter") or style-memory text (kind
// "style").
type Document struct {
	ID      string
	Content string
}

const (
	KindChapter = "chapter"
	KindStyle   = "style"
)

// Service is the retrieval-augmented-generation layer. It degrades to
// empty results rather than erroring when the vector store is
// unavailable, logging the degradation once per process so a down
// vector store doesn't spam logs across hundreds of chapter
// generations.
type Service struct {
	store    VectorStore
	embedder Embedder
	cfg      config.RAGConfig
	logger   *slog.Logger

	warnOnce sync.Once
	degraded bool
}

func NewService(store VectorStore, embedder Embedder, cfg config.RAGConfig) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   slog.Default().With("component", "rag_service"),
	}
}

func (s *Service) warnDegraded(err error) {
	s.warnOnce.Do(func() {
		s.degraded = true
		s.logger.Warn("vector store unavailable, RAG degrading to empty results for this process", "error", err)
	})
}

// IndexDocuments chunks and embeds docs, replacing any existing chunks
// for the same document ids first (clearExisting true rebuilds the
// whole kind for project from scratch).
func (s *Service) IndexDocuments(ctx context.Context, projectID, kind string, docs []Document, clearExisting bool) error {
	if s.store == nil {
		s.warnDegraded(fmt.Errorf("no vector store configured"))
		return nil
	}

	if clearExisting {
		for _, d := range docs {
			if err := s.store.DeleteByDocument(ctx, projectID, d.ID); err != nil {
				s.warnDegraded(err)
				return nil
			}
		}
	}

	var vectors []VectorDocument
	for _, d := range docs {
		for _, chunk := range SplitIntoChunks(d.ID, d.Content, s.cfg.ChunkSize, s.cfg.ChunkOverlap) {
			vectors = append(vectors, VectorDocument{
				ID:         uuid.NewString(),
				ProjectID:  projectID,
				DocumentID: d.ID,
				ChunkIndex: chunk.Index,
				Text:       chunk.Text,
				Kind:       kind,
				Vector:     s.embedder.Embed(chunk.Text),
			})
		}
	}
	if len(vectors) == 0 {
		return nil
	}
	if err := s.store.Upsert(ctx, vectors); err != nil {
		s.warnDegraded(err)
		return nil
	}
	return nil
}

// UpdateDocument re-indexes a single document, replacing its prior
// chunks.
func (s *Service) UpdateDocument(ctx context.Context, projectID, kind string, doc Document) error {
	if s.store == nil {
		s.warnDegraded(fmt.Errorf("no vector store configured"))
		return fmt.Errorf("rag: vector store unavailable")
	}
	if err := s.store.DeleteByDocument(ctx, projectID, doc.ID); err != nil {
		return fmt.Errorf("clearing prior chunks for document %s: %w", doc.ID, err)
	}
	if err := s.IndexDocuments(ctx, projectID, kind, []Document{doc}, false); err != nil {
		return err
	}
	if s.degraded {
		return fmt.Errorf("rag: vector store unavailable")
	}
	return nil
}

// Retrieve returns up to k chunks of kind most similar to query.
// Degrades to an empty slice (never an error) when the store is down.
func (s *Service) Retrieve(ctx context.Context, projectID, kind, query string, k int) []ScoredChunk {
	if s.store == nil {
		s.warnDegraded(fmt.Errorf("no vector store configured"))
		return nil
	}
	if k <= 0 {
		k = s.cfg.TopK
	}
	vec := s.embedder.Embed(query)
	results, err := s.store.Search(ctx, projectID, kind, vec, k)
	if err != nil {
		s.warnDegraded(err)
		return nil
	}
	return results
}

// CountProjectVectors reports the vector count for a project; after an
// approval's re-index it should strictly increase unless the update
// path errored.
func (s *Service) CountProjectVectors(ctx context.Context, projectID string) int {
	if s.store == nil {
		return 0
	}
	count, err := s.store.CountProject(ctx, projectID)
	if err != nil {
		s.warnDegraded(err)
		return 0
	}
	return count
}
