package memory

import (
	"context"
	"fmt"

	"github.com/vampirenirmal/storyforge/internal/cache"
	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// Service is the Memory Service facade: it owns fact extraction,
// merging, the structured graph, and the smart-truncated context block
// cache, so pipeline phases have one thing to call rather than
// juggling Extractor/Graph/Queries/SmartContextTruncator directly.
type Service struct {
	extractor  *Extractor
	graph      *Graph
	queries    *Queries
	truncator  *SmartContextTruncator
	recursive  *RecursiveMemoryManager
	kv         cache.KVCache
}

func NewService(client *llm.Client, graph *Graph, kv cache.KVCache, truncCfg config.TruncationConfig, memCfg config.RecursiveMemoryConfig) *Service {
	return &Service{
		extractor: NewExtractor(client),
		graph:     graph,
		queries:   NewQueries(graph),
		truncator: NewSmartContextTruncator(truncCfg.MemoryContextMaxChars),
		recursive: NewRecursiveMemoryManager(llm.NewAIClientAdapter(client, "memory_recursive"), memCfg),
		kv:        kv,
	}
}

func (s *Service) Queries() *Queries { return s.queries }

// ExtractFacts runs fact extraction without merging or persisting,
// for callers (internal/maintenance's reconciliation job) that build
// their own merge across many chapters before deciding whether to
// replace a project's stored continuity.
func (s *Service) ExtractFacts(ctx context.Context, chapterText string, chapterIndex int) (story.ContinuityFacts, error) {
	return s.extractor.Extract(ctx, chapterText, chapterIndex)
}

func (s *Service) Recursive() *RecursiveMemoryManager { return s.recursive }

// ExtractAndMerge extracts fresh facts from the approved chapter text
// and folds them into the project's running continuity, then persists
// the merged facts into the structured graph so Queries sees them
// immediately.
func (s *Service) ExtractAndMerge(ctx context.Context, project *story.Project, chapterText string, chapterIndex int) error {
	fresh, err := s.extractor.Extract(ctx, chapterText, chapterIndex)
	if err != nil {
		return fmt.Errorf("extracting continuity facts for chapter %d: %w", chapterIndex, err)
	}
	project.Continuity = MergeContinuity(project.Continuity, fresh, chapterIndex)

	if s.graph != nil {
		if err := s.graph.Upsert(ctx, project.ID, project.Continuity); err != nil {
			return fmt.Errorf("persisting merged continuity to graph: %w", err)
		}
	}
	if s.kv != nil {
		cache.InvalidateProject(s.kv, project.ID)
	}
	return nil
}

// ContextBlock returns the cached (or freshly built) smart-truncated
// memory block for a chapter, scoped to the characters known to be
// on-stage when known is non-nil.
func (s *Service) ContextBlock(project *story.Project, chapterIndex int, known []string) string {
	cacheKey := fmt.Sprintf("memory_ctx:%s:%d", project.ID, chapterIndex)
	if s.kv != nil {
		if v, ok := s.kv.Get(cacheKey); ok {
			return v
		}
	}

	block := s.truncator.Build(TruncatorInput{
		Facts: project.Continuity, ChapterIndex: chapterIndex, KnownCharacters: known,
	})

	if s.kv != nil {
		s.kv.Set(cacheKey, block, cache.MemoryContextTTL)
	}
	return block
}
