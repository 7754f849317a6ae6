// Package container wires every collaborator storyforge needs into
// one graph, built once at process startup rather than as
// package-level globals initialized on first use.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/vampirenirmal/storyforge/internal/cache"
	"github.com/vampirenirmal/storyforge/internal/coherence"
	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/maintenance"
	"github.com/vampirenirmal/storyforge/internal/memory"
	"github.com/vampirenirmal/storyforge/internal/pipeline"
	"github.com/vampirenirmal/storyforge/internal/queue"
	"github.com/vampirenirmal/storyforge/internal/rag"
	"github.com/vampirenirmal/storyforge/internal/storage"
)

// Container holds every wired collaborator. Fields are exported so
// cmd/storyforge can reach the pieces it needs (Pipeline, Maintenance,
// Export helpers import story/chapter types directly) without the
// container growing command-specific methods.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	LLM   *llm.Client
	Graph *memory.Graph
	KV    cache.KVCache

	ProjectRepo storage.ProjectRepository
	ChapterRepo storage.ChapterRepository
	fsRepo      *storage.FilesystemRepo

	Memory *memory.Service
	RAG    *rag.Service

	Queue      *queue.PriorityQueue
	Dispatcher *queue.BeatDispatcher

	Pipeline    *pipeline.ChapterPipeline
	Maintenance *maintenance.Scheduler

	warmed bool
}

// New constructs every collaborator from cfg. baseDir is the root of
// the filesystem project store and the RAG SQLite database file
// (cfg.Paths.DataDir in production, a t.TempDir() in tests).
func New(ctx context.Context, cfg *config.Config, baseDir string) (*Container, error) {
	logger := slog.Default()

	llmClient := llm.NewClient(
		cfg.AI.APIKey,
		llm.WithAPIConfig(cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Model),
		llm.WithRetry(cfg.LLM.MaxRetries),
		llm.WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
		llm.WithLogger(logger),
	)

	fsStore := storage.NewFileSystem(baseDir)
	fsRepo := storage.NewFilesystemRepo(fsStore)

	graph, err := memory.NewGraph(filepath.Join(baseDir, "memory.graph.json"))
	if err != nil {
		return nil, fmt.Errorf("opening memory graph: %w", err)
	}
	kv := cache.NewInMemory()
	memorySvc := memory.NewService(llmClient, graph, kv, cfg.Truncation, cfg.Memory)

	vectorStore, err := rag.NewSQLiteStore(filepath.Join(baseDir, "vectors.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	embedder := rag.NewHashEmbedder(cfg.RAG.EmbeddingDimension)
	ragSvc := rag.NewService(vectorStore, embedder, cfg.RAG)

	analyst := coherence.NewAnalyst(llmClient)
	graphValidator := coherence.NewGraphValidator(memorySvc.Queries())
	plotCheck := pipeline.NewPlotPointChecker(llmClient)

	validateContinuity := pipeline.NewValidateContinuityPhase(analyst, graphValidator, plotCheck)
	if cfg.Coherence.CharacterDriftEnabled {
		validateContinuity.With(pipeline.WithCharacterDrift(coherence.NewCharacterDriftDetector(llmClient, cfg.Coherence)))
	}
	if cfg.Coherence.POVValidatorEnabled {
		validateContinuity.With(pipeline.WithPOVValidator(coherence.NewPOVValidator(llmClient, cfg.Coherence)))
	}
	if cfg.Coherence.SemanticValidatorEnabled {
		validateContinuity.With(pipeline.WithSemanticValidator(coherence.NewSemanticValidator(embedder, cfg.Coherence)))
	}
	if cfg.Coherence.VoiceAnalyzerEnabled {
		voiceRefs := func(projectID, character string) []string {
			chunks := ragSvc.Retrieve(context.Background(), projectID, rag.KindStyle, character, cfg.RAG.TopK)
			out := make([]string, len(chunks))
			for i, c := range chunks {
				out[i] = c.Text
			}
			return out
		}
		validateContinuity.With(pipeline.WithVoiceAnalyzer(coherence.NewVoiceConsistencyAnalyzer(embedder, cfg.Coherence), voiceRefs))
	}
	validateContinuity.With(pipeline.WithChekhovTracker(coherence.NewChekhovTracker()))

	q := queue.NewPriorityQueue(ctx, queue.DefaultLaneConcurrency(), logger)
	dispatcher := queue.NewBeatDispatcher(q, llmClient, cfg.Beats, cfg.Limits.PhaseTimeouts.WriteChapter)

	collectContext := pipeline.NewCollectContextPhase(cfg.Chapter)
	retrieveContext := pipeline.NewRetrieveContextPhase(memorySvc, ragSvc, cfg.RAG.TopK)
	planChapter := pipeline.NewPlanChapterPhase(llmClient, cfg.PlanReasoning)
	writeChapter := pipeline.NewWriteChapterPhase(llmClient, cfg.Beats, dispatcher)
	critic := pipeline.NewCriticPhase(llmClient, cfg.Truncation)

	chapterPipeline := pipeline.NewChapterPipeline(
		fsRepo, fsRepo, memorySvc, ragSvc,
		collectContext, retrieveContext, planChapter, writeChapter, validateContinuity, critic,
		cfg.QualityGate, pipeline.WithLogger(logger),
	)

	reconciler := maintenance.NewReconciler(fsRepo, fsRepo, memorySvc, logger)
	ragRebuilder := maintenance.NewRAGRebuilder(fsRepo, ragSvc, logger)
	draftCleaner := maintenance.NewDraftCleaner(fsRepo, fsRepo, nil, logger)
	factPromoter := maintenance.NewFactPromoter(fsRepo, cfg.Maintenance.FactPromotionThreshold, nil, logger)

	scheduler := maintenance.NewScheduler(q, maintenance.Jobs{
		Reconciler:         reconciler,
		RAGRebuilder:       ragRebuilder,
		DraftCleaner:       draftCleaner,
		FactPromoter:       factPromoter,
		Projects:           fsRepo,
		DraftRetentionDays: 30,
	}, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		LLM:         llmClient,
		Graph:       graph,
		KV:          kv,
		ProjectRepo: fsRepo,
		ChapterRepo: fsRepo,
		fsRepo:      fsRepo,
		Memory:      memorySvc,
		RAG:         ragSvc,
		Queue:       q,
		Dispatcher:  dispatcher,
		Pipeline:    chapterPipeline,
		Maintenance: scheduler,
	}, nil
}

// Warmup issues a known-good, cheap prompt through the LLM client
// before the container serves real chapter requests. This exists so a
// cold-start failure (bad API key, unreachable provider, broken
// circuit breaker config) surfaces at startup as a clear error instead
// of inside the first user-facing chapter generation call.
func (c *Container) Warmup(ctx context.Context) error {
	_, err := c.LLM.Complete(ctx, llm.Request{
		System:    "Respond with exactly one word.",
		Prompt:    "Reply with: ready",
		MaxTokens: 8,
		Phase:     "warmup",
	})
	if err != nil {
		return fmt.Errorf("warmup: LLM client not reachable: %w", err)
	}
	c.warmed = true
	return nil
}

// Warmed reports whether Warmup has completed successfully.
func (c *Container) Warmed() bool { return c.warmed }

// StartMaintenance starts the background scheduler at the cadences in
// daemonCfg. Call once from the long-running daemon/maintain command,
// never from a one-shot CLI invocation.
func (c *Container) StartMaintenance(daemonCfg *config.DaemonConfig) error {
	return c.Maintenance.Start(daemonCfg)
}

// Close releases everything the container opened: the task queue's
// goroutine pools and the maintenance cron scheduler.
func (c *Container) Close() {
	c.Queue.Close()
	c.Maintenance.Stop()
}
