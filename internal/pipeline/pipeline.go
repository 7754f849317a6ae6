package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/core"
	"github.com/vampirenirmal/storyforge/internal/memory"
	"github.com/vampirenirmal/storyforge/internal/rag"
	"github.com/vampirenirmal/storyforge/internal/storage"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// GenerateChapterRequest is everything a caller supplies to generate
// one chapter. ChapterID, when set, updates an existing draft in
// place instead of creating a new document (writing_pipeline.py's
// generate_chapter/_persist_draft "chapter_id" revision path).
type GenerateChapterRequest struct {
	ProjectID      string
	OwnerID        string
	ChapterIndex   int
	ChapterID      string
	ChapterTitle   string
	Instruction    string
	UseRAG         bool
	AutoApprove    bool
	CreateDocument bool
	MaxRevisions   int
}

// ChapterPipeline wires every phase plus the repositories and services
// they need into the full collect_context -> retrieve_context ->
// plan_chapter -> (write_chapter -> validate_continuity -> critic ->
// quality_gate)* chapter-generation flow, and the separate
// approve_chapter side-effect chain. Grounded on writing_pipeline.py's
// WritingPipelineService as a whole.
type ChapterPipeline struct {
	projectRepo storage.ProjectRepository
	chapterRepo storage.ChapterRepository
	memorySvc   *memory.Service
	ragSvc      *rag.Service

	collectContext     *CollectContextPhase
	retrieveContext    *RetrieveContextPhase
	planChapter        *PlanChapterPhase
	writeChapter       *WriteChapterPhase
	validateContinuity *ValidateContinuityPhase
	critic             *CriticPhase

	qualityGateCfg config.QualityGateConfig
	maxRevisions   int
	logger         *slog.Logger
}

// ChapterPipelineOption customizes a ChapterPipeline at construction.
type ChapterPipelineOption func(*ChapterPipeline)

func WithLogger(logger *slog.Logger) ChapterPipelineOption {
	return func(p *ChapterPipeline) { p.logger = logger }
}

func NewChapterPipeline(
	projectRepo storage.ProjectRepository,
	chapterRepo storage.ChapterRepository,
	memorySvc *memory.Service,
	ragSvc *rag.Service,
	collectContext *CollectContextPhase,
	retrieveContext *RetrieveContextPhase,
	planChapter *PlanChapterPhase,
	writeChapter *WriteChapterPhase,
	validateContinuity *ValidateContinuityPhase,
	critic *CriticPhase,
	qualityGateCfg config.QualityGateConfig,
	opts ...ChapterPipelineOption,
) *ChapterPipeline {
	p := &ChapterPipeline{
		projectRepo:        projectRepo,
		chapterRepo:        chapterRepo,
		memorySvc:          memorySvc,
		ragSvc:             ragSvc,
		collectContext:     collectContext,
		retrieveContext:    retrieveContext,
		planChapter:        planChapter,
		writeChapter:       writeChapter,
		validateContinuity: validateContinuity,
		critic:             critic,
		qualityGateCfg:     qualityGateCfg,
		maxRevisions:       qualityGateCfg.MaxRevisions,
		logger:             slog.Default().With("component", "chapter_pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// runPhase validates, executes, and validates the output of a single
// core.Phase, threading *PipelineState through PhaseInput/PhaseOutput.
func runPhase(ctx context.Context, p core.Phase, state *PipelineState) (*PipelineState, error) {
	input := core.PhaseInput{Data: state}
	if err := p.ValidateInput(ctx, input); err != nil {
		return state, err
	}
	output, err := p.Execute(ctx, input)
	if err != nil {
		return state, err
	}
	if err := p.ValidateOutput(ctx, output); err != nil {
		return state, err
	}
	return output.Data.(*PipelineState), nil
}

// GenerateChapter runs collect_context, retrieve_context, and
// plan_chapter once, then loops write_chapter -> validate_continuity
// -> critic -> QualityGate until the gate says "done" or MaxRevisions
// is reached, matching writing_pipeline.py's LangGraph
// critic->_quality_gate->{revise: write_chapter, done: END} back-edge
// as a plain for loop (see package doc in errors.go for why).
func (p *ChapterPipeline) GenerateChapter(ctx context.Context, req GenerateChapterRequest) (*PipelineState, *story.Chapter, error) {
	project, err := p.projectRepo.GetProject(ctx, req.ProjectID, req.OwnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading project: %w", err)
	}

	maxRevisions := req.MaxRevisions
	if maxRevisions <= 0 {
		maxRevisions = p.maxRevisions
	}
	qualityGateCfg := p.qualityGateCfg
	qualityGateCfg.MaxRevisions = maxRevisions

	state := &PipelineState{
		Project:      project,
		ChapterID:    req.ChapterID,
		ChapterIndex: req.ChapterIndex,
		ChapterTitle: req.ChapterTitle,
		Instruction:  req.Instruction,
		UseRAG:       req.UseRAG,
		AutoApprove:  req.AutoApprove,
		MaxRevisions: maxRevisions,
	}

	for _, ph := range []core.Phase{p.collectContext, p.retrieveContext, p.planChapter} {
		state, err = runPhase(ctx, ph, state)
		if err != nil {
			return state, nil, err
		}
	}

	for {
		if ctx.Err() != nil {
			return state, nil, ErrCancellationDeadline
		}

		state, err = runPhase(ctx, p.writeChapter, state)
		if err != nil {
			return state, nil, err
		}
		state, err = runPhase(ctx, p.validateContinuity, state)
		if err != nil {
			return state, nil, err
		}
		state, err = runPhase(ctx, p.critic, state)
		if err != nil {
			return state, nil, err
		}

		if QualityGate(state, qualityGateCfg) == GateDone {
			break
		}
	}

	var chapter *story.Chapter
	if req.CreateDocument {
		chapter, err = p.persistDraft(ctx, req, state)
		if err != nil {
			return state, nil, fmt.Errorf("persisting draft: %w", err)
		}
	}

	if req.AutoApprove && chapter != nil {
		if err := p.ApproveChapter(ctx, chapter.ID, req.OwnerID); err != nil {
			return state, chapter, fmt.Errorf("auto-approving chapter: %w", err)
		}
	}

	return state, chapter, nil
}

// persistDraft writes the generated draft as a story.Chapter, either
// updating req.ChapterID in place (a revision) or creating a new
// document at the next order index. Grounded on
// writing_pipeline.py's _persist_draft.
func (p *ChapterPipeline) persistDraft(ctx context.Context, req GenerateChapterRequest, state *PipelineState) (*story.Chapter, error) {
	title := state.ChapterTitle
	if title == "" {
		title = "Chapter"
	}
	wordCount := countWords(state.Draft)

	if req.ChapterID != "" {
		var result *story.Chapter
		err := p.chapterRepo.Update(ctx, req.ChapterID, func(ch *story.Chapter) error {
			ch.Title = title
			ch.Content = state.Draft
			ch.Summary = state.Summary
			ch.WordCount = wordCount
			ch.Plan = *state.Plan
			ch.ContinuityValidationHistory = append(ch.ContinuityValidationHistory, state.ContinuityValidation)
			ch.PlotPointCoverage = &state.PlotValidation
			ch.FailedBeats = state.FailedBeats
			ch.UpdatedAt = time.Now()
			result = ch
			return nil
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	orderIndex, err := p.chapterRepo.MaxOrderIndex(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	chapter := &story.Chapter{
		ID:           uuid.NewString(),
		ProjectID:    req.ProjectID,
		OrderIndex:   orderIndex + 1,
		ChapterIndex: state.ChapterIndex,
		Status:       story.ChapterStatusDraft,
		Title:        title,
		Content:      state.Draft,
		Summary:      state.Summary,
		WordCount:    wordCount,
		Plan:         *state.Plan,
		ContinuityValidationHistory: []story.ContinuityValidation{state.ContinuityValidation},
		PlotPointCoverage:           &state.PlotValidation,
		FailedBeats:                 state.FailedBeats,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
	if err := p.chapterRepo.Create(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// ApproveChapter extracts and merges continuity facts from the
// chapter, appends its summary to the project's recent-summary window,
// marks its plan-chapter entry approved, marks the chapter itself
// approved, and re-indexes it into RAG. A RAG re-index failure is
// recorded as a warning rather than failing approval. Grounded on writing_pipeline.py's approve_chapter.
func (p *ChapterPipeline) ApproveChapter(ctx context.Context, chapterID, ownerID string) error {
	chapter, err := p.chapterRepo.Get(ctx, chapterID)
	if err != nil {
		return fmt.Errorf("loading chapter: %w", err)
	}

	if err := p.projectRepo.UpdateMetadata(ctx, chapter.ProjectID, func(project *story.Project) error {
		if err := p.memorySvc.ExtractAndMerge(ctx, project, chapter.Content, chapter.ChapterIndex); err != nil {
			return err
		}

		summary := chapter.Summary
		if summary != "" {
			project.AppendRecentSummary(story.ChapterSummary{
				ChapterIndex: chapter.ChapterIndex,
				Summary:      summary,
				ApprovedAt:   time.Now(),
			})
		}

		for i := range project.Plan.Chapters {
			if project.Plan.Chapters[i].ChapterIndex == chapter.ChapterIndex {
				project.Plan.Chapters[i].Status = story.ChapterEntryApproved
				break
			}
		}
		return nil
	}); err != nil {
		return &ConcurrentMetadataConflict{ProjectID: chapter.ProjectID, Cause: err}
	}

	now := time.Now()
	if err := p.chapterRepo.Update(ctx, chapterID, func(ch *story.Chapter) error {
		ch.Status = story.ChapterStatusApproved
		ch.ApprovedAt = &now
		ch.UpdatedAt = now
		return nil
	}); err != nil {
		return fmt.Errorf("marking chapter approved: %w", err)
	}

	if p.ragSvc != nil {
		if err := p.ragSvc.UpdateDocument(ctx, chapter.ProjectID, rag.KindChapter, rag.Document{
			ID: chapter.ID, Content: chapter.Content,
		}); err != nil {
			p.logger.Warn("rag re-index failed after approval", "chapter_id", chapter.ID, "error", err)
		}
	}

	return nil
}
