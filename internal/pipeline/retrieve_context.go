package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vampirenirmal/storyforge/internal/core"
	"github.com/vampirenirmal/storyforge/internal/memory"
	"github.com/vampirenirmal/storyforge/internal/phase"
	"github.com/vampirenirmal/storyforge/internal/rag"
)

// RetrieveContextPhase builds the smart-truncated memory context block
// and, unless UseRAG is false, retrieves the top-k relevant chapter
// chunks and up to 3 style-memory chunks. Grounded on
// writing_pipeline.py's retrieve_context; the Python version's
// CacheService hit/miss pair collapses into memory.Service.ContextBlock
// and rag.Service.Retrieve, which already own their own caching and
// graceful degradation.
type RetrieveContextPhase struct {
	phase.BasePhase
	memorySvc *memory.Service
	ragSvc    *rag.Service
	ragTopK   int
}

func NewRetrieveContextPhase(memorySvc *memory.Service, ragSvc *rag.Service, ragTopK int) *RetrieveContextPhase {
	return &RetrieveContextPhase{
		BasePhase: phase.NewBasePhase("retrieve_context", 30*time.Second),
		memorySvc: memorySvc,
		ragSvc:    ragSvc,
		ragTopK:   ragTopK,
	}
}

func (p *RetrieveContextPhase) ValidateInput(ctx context.Context, input core.PhaseInput) error {
	if _, ok := input.Data.(*PipelineState); !ok {
		return fmt.Errorf("retrieve_context: %w - expected *PipelineState", core.ErrInvalidInput)
	}
	return nil
}

func (p *RetrieveContextPhase) ValidateOutput(ctx context.Context, output core.PhaseOutput) error {
	return output.Error
}

func (p *RetrieveContextPhase) Execute(ctx context.Context, input core.PhaseInput) (core.PhaseOutput, error) {
	state := input.Data.(*PipelineState)

	state.MemoryContext = p.memorySvc.ContextBlock(state.Project, state.ChapterIndex, state.MentionedCharacters)

	if !state.UseRAG || p.ragSvc == nil {
		return core.PhaseOutput{Data: state}, nil
	}

	query := strings.TrimSpace(state.ChapterTitle + "\n" + state.Summary)
	chunks := p.ragSvc.Retrieve(ctx, state.Project.ID, rag.KindChapter, query, p.ragTopK)
	state.RetrievedChunks = make([]string, len(chunks))
	for i, c := range chunks {
		state.RetrievedChunks[i] = c.Text
	}

	styleChunks := p.ragSvc.Retrieve(ctx, state.Project.ID, rag.KindStyle, query, 3)
	state.StyleChunks = make([]string, len(styleChunks))
	for i, c := range styleChunks {
		state.StyleChunks[i] = c.Text
	}

	return core.PhaseOutput{Data: state}, nil
}
