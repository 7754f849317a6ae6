// Package pipeline implements the chapter generation state graph:
// collect_context -> retrieve_context -> plan_chapter -> write_chapter
// -> validate_continuity -> critic -> quality_gate, looping back to
// write_chapter on "revise" until max_revisions or "done". Grounded on
// original_source/backend/app/services/writing_pipeline.py, translated
// from LangGraph's conditional-edge state machine into a core.Phase
// chain plus an explicit revision for-loop driven by ChapterPipeline
// itself, since the quality-gate back-edge has no equivalent in a
// linear phase list.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/vampirenirmal/storyforge/internal/core"
)

// Sentinel errors covering the pipeline's error taxonomy. Each is wrapped
// into a *core.PhaseError by the phase that detects it so retry
// behavior (core.Phase.CanRetry) stays centralized.
var (
	// ErrPlanNotAccepted is returned when chapter generation is
	// requested against a project whose Plan.Status isn't "accepted".
	ErrPlanNotAccepted = errors.New("pipeline: project plan is not accepted")
	ErrPlanMissing     = errors.New("pipeline: project has no plan")

	// ErrChapterNotFound/ErrChapterNotOwned mirror storage.ErrNotFound/
	// ErrNotOwned at the pipeline boundary.
	ErrChapterNotFound = errors.New("pipeline: chapter not found")
	ErrChapterNotOwned = errors.New("pipeline: chapter not owned by requesting user")

	// ErrLLMUnavailable is the terminal form of a transient LLM
	// failure that exhausted the client's own retry budget.
	ErrLLMUnavailable = errors.New("pipeline: llm unavailable after retries")

	// ErrCancellationDeadline marks a context cancellation that must
	// abort without persisting partial state.
	ErrCancellationDeadline = errors.New("pipeline: cancelled before a safe persistence point")
)

// DegradedWarning is a non-fatal signal from a phase that continued
// in degraded mode. It is carried on PipelineState
// rather than returned as an error, since it never blocks the pipeline.
type DegradedWarning struct {
	Source string // "graph", "vector", "rag_update"
	Detail string
}

// RAGUpdateFailed is recorded on approval when re-indexing the
// approved chapter fails.
type RAGUpdateFailed struct {
	DocumentID string
	Cause      error
}

func (e *RAGUpdateFailed) Error() string {
	return fmt.Sprintf("rag update failed for document %s: %v", e.DocumentID, e.Cause)
}

func (e *RAGUpdateFailed) Unwrap() error { return e.Cause }

// BeatTimeout records a beat that failed to produce content within its
// phase timeout.
type BeatTimeout struct {
	BeatIndex int
	Elapsed   time.Duration
}

func (e *BeatTimeout) Error() string {
	return fmt.Sprintf("beat %d timed out after %s", e.BeatIndex, e.Elapsed)
}

// ConcurrentMetadataConflict is retried up to
// storage.maxMetadataConflictRetries times by the repository itself
//; the pipeline only sees it if every retry was exhausted.
type ConcurrentMetadataConflict struct {
	ProjectID string
	Cause     error
}

func (e *ConcurrentMetadataConflict) Error() string {
	return fmt.Sprintf("concurrent metadata conflict on project %s: %v", e.ProjectID, e.Cause)
}

func (e *ConcurrentMetadataConflict) Unwrap() error { return e.Cause }

// newPhaseError wraps cause as a non-retryable core.PhaseError carrying
// partial (the best-effort PipelineState at the point of failure, so a
// caller can inspect how far the chapter got).
func newPhaseError(phase string, attempt int, cause error, partial *PipelineState) *core.PhaseError {
	return &core.PhaseError{
		Phase:     phase,
		Attempt:   attempt,
		Cause:     cause,
		Partial:   partial,
		Retryable: core.IsRetryable(cause),
		Timestamp: time.Now(),
	}
}
