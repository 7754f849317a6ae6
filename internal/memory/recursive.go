package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// Summarizer is the minimal completion shape recursive.go needs; it is
// satisfied by llm.AIClientAdapter so RecursiveMemory can drive
// summarization through the circuit-broken client without importing
// internal/llm directly.
type Summarizer interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const recursiveSystemPrompt = "You write terse, factual prose summaries of serial fiction for an internal continuity system. No meta-commentary, no headers, just the summary."

// RecursiveMemoryManager maintains the three-level summary pyramid:
// per-chapter summaries generated lazily, per-arc summaries
// regenerated every 5 chapters or at an arc boundary, and a global
// synopsis regenerated every 10 approved chapters.
type RecursiveMemoryManager struct {
	llm Summarizer
	cfg config.RecursiveMemoryConfig
}

func NewRecursiveMemoryManager(llm Summarizer, cfg config.RecursiveMemoryConfig) *RecursiveMemoryManager {
	return &RecursiveMemoryManager{llm: llm, cfg: cfg}
}

// EnsureChapterSummary returns the existing L1 summary for chapterIndex
// if present, otherwise generates a 2-3 sentence summary from content
// and appends it.
func (m *RecursiveMemoryManager) EnsureChapterSummary(ctx context.Context, mem *story.RecursiveMemory, chapterIndex int, content string) (string, error) {
	for _, s := range mem.ChapterSummaries {
		if s.Index == chapterIndex {
			return s.Summary, nil
		}
	}

	prompt := fmt.Sprintf("Summarize the following chapter in 2-3 sentences, focusing on plot-relevant events:\n\n%s", content)
	summary, err := m.llm.CompleteWithSystem(ctx, recursiveSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generating L1 chapter summary for chapter %d: %w", chapterIndex, err)
	}
	summary = strings.TrimSpace(summary)

	mem.ChapterSummaries = append(mem.ChapterSummaries, story.LevelSummary{
		Index: chapterIndex, Summary: summary, SourceLen: len(content), UpdatedAt: time.Now(),
	})
	return summary, nil
}

// MaybeRegenerateArcSummary regenerates the L2 summary for arcIndex
// when the arc has advanced by 5 chapters since the last regeneration
// or isArcBoundary is true (a new arc has started).
func (m *RecursiveMemoryManager) MaybeRegenerateArcSummary(ctx context.Context, mem *story.RecursiveMemory, arcIndex int, chaptersSinceLastRegen int, isArcBoundary bool, sourceChapterSummaries []string) error {
	if !isArcBoundary && chaptersSinceLastRegen < 5 {
		return nil
	}
	if len(sourceChapterSummaries) == 0 {
		return nil
	}

	prompt := fmt.Sprintf(
		"Write a roughly %d-word summary of this story arc, drawing on the chapter summaries below. Preserve character and plot continuity details a later chapter would need:\n\n%s",
		m.cfg.ArcSummaryWords, strings.Join(sourceChapterSummaries, "\n"),
	)
	summary, err := m.llm.CompleteWithSystem(ctx, recursiveSystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("generating L2 arc summary for arc %d: %w", arcIndex, err)
	}
	summary = strings.TrimSpace(summary)

	replaced := false
	for i, s := range mem.ArcSummaries {
		if s.Index == arcIndex {
			mem.ArcSummaries[i] = story.LevelSummary{Index: arcIndex, Summary: summary, SourceLen: len(strings.Join(sourceChapterSummaries, "")), UpdatedAt: time.Now()}
			replaced = true
			break
		}
	}
	if !replaced {
		mem.ArcSummaries = append(mem.ArcSummaries, story.LevelSummary{
			Index: arcIndex, Summary: summary, SourceLen: len(strings.Join(sourceChapterSummaries, "")), UpdatedAt: time.Now(),
		})
	}
	return nil
}

// MaybeRegenerateGlobalSynopsis regenerates L3 every 10 approved
// chapters.
func (m *RecursiveMemoryManager) MaybeRegenerateGlobalSynopsis(ctx context.Context, mem *story.RecursiveMemory, approvedChapterCount int) error {
	if approvedChapterCount == 0 || approvedChapterCount%10 != 0 {
		return nil
	}
	if len(mem.ArcSummaries) == 0 {
		return nil
	}

	var arcs []string
	for _, a := range mem.ArcSummaries {
		arcs = append(arcs, a.Summary)
	}
	prompt := fmt.Sprintf(
		"Write a roughly %d-word global synopsis of the entire story so far, drawing on the arc summaries below:\n\n%s",
		m.cfg.GlobalSynopsisWords, strings.Join(arcs, "\n\n"),
	)
	synopsis, err := m.llm.CompleteWithSystem(ctx, recursiveSystemPrompt, prompt)
	if err != nil {
		return fmt.Errorf("generating L3 global synopsis: %w", err)
	}
	mem.GlobalSynopsis = strings.TrimSpace(synopsis)
	mem.UpdatedAt = time.Now()
	return nil
}

// WorkingContext concatenates L3 + current-arc L2 + detailed L1
// summaries of the last RecentChapters chapters, in that order, to
// form a chapter's working context.
func (m *RecursiveMemoryManager) WorkingContext(mem *story.RecursiveMemory, currentArcIndex int) string {
	var b strings.Builder
	if mem.GlobalSynopsis != "" {
		b.WriteString("## Global Synopsis\n")
		b.WriteString(mem.GlobalSynopsis)
		b.WriteString("\n\n")
	}
	for _, a := range mem.ArcSummaries {
		if a.Index == currentArcIndex {
			b.WriteString("## Current Arc\n")
			b.WriteString(a.Summary)
			b.WriteString("\n\n")
			break
		}
	}

	recent := mem.ChapterSummaries
	if len(recent) > m.cfg.RecentChapters {
		recent = recent[len(recent)-m.cfg.RecentChapters:]
	}
	if len(recent) > 0 {
		b.WriteString("## Recent Chapters\n")
		for _, s := range recent {
			fmt.Fprintf(&b, "- Ch.%d: %s\n", s.Index, s.Summary)
		}
	}
	return b.String()
}
