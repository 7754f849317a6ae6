package coherence

import (
	"context"
	"fmt"

	"github.com/vampirenirmal/storyforge/internal/memory"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// GraphValidator is the structural half of continuity validation: it
// checks a chapter draft's characters against the continuity graph for
// the resurrection pattern and orphaned plot threads, without involving
// an LLM. Grounded on memory_service.py's detect_character_contradictions
// and find_orphaned_plot_threads, wrapped over internal/memory.Queries.
type GraphValidator struct {
	queries *memory.Queries
}

func NewGraphValidator(queries *memory.Queries) *GraphValidator {
	return &GraphValidator{queries: queries}
}

// GraphValidatorInput names the characters mentioned in the draft so
// the validator only scans characters actually present in it.
type GraphValidatorInput struct {
	ProjectID          string
	ChapterIndex        int
	MentionedCharacters []string
}

// Validate returns story.Issue entries for every contradiction and
// orphaned thread the graph surfaces for this chapter.
func (v *GraphValidator) Validate(ctx context.Context, in GraphValidatorInput) ([]story.Issue, error) {
	var issues []story.Issue

	for _, name := range in.MentionedCharacters {
		contradictions, err := v.queries.DetectCharacterContradictions(ctx, in.ProjectID, name)
		if err != nil {
			return nil, fmt.Errorf("detecting contradictions for %q: %w", name, err)
		}
		for _, c := range contradictions {
			issues = append(issues, story.Issue{
				Type:     "character_contradiction",
				Severity: story.SeverityHigh,
				Detail: fmt.Sprintf("%s was %q in chapter %d then %q in chapter %d with no explanation.",
					c.Character, c.FromStatus, c.FromChapter, c.ToStatus, c.ToChapter),
			})
		}
	}

	orphans, err := v.queries.FindOrphanedPlotThreads(ctx, in.ProjectID, in.ChapterIndex)
	if err != nil {
		return nil, fmt.Errorf("finding orphaned plot threads: %w", err)
	}
	for _, o := range orphans {
		issues = append(issues, story.Issue{
			Type:     "orphaned_plot_thread",
			Severity: story.SeverityMedium,
			Detail:   fmt.Sprintf("%q has been unresolved since chapter %d.", o.Event, o.LastMentioned),
		})
	}

	return issues, nil
}
