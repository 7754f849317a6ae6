package memory

import (
	"fmt"
	"strings"

	"github.com/vampirenirmal/storyforge/internal/story"
)

// TruncatorInput is the facts a context block is built from, scoped to
// a chapter index so "recent" and "unresolved" sections can filter by
// it.
type TruncatorInput struct {
	Facts         story.ContinuityFacts
	ChapterIndex  int
	KnownCharacters []string // if non-nil, restricts section 1 to these names
}

// SmartContextTruncator composes a memory block within a MaxChars
// budget using a priority-weighted section cascade: mentioned
// characters get the remaining budget, recent events get
// max(500, remaining/3), active relations get max(500, remaining/4),
// unresolved threads get min(500, remaining). Sections are emitted
// only if they fit within their slice of the budget; the final section
// may be truncated with an ellipsis so the whole block still respects
// MaxChars.
type SmartContextTruncator struct {
	MaxChars int
}

func NewSmartContextTruncator(maxChars int) *SmartContextTruncator {
	return &SmartContextTruncator{MaxChars: maxChars}
}

// Build assembles the block. Each section is rendered independently
// and then clipped to its budget; remaining tracks chars left in
// MaxChars as sections are appended, so later sections see a budget
// shrunk by what earlier sections actually used (not their nominal
// allotment), matching "section 1 gets remaining budget" semantics for
// section 1 and nominal fractions of what's left for 2-4.
func (t *SmartContextTruncator) Build(in TruncatorInput) string {
	var b strings.Builder
	remaining := t.MaxChars

	if s := t.mentionedCharacters(in); s != "" {
		clipped, used := clipToBudget(s, remaining)
		if used > 0 {
			b.WriteString(clipped)
			remaining -= used
		}
	}

	if remaining > 0 {
		budget := maxInt(500, remaining/3)
		if s := t.recentEvents(in); s != "" {
			clipped, used := clipToBudget(s, minInt2(budget, remaining))
			if used > 0 {
				b.WriteString(clipped)
				remaining -= used
			}
		}
	}

	if remaining > 0 {
		budget := maxInt(500, remaining/4)
		if s := t.activeRelations(in); s != "" {
			clipped, used := clipToBudget(s, minInt2(budget, remaining))
			if used > 0 {
				b.WriteString(clipped)
				remaining -= used
			}
		}
	}

	if remaining > 0 {
		budget := minInt2(500, remaining)
		if s := t.unresolvedThreads(in); s != "" {
			clipped, used := clipToBudget(s, budget)
			if used > 0 {
				b.WriteString(clipped)
				remaining -= used
			}
		}
	}

	return b.String()
}

func (t *SmartContextTruncator) mentionedCharacters(in TruncatorInput) string {
	allowed := toSet(in.KnownCharacters)
	var lines []string
	for _, c := range in.Facts.Characters {
		if allowed != nil {
			if _, ok := allowed[lowerTrim(c.Name)]; !ok {
				continue
			}
		}
		line := fmt.Sprintf("- %s (%s): %s", c.Name, c.Role, c.CurrentState)
		if c.ArcStage != "" {
			line += fmt.Sprintf(" [arc: %s]", c.ArcStage)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	return "## Characters\n" + strings.Join(lines, "\n") + "\n\n"
}

func (t *SmartContextTruncator) recentEvents(in TruncatorInput) string {
	var lines []string
	for _, e := range in.Facts.Events {
		if e.ChapterIndex < in.ChapterIndex-5 {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Name, e.Summary))
	}
	if len(lines) == 0 {
		return ""
	}
	return "## Recent Events\n" + strings.Join(lines, "\n") + "\n\n"
}

func (t *SmartContextTruncator) activeRelations(in TruncatorInput) string {
	var lines []string
	for _, r := range in.Facts.Relations {
		lines = append(lines, fmt.Sprintf("- %s %s %s: %s", r.From, r.Type, r.To, r.CurrentState))
	}
	if len(lines) == 0 {
		return ""
	}
	return "## Relations\n" + strings.Join(lines, "\n") + "\n\n"
}

func (t *SmartContextTruncator) unresolvedThreads(in TruncatorInput) string {
	var lines []string
	for _, e := range in.Facts.Events {
		if !e.Unresolved() {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Name, strings.Join(e.UnresolvedThreads, "; ")))
	}
	if len(lines) == 0 {
		return ""
	}
	return "## Unresolved Threads\n" + strings.Join(lines, "\n") + "\n"
}

func toSet(names []string) map[string]struct{} {
	if names == nil {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[lowerTrim(n)] = struct{}{}
	}
	return set
}

// clipToBudget truncates s to at most budget chars, appending an
// ellipsis when it does. Returns the clipped string and how many
// chars it actually consumed (0 if budget <= 0).
func clipToBudget(s string, budget int) (string, int) {
	if budget <= 0 {
		return "", 0
	}
	r := []rune(s)
	if len(r) <= budget {
		return s, len(r)
	}
	const ellipsis = "..."
	if budget <= len(ellipsis) {
		clipped := string(r[:budget])
		return clipped, len(clipped)
	}
	clipped := string(r[:budget-len(ellipsis)]) + ellipsis
	return clipped, len([]rune(clipped))
}

func minInt2(a, b int) int {
	if a < b {
		return a
	}
	return b
}
