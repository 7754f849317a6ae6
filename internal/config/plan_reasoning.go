package config

import "strings"

// PlanReasoningConfig toggles the reasoning-model variant for planning
// calls on the first N chapters, every Interval-th chapter after that,
// or whenever the chapter's plan entry mentions one of Keywords.
type PlanReasoningConfig struct {
	Enabled       bool     `yaml:"enabled"`
	FirstChapters int      `yaml:"first_chapters" validate:"min=0"`
	Interval      int      `yaml:"interval" validate:"min=0"`
	Keywords      []string `yaml:"keywords"`
}

// Applies reports whether chapter (1-based) should use the reasoning
// variant, given the plan chapter's free text (title/summary).
func (c PlanReasoningConfig) Applies(chapterIndex int, planText string) bool {
	if !c.Enabled {
		return false
	}
	if c.FirstChapters > 0 && chapterIndex <= c.FirstChapters {
		return true
	}
	if c.Interval > 0 && chapterIndex%c.Interval == 0 {
		return true
	}
	lower := strings.ToLower(planText)
	for _, kw := range c.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func defaultPlanReasoningConfig() PlanReasoningConfig {
	return PlanReasoningConfig{
		Enabled:       true,
		FirstChapters: 2,
		Interval:      10,
		Keywords:      []string{"climax", "twist", "reveal", "finale"},
	}
}
