package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vampirenirmal/storyforge/internal/storage"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// minWorldRuleImpactChars mirrors _extract_world_rules' bare `> 20`
// literal for which event impacts are substantial enough to be world
// rule candidates.
const minWorldRuleImpactChars = 20

// FactPromotion is one recurring observation promoted into the story
// bible, returned for logging/inspection alongside the mutated
// project.
type FactPromotion struct {
	Section   string
	Key       string
	Value     string
	Frequency int
}

// FactPromotionResult is what one project's promotion run produced.
type FactPromotionResult struct {
	ProjectID string
	Promoted  []FactPromotion
}

// FactPromoter counts recurring character traits, motivations,
// location rules, and world-rule-shaped event impacts across a
// project's continuity, promoting anything at or above threshold into
// StoryBible.PromotedFacts. Ported from promote_facts_to_bible and its
// _analyze_*/_extract_world_rules helpers.
type FactPromoter struct {
	projects  storage.ProjectRepository
	threshold int
	now       func() time.Time
	logger    *slog.Logger
}

func NewFactPromoter(projects storage.ProjectRepository, threshold int, now func() time.Time, logger *slog.Logger) *FactPromoter {
	if threshold < 1 {
		threshold = 1
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FactPromoter{projects: projects, threshold: threshold, now: now, logger: logger.With("component", "fact_promoter")}
}

// PromoteProject analyzes a single project's continuity and appends
// newly-crossed-threshold facts to its story bible.
func (f *FactPromoter) PromoteProject(ctx context.Context, projectID string) (FactPromotionResult, error) {
	var result FactPromotionResult
	result.ProjectID = projectID

	err := f.projects.UpdateMetadata(ctx, projectID, func(p *story.Project) error {
		result.Promoted = f.analyzeAndPromote(p)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("promoting facts for project %s: %w", projectID, err)
	}

	f.logger.Info("promoted facts to story bible", "project_id", projectID, "count", len(result.Promoted))
	return result, nil
}

func (f *FactPromoter) analyzeAndPromote(p *story.Project) []FactPromotion {
	var promoted []FactPromotion

	for charName, traits := range analyzeCharacterTraits(p.Continuity.Characters) {
		for trait, count := range traits {
			if count < f.threshold {
				continue
			}
			if f.addPromotedFact(p, "character_trait", fmt.Sprintf("%s:%s", charName, trait), trait, count) {
				promoted = append(promoted, FactPromotion{Section: "character_trait", Key: charName, Value: trait, Frequency: count})
			}
		}
	}

	for locName, rules := range analyzeLocationRules(p.Continuity.Locations) {
		for rule, count := range rules {
			if count < f.threshold {
				continue
			}
			if f.addPromotedFact(p, "location_rule", fmt.Sprintf("%s:%s", locName, rule), rule, count) {
				promoted = append(promoted, FactPromotion{Section: "location_rule", Key: locName, Value: rule, Frequency: count})
			}
		}
	}

	for rule, count := range extractWorldRules(p.Continuity.Events) {
		if count < f.threshold {
			continue
		}
		if f.addPromotedFact(p, "world_rule", rule, rule, count) {
			promoted = append(promoted, FactPromotion{Section: "world_rule", Key: rule, Value: rule, Frequency: count})
			p.Bible.WorldRules = appendUnique(p.Bible.WorldRules, rule)
		}
	}

	return promoted
}

// addPromotedFact appends a PromotedFact if (section, key) isn't
// already recorded, confidence capped at 1.0 per frequency/10 (the
// Python's min(1.0, frequency/10)).
func (f *FactPromoter) addPromotedFact(p *story.Project, section, key, value string, frequency int) bool {
	for _, existing := range p.Bible.PromotedFacts {
		if existing.Section == section && existing.Key == key {
			return false
		}
	}
	confidence := float64(frequency) / 10.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	p.Bible.PromotedFacts = append(p.Bible.PromotedFacts, story.PromotedFact{
		Section:    section,
		Key:        key,
		Value:      value,
		Confidence: confidence,
		PromotedAt: f.now(),
	})
	return true
}

func analyzeCharacterTraits(characters []story.CharacterFact) map[string]map[string]int {
	counts := make(map[string]map[string]int)
	for _, c := range characters {
		if c.Name == "" {
			continue
		}
		byTrait := counts[c.Name]
		if byTrait == nil {
			byTrait = make(map[string]int)
			counts[c.Name] = byTrait
		}
		for _, trait := range c.Traits {
			if trait != "" {
				byTrait[trait]++
			}
		}
		for _, mot := range c.Motivations {
			if mot == "" {
				continue
			}
			byTrait["motivation:"+mot]++
		}
	}
	return counts
}

func analyzeLocationRules(locations []story.LocationFact) map[string]map[string]int {
	counts := make(map[string]map[string]int)
	for _, l := range locations {
		if l.Name == "" {
			continue
		}
		byRule := counts[l.Name]
		if byRule == nil {
			byRule = make(map[string]int)
			counts[l.Name] = byRule
		}
		for _, rule := range l.Rules {
			if rule != "" {
				byRule[rule]++
			}
		}
	}
	return counts
}

func extractWorldRules(events []story.EventFact) map[string]int {
	counts := make(map[string]int)
	for _, e := range events {
		impact := strings.TrimSpace(strings.ToLower(e.Impact))
		if len(impact) > minWorldRuleImpactChars {
			counts[impact]++
		}
	}
	return counts
}

func appendUnique(rules []string, rule string) []string {
	for _, r := range rules {
		if r == rule {
			return rules
		}
	}
	return append(rules, rule)
}

// PromoteAllProjects runs PromoteProject over every project on disk,
// ported from _promote_all_project_facts_async (which filters to
// DRAFT/IN_PROGRESS projects; storyforge has no project status field,
// so every project is in scope, documented in DESIGN.md).
func PromoteAllProjects(ctx context.Context, f *FactPromoter, lister projectLister) ([]FactPromotionResult, error) {
	ids, err := lister.ListProjectIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects for bulk fact promotion: %w", err)
	}
	results := make([]FactPromotionResult, 0, len(ids))
	for _, id := range ids {
		res, err := f.PromoteProject(ctx, id)
		if err != nil {
			f.logger.Warn("fact promotion failed for project", "project_id", id, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}
