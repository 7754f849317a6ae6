package coherence

import (
	"strings"

	"github.com/vampirenirmal/storyforge/internal/story"
)

const continuityScoreThreshold = 6.0

// FusionInput gathers everything needed to fuse the LLM analyst's and
// graph validator's findings into one ContinuityValidation, filtering
// out anything already tracked as resolved or declared an intentional
// mystery.
type FusionInput struct {
	AnalystResult        AnalystResult
	GraphIssues          []story.Issue
	TrackedContradictions []story.TrackedContradiction
	IntentionalMysteries []story.IntentionalMystery
}

// Fuse combines the analyst and graph validator findings into the
// ContinuityValidation the pipeline's validate_continuity phase
// returns. Critical and high severity issues become SevereIssues and
// force Blocking; everything else is a MinorIssue. An issue matching
// an already-tracked, non-active contradiction or a declared
// intentional mystery is dropped before severity classification.
func Fuse(in FusionInput) story.ContinuityValidation {
	all := append(append([]story.Issue(nil), in.AnalystResult.Issues...), in.GraphIssues...)
	filtered := filterTrackedAndMysteries(all, in.TrackedContradictions, in.IntentionalMysteries)

	var severe, minor []story.Issue
	for _, issue := range filtered {
		if issue.Severity == story.SeverityCritical || issue.Severity == story.SeverityHigh {
			severe = append(severe, issue)
		} else {
			minor = append(minor, issue)
		}
	}

	blocking := len(severe) > 0 || len(in.AnalystResult.BlockingIssues) > 0
	if in.AnalystResult.CoherenceScore > 0 && in.AnalystResult.CoherenceScore < continuityScoreThreshold {
		blocking = true
	}

	return story.ContinuityValidation{
		SevereIssues:   severe,
		MinorIssues:    minor,
		Blocking:       blocking,
		CoherenceScore: in.AnalystResult.CoherenceScore,
		Summary:        in.AnalystResult.Summary,
	}
}

// filterTrackedAndMysteries drops issues whose detail text matches an
// inactive (resolved or intentional) tracked contradiction, or any
// declared intentional mystery's description or characters. Matching
// is substring-based, mirroring writing_pipeline.py's loose text
// comparison over free-form LLM output.
func filterTrackedAndMysteries(issues []story.Issue, tracked []story.TrackedContradiction, mysteries []story.IntentionalMystery) []story.Issue {
	out := make([]story.Issue, 0, len(issues))
	for _, issue := range issues {
		if matchesInactiveContradiction(issue, tracked) {
			continue
		}
		if matchesIntentionalMystery(issue, mysteries) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

func matchesInactiveContradiction(issue story.Issue, tracked []story.TrackedContradiction) bool {
	for _, t := range tracked {
		if t.Active() {
			continue
		}
		if t.Type == issue.Type && containsFold(issue.Detail, t.Description) {
			return true
		}
	}
	return false
}

func matchesIntentionalMystery(issue story.Issue, mysteries []story.IntentionalMystery) bool {
	if !strings.Contains(issue.Type, "contradiction") {
		return false
	}
	for _, m := range mysteries {
		for _, char := range m.Characters {
			if char != "" && containsFold(issue.Detail, char) {
				return true
			}
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
