// Package coherence implements the optional coherence-gate specialists
// that run after a chapter draft exists: the LLM consistency analyst,
// the graph validator, their severity fusion, and the
// drift/voice/POV/Chekhov/semantic gates. Grounded on
// original_source/backend/app/services/agents/consistency_analyst.py
// and original_source/backend/app/services/coherence/*.py.
package coherence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/story"
)

const analystSystemPrompt = `You are a narrative consistency analyst. Given a chapter, its memory context, the story bible, and excerpts from the last five chapters, find contradictions, timeline issues, character inconsistencies, and world-rule violations. Return strict JSON only.`

const analystSchemaJSON = `{
	"type": "object",
	"properties": {
		"contradictions": {"type": "array"},
		"timeline_issues": {"type": "array"},
		"character_inconsistencies": {"type": "array"},
		"world_rule_violations": {"type": "array"},
		"overall_coherence_score": {"type": "number", "minimum": 0, "maximum": 10},
		"summary": {"type": "string"},
		"blocking_issues": {"type": "array"}
	},
	"required": ["overall_coherence_score"]
}`

var analystSchema *jsonschema.Schema

func init() {
	s, err := llm.CompileSchema("consistency-analyst.json", []byte(analystSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("coherence: compiling consistency analyst schema: %v", err))
	}
	analystSchema = s
}

// AnalystInput is what the Consistency Analyst needs to judge a chapter.
type AnalystInput struct {
	ChapterText      string
	MemoryContext    string
	StoryBible       story.StoryBible
	RecentChapters   []string // last 5 chapter excerpts
}

// analystFinding is one item in any of the analyst's finding lists.
type analystFinding struct {
	Type     string `json:"type"`
	Detail   string `json:"detail"`
	Severity string `json:"severity"`
}

type analystPayload struct {
	Contradictions          []analystFinding `json:"contradictions"`
	TimelineIssues          []analystFinding `json:"timeline_issues"`
	CharacterInconsistencies []analystFinding `json:"character_inconsistencies"`
	WorldRuleViolations     []analystFinding `json:"world_rule_violations"`
	OverallCoherenceScore   float64          `json:"overall_coherence_score"`
	Summary                 string           `json:"summary"`
	BlockingIssues          []string         `json:"blocking_issues"`
}

// AnalystResult is the Consistency Analyst's verdict, converted into
// story.Issue for fusion.go to consume alongside the graph validator's
// findings.
type AnalystResult struct {
	Issues         []story.Issue
	CoherenceScore float64
	Summary        string
	BlockingIssues []string
}

// Analyst runs the LLM Consistency Analyst.
type Analyst struct {
	client *llm.Client
}

func NewAnalyst(client *llm.Client) *Analyst {
	return &Analyst{client: client}
}

func (a *Analyst) Analyze(ctx context.Context, in AnalystInput) (AnalystResult, error) {
	prompt := buildAnalystPrompt(in)
	req := llm.Request{System: analystSystemPrompt, Prompt: prompt, JSON: true, Phase: "consistency_analyst"}

	raw, err := a.client.CompleteStructured(ctx, req, analystSchema)
	if err != nil {
		return AnalystResult{}, fmt.Errorf("running consistency analyst: %w", err)
	}

	var payload analystPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return AnalystResult{}, fmt.Errorf("decoding consistency analyst output: %w", err)
	}

	var issues []story.Issue
	for _, list := range [][]analystFinding{
		payload.Contradictions, payload.TimelineIssues,
		payload.CharacterInconsistencies, payload.WorldRuleViolations,
	} {
		for _, f := range list {
			issues = append(issues, story.Issue{
				Type: f.Type, Detail: f.Detail, Severity: severityFromString(f.Severity),
			})
		}
	}

	return AnalystResult{
		Issues: issues, CoherenceScore: payload.OverallCoherenceScore,
		Summary: payload.Summary, BlockingIssues: payload.BlockingIssues,
	}, nil
}

func severityFromString(s string) story.IssueSeverity {
	switch s {
	case "critical":
		return story.SeverityCritical
	case "high":
		return story.SeverityHigh
	case "low":
		return story.SeverityLow
	default:
		return story.SeverityMedium
	}
}

func buildAnalystPrompt(in AnalystInput) string {
	return fmt.Sprintf(
		"Memory context:\n%s\n\nWorld rules: %v\nEstablished facts: %v\n\nRecent chapters:\n%v\n\nChapter to analyze:\n%s",
		in.MemoryContext, in.StoryBible.WorldRules, in.StoryBible.EstablishedFacts, in.RecentChapters, in.ChapterText,
	)
}
