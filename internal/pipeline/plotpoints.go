package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/story"
)

const plotPointSystemPrompt = "You check a chapter of serial fiction for plot-point coverage. Return strict JSON only."

const plotPointSchemaJSON = `{
	"type": "object",
	"properties": {
		"covered_points": {"type": "array", "items": {"type": "string"}},
		"missing_points": {"type": "array", "items": {"type": "string"}},
		"forbidden_violations": {"type": "array", "items": {"type": "string"}},
		"coverage_score": {"type": "number", "minimum": 0, "maximum": 10},
		"explanation": {"type": "string"}
	},
	"required": ["covered_points", "missing_points", "forbidden_violations"]
}`

var plotPointSchema *jsonschema.Schema

func init() {
	s, err := llm.CompileSchema("plot-point-validation.json", []byte(plotPointSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("pipeline: compiling plot point schema: %v", err))
	}
	plotPointSchema = s
}

// PlotPointChecker verifies that a chapter draft covers its required
// plot points and avoids its forbidden actions. Grounded on
// writing_pipeline.py's _validate_plot_points; each missing point or
// forbidden-action hit is blocking, which
// story.PlotPointValidation.IsBlocking already encodes.
type PlotPointChecker struct {
	client *llm.Client
}

func NewPlotPointChecker(client *llm.Client) *PlotPointChecker {
	return &PlotPointChecker{client: client}
}

func (c *PlotPointChecker) Check(ctx context.Context, chapterText string, required, forbidden []string) (story.PlotPointValidation, error) {
	if strings.TrimSpace(chapterText) == "" {
		return story.PlotPointValidation{Explanation: "no chapter text to validate"}, nil
	}
	if len(required) == 0 && len(forbidden) == 0 {
		return story.PlotPointValidation{}, nil
	}

	prompt := fmt.Sprintf(
		"Check this chapter for plot point coverage.\n\nCHAPTER:\n%s\n\nREQUIRED PLOT POINTS (all must be present):\n%s\n\nFORBIDDEN ACTIONS (must NOT appear):\n%s\n\nReturn strict JSON with covered_points, missing_points, forbidden_violations, coverage_score (0-10), explanation.",
		chapterText, bulletList(required), bulletList(forbidden),
	)

	raw, err := c.client.CompleteStructured(ctx, llm.Request{
		System: plotPointSystemPrompt, Prompt: prompt, MaxTokens: 500, Phase: "validate_continuity.plot_points",
	}, plotPointSchema)
	if err != nil {
		return story.PlotPointValidation{}, fmt.Errorf("checking plot points: %w", err)
	}

	var payload struct {
		CoveredPoints       []string `json:"covered_points"`
		MissingPoints       []string `json:"missing_points"`
		ForbiddenViolations []string `json:"forbidden_violations"`
		CoverageScore       float64  `json:"coverage_score"`
		Explanation         string   `json:"explanation"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return story.PlotPointValidation{}, fmt.Errorf("decoding plot point response: %w", err)
	}

	return story.PlotPointValidation{
		CoveredPoints:       payload.CoveredPoints,
		MissingPoints:       payload.MissingPoints,
		ForbiddenViolations: payload.ForbiddenViolations,
		CoverageScore:       payload.CoverageScore,
		Explanation:         payload.Explanation,
	}, nil
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	var b strings.Builder
	for _, i := range items {
		fmt.Fprintf(&b, "- %s\n", i)
	}
	return b.String()
}
