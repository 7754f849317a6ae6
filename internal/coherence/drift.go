package coherence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/story"
)

const driftSystemPrompt = `You compare a character's behavior in a new chapter against their established traits and status history. Flag behavior that contradicts who they've been shown to be, scoring severity 1 (trivial) to 10 (completely out of character). Return strict JSON only.`

const driftSchemaJSON = `{
	"type": "object",
	"properties": {
		"drift_detected": {"type": "boolean"},
		"severity": {"type": "integer", "minimum": 1, "maximum": 10},
		"explanation": {"type": "string"}
	},
	"required": ["drift_detected"]
}`

var driftSchema *jsonschema.Schema

func init() {
	s, err := llm.CompileSchema("character-drift.json", []byte(driftSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("coherence: compiling character drift schema: %v", err))
	}
	driftSchema = s
}

// CharacterDriftDetector flags a character behaving inconsistently
// with their established traits and status history.
// Grounded on coherence/character_drift.py.
type CharacterDriftDetector struct {
	client *llm.Client
	cfg    config.CoherenceConfig
}

func NewCharacterDriftDetector(client *llm.Client, cfg config.CoherenceConfig) *CharacterDriftDetector {
	return &CharacterDriftDetector{client: client, cfg: cfg}
}

// CharacterDriftFinding is one character's drift analysis for a chapter.
type CharacterDriftFinding struct {
	Character     string
	DriftDetected bool
	Severity      int
	Explanation   string
}

type driftPayload struct {
	DriftDetected bool   `json:"drift_detected"`
	Severity      int    `json:"severity"`
	Explanation   string `json:"explanation"`
}

// Analyze runs the drift check for every character in facts that
// appears in chapterText, returning one finding per character plus the
// aggregate drift score: mean(severity)/10 across detected-drift
// findings, capped at 1.0. Returns a zero score and no findings when
// disabled by config.
func (d *CharacterDriftDetector) Analyze(ctx context.Context, chapterText string, facts []story.CharacterFact) ([]CharacterDriftFinding, float64, error) {
	if !d.cfg.CharacterDriftEnabled {
		return nil, 0, nil
	}

	var findings []CharacterDriftFinding
	var severitySum, detected float64

	for _, c := range facts {
		if !mentionsCharacter(chapterText, c.Name) {
			continue
		}
		finding, err := d.analyzeOne(ctx, chapterText, c)
		if err != nil {
			return nil, 0, fmt.Errorf("analyzing drift for %q: %w", c.Name, err)
		}
		findings = append(findings, finding)
		if finding.DriftDetected {
			severitySum += float64(finding.Severity)
			detected++
		}
	}

	if detected == 0 {
		return findings, 0, nil
	}
	score := (severitySum / detected) / 10.0
	if score > 1.0 {
		score = 1.0
	}
	return findings, score, nil
}

func (d *CharacterDriftDetector) analyzeOne(ctx context.Context, chapterText string, c story.CharacterFact) (CharacterDriftFinding, error) {
	prompt := fmt.Sprintf(
		"Character: %s\nTraits: %v\nCurrent status: %s\nStatus history: %v\n\nChapter excerpt:\n%s",
		c.Name, c.Traits, c.Status, c.StatusHistory, chapterText,
	)
	req := llm.Request{System: driftSystemPrompt, Prompt: prompt, JSON: true, Phase: "character_drift"}

	raw, err := d.client.CompleteStructured(ctx, req, driftSchema)
	if err != nil {
		return CharacterDriftFinding{}, err
	}
	var payload driftPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CharacterDriftFinding{}, fmt.Errorf("decoding character drift output: %w", err)
	}
	return CharacterDriftFinding{
		Character: c.Name, DriftDetected: payload.DriftDetected,
		Severity: payload.Severity, Explanation: payload.Explanation,
	}, nil
}

func mentionsCharacter(text, name string) bool {
	return name != "" && containsFold(text, name)
}
