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

const povSystemPrompt = `You are an expert in narrative point of view. Detect POV violations: forbidden_thoughts (access to a non-POV character's internal thoughts), impossible_knowledge (the POV character narrates something they couldn't know), and accidental_omniscience (the narration slips into an all-knowing voice). Return strict JSON only.`

const povSchemaJSON = `{
	"type": "object",
	"properties": {
		"violations": {"type": "array"},
		"valid": {"type": "boolean"},
		"overall_assessment": {"type": "string"}
	},
	"required": ["valid"]
}`

var povSchema *jsonschema.Schema

func init() {
	s, err := llm.CompileSchema("pov-validator.json", []byte(povSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("coherence: compiling pov validator schema: %v", err))
	}
	povSchema = s
}

// povGuideline documents what's allowed and forbidden for a POV type,
// used only to enrich prompts and surfaced for authoring tools; the
// validator itself delegates the actual check to the LLM.
type povGuideline struct {
	Allowed  []string
	Forbidden []string
	Tips     []string
}

var povGuidelines = map[story.POVType]povGuideline{
	story.POVFirstPerson: {
		Allowed:   []string{"the narrator's own thoughts and feelings", "the narrator's observations and deductions", "dialogue the narrator overhears"},
		Forbidden: []string{"other characters' thoughts", "events the narrator wasn't present for", "facts the narrator couldn't know"},
		Tips:      []string{"hedge other characters' inner state with 'seemed'/'appeared'", "limit information to what the narrator can observe"},
	},
	story.POVLimited: {
		Allowed:   []string{"the POV character's thoughts and feelings", "the POV character's observations", "what the POV character can infer"},
		Forbidden: []string{"other characters' thoughts (beyond inference)", "events outside the POV character's presence", "secrets not yet revealed to the POV character"},
		Tips:      []string{"stay anchored to the POV character", "use free indirect style for their thoughts"},
	},
	story.POVOmniscient: {
		Allowed: []string{"every character's thoughts", "past, present, and future information", "narratorial commentary on the action"},
		Tips:    []string{"avoid switching focus too abruptly", "keep one consistent narratorial voice"},
	},
	story.POVObjective: {
		Allowed:   []string{"observable actions", "dialogue", "physical description"},
		Forbidden: []string{"any internal thought", "unexpressed emotion", "unverbalized motivation"},
		Tips:      []string{"show emotion through action and gesture", "keep a neutral 'camera' style"},
	},
}

// GetPOVGuidelines returns the allowed/forbidden/tips guidance for a
// POV type, or a zero-value guideline for an unrecognized type.
func GetPOVGuidelines(povType story.POVType) (allowed, forbidden, tips []string) {
	g := povGuidelines[povType]
	return g.Allowed, g.Forbidden, g.Tips
}

type povPayload struct {
	Violations        []povViolation `json:"violations"`
	Valid             bool           `json:"valid"`
	OverallAssessment string         `json:"overall_assessment"`
}

type povViolation struct {
	Type              string `json:"type"`
	Severity          string `json:"severity"`
	Location          string `json:"location"`
	CharacterInvolved string `json:"character_involved"`
	Explanation       string `json:"explanation"`
	SuggestedFix      string `json:"suggested_fix"`
}

// POVResult is the validator's verdict for one chapter.
type POVResult struct {
	POVCharacter string
	POVType      story.POVType
	Valid        bool
	Issues       []story.Issue
	Note         string
}

// POVValidator checks a chapter for point-of-view violations (spec
// §4.7). Grounded on coherence/pov_validator.py.
type POVValidator struct {
	client *llm.Client
	cfg    config.CoherenceConfig
}

func NewPOVValidator(client *llm.Client, cfg config.CoherenceConfig) *POVValidator {
	return &POVValidator{client: client, cfg: cfg}
}

// Validate checks POV consistency. Omniscient POV always passes
// without calling the LLM, matching the original short-circuit.
func (v *POVValidator) Validate(ctx context.Context, chapterText, povCharacter string, povType story.POVType, knownInformation []string) (POVResult, error) {
	if !v.cfg.POVValidatorEnabled {
		return POVResult{POVCharacter: povCharacter, POVType: povType, Valid: true, Note: "POV validation disabled"}, nil
	}
	if povType == "" {
		povType = story.POVType(v.cfg.POVDefaultType)
	}
	if povType == story.POVOmniscient {
		return POVResult{
			POVCharacter: povCharacter, POVType: povType, Valid: true,
			Note: "omniscient POV allows access to all thoughts",
		}, nil
	}

	prompt := buildPOVPrompt(chapterText, povCharacter, povType, knownInformation)
	req := llm.Request{System: povSystemPrompt, Prompt: prompt, JSON: true, Phase: "pov_validator"}

	raw, err := v.client.CompleteStructured(ctx, req, povSchema)
	if err != nil {
		return POVResult{}, fmt.Errorf("running pov validator: %w", err)
	}
	var payload povPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return POVResult{}, fmt.Errorf("decoding pov validator output: %w", err)
	}

	issues := make([]story.Issue, 0, len(payload.Violations))
	for _, v := range payload.Violations {
		issues = append(issues, story.Issue{
			Type: "pov_" + v.Type, Severity: severityFromString(v.Severity),
			Detail: v.Explanation,
		})
	}

	return POVResult{
		POVCharacter: povCharacter, POVType: povType, Valid: payload.Valid, Issues: issues,
		Note: payload.OverallAssessment,
	}, nil
}

func buildPOVPrompt(chapterText, povCharacter string, povType story.POVType, knownInformation []string) string {
	return fmt.Sprintf(
		"POV character: %s\nPOV type: %s\nKnown to POV character: %v\n\nChapter:\n%s",
		povCharacter, povType, knownInformation, chapterText,
	)
}
