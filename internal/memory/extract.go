package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/story"
)

const extractionSystemPrompt = `You are a narrative continuity assistant. Extract continuity facts from the chapter text as strict JSON with keys: summary, characters, locations, relations, events, objects, character_locations. Use snake_case ASCII keys. Leave a field empty if the chapter doesn't mention it. Return only the JSON object, no prose.`

const extractionSchemaJSON = `{
	"type": "object",
	"properties": {
		"summary": {"type": "string"},
		"characters": {"type": "array"},
		"locations": {"type": "array"},
		"relations": {"type": "array"},
		"events": {"type": "array"},
		"objects": {"type": "array"},
		"character_locations": {"type": "array"}
	},
	"required": ["characters", "locations", "relations", "events"]
}`

var extractionSchema *jsonschema.Schema

func init() {
	s, err := llm.CompileSchema("fact-extraction.json", []byte(extractionSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("memory: compiling fact extraction schema: %v", err))
	}
	extractionSchema = s
}

// extractionPayload mirrors the raw JSON the LLM returns before it is
// converted into story.ContinuityFacts proper.
type extractionPayload struct {
	Summary            string                         `json:"summary"`
	Characters         []story.CharacterFact          `json:"characters"`
	Locations          []story.LocationFact           `json:"locations"`
	Relations          []extractedRelation            `json:"relations"`
	Events             []story.EventFact              `json:"events"`
	Objects            []story.ObjectFact             `json:"objects"`
	CharacterLocations []story.CharacterLocationFact  `json:"character_locations"`
}

// extractedRelation matches the LLM's from/to/type vocabulary before
// conversion to story.RelationFact.
type extractedRelation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Type         string `json:"type"`
	Detail       string `json:"detail"`
	StartChapter int    `json:"start_chapter"`
	CurrentState string `json:"current_state"`
}

func (p extractionPayload) toContinuityFacts() story.ContinuityFacts {
	facts := story.ContinuityFacts{
		Characters: p.Characters,
		Locations:  p.Locations,
		Events:     p.Events,
		Objects:    p.Objects,
		CharacterLocations: p.CharacterLocations,
	}
	for _, r := range p.Relations {
		facts.Relations = append(facts.Relations, story.RelationFact{
			From: r.From, To: r.To, Type: r.Type, Detail: r.Detail,
			StartChapter: r.StartChapter, CurrentState: r.CurrentState,
		})
	}
	return facts
}

const maxExtractionChunkChars = 10000

// selectExtractionChunks returns the text windows extract_facts should
// run the LLM over: the whole chapter if it's within budget, otherwise
// its head and tail (the middle is assumed to be covered by the
// running continuity already built from earlier chapters, and dialogue
// payoffs tend to cluster at the start and end of a chapter).
func selectExtractionChunks(chapterText string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = maxExtractionChunkChars
	}
	r := []rune(chapterText)
	if len(r) <= maxChars {
		return []string{chapterText}
	}
	return []string{string(r[:maxChars]), string(r[len(r)-maxChars:])}
}

// Extractor pulls continuity facts out of chapter prose via a
// schema-validated LLM completion, chunked over head+tail windows for
// chapters longer than maxExtractionChunkChars.
type Extractor struct {
	client *llm.Client
}

func NewExtractor(client *llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract returns the merged facts freshly extracted from chapterText.
// The returned facts are NOT yet merged against a project's running
// continuity; callers pass them to MergeContinuity at approval time.
func (x *Extractor) Extract(ctx context.Context, chapterText string, chapterIndex int) (story.ContinuityFacts, error) {
	if strings.TrimSpace(chapterText) == "" {
		return story.ContinuityFacts{}, nil
	}

	var merged story.ContinuityFacts
	for _, chunk := range selectExtractionChunks(chapterText, maxExtractionChunkChars) {
		payload, err := x.extractChunk(ctx, chunk)
		if err != nil {
			return story.ContinuityFacts{}, err
		}
		merged = MergeContinuity(merged, payload.toContinuityFacts(), chapterIndex)
	}
	return merged, nil
}

func (x *Extractor) extractChunk(ctx context.Context, chunk string) (extractionPayload, error) {
	req := llm.Request{
		System: extractionSystemPrompt,
		Prompt: fmt.Sprintf("Chapter:\n%s", chunk),
		JSON:   true,
		Phase:  "memory_extraction",
	}

	raw, err := x.client.CompleteStructured(ctx, req, extractionSchema)
	if err != nil {
		return extractionPayload{}, fmt.Errorf("extracting continuity facts: %w", err)
	}

	var payload extractionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return extractionPayload{}, fmt.Errorf("decoding extracted facts: %w", err)
	}
	return payload, nil
}
