package coherence

import (
	"regexp"
	"strings"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/rag"
)

// dialoguePattern extracts quoted dialogue: "text" or a line opening
// with an em-dash. Grounded on coherence/voice_analyzer.py's regex set
// (simplified to the two patterns that carry over cleanly to English
// prose rather than the original's French speaker-verb heuristics).
var dialoguePattern = regexp.MustCompile(`"([^"]{5,})"`)
var dashDialoguePattern = regexp.MustCompile(`(?m)^—\s*([^—\n]{5,})`)

// ExtractDialogues pulls quoted and em-dash dialogue lines out of a
// chapter's text.
func ExtractDialogues(text string) []string {
	var out []string
	for _, m := range dialoguePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	for _, m := range dashDialoguePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// VoiceAnalysis is one character's voice-consistency result for a
// chapter.
type VoiceAnalysis struct {
	Character          string
	ConsistencyScore   float64
	AnalysisAvailable  bool
	DriftDetected      bool
	DialoguesAnalyzed  int
	ReferenceDialogues int
	Outliers           []string
	Reason             string
}

// VoiceConsistencyAnalyzer compares a character's new dialogue against
// a reference set of previously validated dialogue embeddings,
// flagging drift when the average similarity falls below the
// configured threshold. Grounded on
// coherence/voice_analyzer.py. Degrades to analysis_available=false
// without an embedder or with too few reference dialogues, exactly as
// the original does without sentence-transformers installed.
type VoiceConsistencyAnalyzer struct {
	embedder rag.Embedder
	cfg      config.CoherenceConfig
}

func NewVoiceConsistencyAnalyzer(embedder rag.Embedder, cfg config.CoherenceConfig) *VoiceConsistencyAnalyzer {
	return &VoiceConsistencyAnalyzer{embedder: embedder, cfg: cfg}
}

// Analyze scores newDialogues against referenceDialogues (previously
// validated lines for this character, typically retrieved from the
// RAG style-memory collection).
func (a *VoiceConsistencyAnalyzer) Analyze(character string, newDialogues, referenceDialogues []string) VoiceAnalysis {
	if !a.cfg.VoiceAnalyzerEnabled {
		return VoiceAnalysis{Character: character, ConsistencyScore: 1.0, Reason: "voice analysis disabled"}
	}
	if a.embedder == nil || len(newDialogues) == 0 {
		return VoiceAnalysis{Character: character, ConsistencyScore: 1.0, Reason: "no model or dialogues available"}
	}

	minDialogues := a.cfg.VoiceMinDialoguesForAnalysis
	if minDialogues <= 0 {
		minDialogues = 3
	}
	if len(referenceDialogues) < minDialogues {
		return VoiceAnalysis{Character: character, ConsistencyScore: 1.0, Reason: "insufficient historical dialogues"}
	}

	refEmbeddings := make([][]float32, len(referenceDialogues))
	for i, d := range referenceDialogues {
		refEmbeddings[i] = a.embedder.Embed(d)
	}

	var outliers []string
	var scoreSum float64
	threshold := a.cfg.VoiceConsistencyThreshold
	if threshold <= 0 {
		threshold = 0.6
	}

	for _, d := range newDialogues {
		emb := a.embedder.Embed(d)
		var simSum float64
		for _, ref := range refEmbeddings {
			simSum += rag.CosineSimilarity(emb, ref)
		}
		avgSim := simSum / float64(len(refEmbeddings))
		scoreSum += avgSim
		if avgSim < threshold {
			outliers = append(outliers, d)
		}
	}

	overall := scoreSum / float64(len(newDialogues))
	return VoiceAnalysis{
		Character: character, ConsistencyScore: overall, AnalysisAvailable: true,
		DriftDetected: overall < threshold, DialoguesAnalyzed: len(newDialogues),
		ReferenceDialogues: len(referenceDialogues), Outliers: outliers,
	}
}

// AnalyzeChapter runs Analyze for every known character whose
// dialogue appears in chapterText, extracted with ExtractDialogues.
func (a *VoiceConsistencyAnalyzer) AnalyzeChapter(chapterText string, knownCharacters []string, referenceFor func(character string) []string) map[string]VoiceAnalysis {
	if !a.cfg.VoiceAnalyzerEnabled {
		return nil
	}
	dialogues := ExtractDialogues(chapterText)
	if len(dialogues) == 0 {
		return nil
	}

	results := make(map[string]VoiceAnalysis)
	for _, character := range knownCharacters {
		var lines []string
		for _, d := range dialogues {
			if mentionsCharacter(chapterText, character) {
				lines = append(lines, d)
			}
		}
		if len(lines) == 0 {
			continue
		}
		results[character] = a.Analyze(character, lines, referenceFor(character))
	}
	return results
}
