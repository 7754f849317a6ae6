package coherence

import (
	"regexp"
	"strings"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/rag"
	"github.com/vampirenirmal/storyforge/internal/story"
)

// contradictionPatterns pairs opposite states that, found across two
// highly similar sentences about the same subject, signal a likely
// contradiction (a character can't be both of a pair at once).
// Grounded on coherence/semantic_validator.py's default pattern list.
var contradictionPatterns = [][2]string{
	{"alive", "dead"}, {"loves", "hates"}, {"friend", "enemy"},
	{"present", "absent"}, {"owns", "lost"}, {"knows", "unaware"},
	{"young", "old"}, {"rich", "poor"}, {"tall", "short"},
	{"strong", "weak"}, {"married", "single"}, {"innocent", "guilty"},
	{"trusts", "distrusts"}, {"open", "closed"}, {"day", "night"},
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)
var properNoun = regexp.MustCompile(`[A-Z][a-z]+`)

// SemanticValidator flags subtle contradictions between a chapter's
// factual sentences and previously established facts, using sentence
// embeddings rather than an LLM call. Grounded on
// coherence/semantic_validator.py. Degrades to a no-op when the
// embedder is nil or disabled by config, matching the original's
// behavior when sentence-transformers isn't installed.
type SemanticValidator struct {
	embedder rag.Embedder
	cfg      config.CoherenceConfig
}

func NewSemanticValidator(embedder rag.Embedder, cfg config.CoherenceConfig) *SemanticValidator {
	return &SemanticValidator{embedder: embedder, cfg: cfg}
}

// SemanticConflict is one detected contradiction between a new and an
// established fact.
type SemanticConflict struct {
	NewFact         string
	EstablishedFact string
	Similarity      float64
	Pattern         [2]string
	Severity        story.IssueSeverity
}

// ExtractFacts splits text into sentences and keeps the ones that look
// like factual statements: containing a proper noun, a being/state
// verb, or an always/never qualifier.
func ExtractFacts(text string) []string {
	var facts []string
	for _, raw := range sentenceSplit.Split(text, -1) {
		s := strings.TrimSpace(raw)
		if len(s) < 10 {
			continue
		}
		if looksFactual(s) {
			facts = append(facts, s)
		}
	}
	return facts
}

func looksFactual(s string) bool {
	if properNoun.MatchString(s[1:]) {
		return true
	}
	lower := strings.ToLower(s)
	for _, verb := range []string{"is", "was", "are", "were", "has", "had", "owns", "loves", "hates"} {
		if strings.Contains(lower, " "+verb+" ") {
			return true
		}
	}
	for _, qualifier := range []string{"always", "never", "often", "sometimes"} {
		if strings.Contains(lower, qualifier) {
			return true
		}
	}
	return false
}

// DetectContradictions compares each new fact against established
// facts whose embedding similarity exceeds the configured threshold,
// flagging pattern-matched opposite-state pairs as high severity and
// other very-high-similarity-but-differing pairs as medium severity.
// Returns nil when the embedder is unavailable or validation is
// disabled, matching the degraded-mode contract.
func (v *SemanticValidator) DetectContradictions(newFacts, establishedFacts []string) []SemanticConflict {
	if !v.cfg.SemanticValidatorEnabled || v.embedder == nil || len(newFacts) == 0 || len(establishedFacts) == 0 {
		return nil
	}

	threshold := v.cfg.SemanticConflictThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	establishedEmbeddings := make([][]float32, len(establishedFacts))
	for i, f := range establishedFacts {
		establishedEmbeddings[i] = v.embedder.Embed(f)
	}

	var conflicts []SemanticConflict
	for _, newFact := range newFacts {
		newEmb := v.embedder.Embed(newFact)
		for i, estFact := range establishedFacts {
			sim := rag.CosineSimilarity(newEmb, establishedEmbeddings[i])
			if sim < threshold {
				continue
			}
			if ok, pattern := matchesContradictionPattern(newFact, estFact); ok {
				conflicts = append(conflicts, SemanticConflict{
					NewFact: newFact, EstablishedFact: estFact, Similarity: sim,
					Pattern: pattern, Severity: story.SeverityHigh,
				})
			} else if sim > 0.85 && factsDiffer(newFact, estFact) {
				conflicts = append(conflicts, SemanticConflict{
					NewFact: newFact, EstablishedFact: estFact, Similarity: sim,
					Severity: story.SeverityMedium,
				})
			}
		}
	}
	return conflicts
}

func matchesContradictionPattern(a, b string) (bool, [2]string) {
	al, bl := strings.ToLower(a), strings.ToLower(b)
	for _, p := range contradictionPatterns {
		if (strings.Contains(al, p[0]) && strings.Contains(bl, p[1])) ||
			(strings.Contains(al, p[1]) && strings.Contains(bl, p[0])) {
			return true, p
		}
	}
	return false, [2]string{}
}

// factsDiffer reports whether two facts sharing a proper-noun subject
// overlap just enough (30-70% of words) to plausibly say different
// things about the same subject, rather than paraphrasing each other.
func factsDiffer(a, b string) bool {
	subjectsA := properNounSet(a)
	subjectsB := properNounSet(b)
	if !hasCommon(subjectsA, subjectsB) {
		return false
	}

	wordsA := wordSet(strings.ToLower(a))
	wordsB := wordSet(strings.ToLower(b))
	common := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			common++
		}
	}
	maxLen := len(wordsA)
	if len(wordsB) > maxLen {
		maxLen = len(wordsB)
	}
	if maxLen == 0 {
		return false
	}
	overlap := float64(common) / float64(maxLen)
	return overlap > 0.3 && overlap < 0.7
}

func properNounSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range properNoun.FindAllString(s, -1) {
		out[m] = struct{}{}
	}
	return out
}

func hasCommon(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}
