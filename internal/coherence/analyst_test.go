package coherence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/llm"
)

func anthropicStub(text string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": text}},
		})
	}))
}

func TestAnalystConvertsFindingsAcrossAllCategories(t *testing.T) {
	srv := anthropicStub(`{
		"contradictions": [{"type": "factual", "detail": "eye color changed", "severity": "high"}],
		"timeline_issues": [{"type": "timeline", "detail": "two days pass in one sentence", "severity": "low"}],
		"character_inconsistencies": [],
		"world_rule_violations": [{"type": "magic_rule", "detail": "fire magic used underwater", "severity": "critical"}],
		"overall_coherence_score": 6.5,
		"summary": "mostly consistent",
		"blocking_issues": ["fire magic used underwater"]
	}`)
	defer srv.Close()

	client := llm.NewClient("test-key-0123456789", llm.WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""), llm.WithRetry(0))
	analyst := NewAnalyst(client)

	result, err := analyst.Analyze(context.Background(), AnalystInput{ChapterText: "some chapter"})
	require.NoError(t, err)
	require.Len(t, result.Issues, 3)
	require.Equal(t, 6.5, result.CoherenceScore)
	require.Equal(t, []string{"fire magic used underwater"}, result.BlockingIssues)
}

func TestAnalystReturnsErrorOnUnparseableResponse(t *testing.T) {
	srv := anthropicStub(`not json`)
	defer srv.Close()

	client := llm.NewClient("test-key-0123456789", llm.WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""), llm.WithRetry(0))
	analyst := NewAnalyst(client)

	_, err := analyst.Analyze(context.Background(), AnalystInput{ChapterText: "some chapter"})
	require.Error(t, err)
}
