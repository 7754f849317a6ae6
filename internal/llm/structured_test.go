package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const chapterPlanSchema = `{
	"type": "object",
	"required": ["scene_beats"],
	"properties": {
		"scene_beats": {"type": "array", "minItems": 3, "items": {"type": "string"}}
	}
}`

func TestCompleteStructuredRetriesOnBadFormat(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		text := `not json at all`
		if attempts > 1 {
			text = `{"scene_beats": ["a", "b", "c"]}`
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": text}},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key-0123456789", WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""), WithRetry(0))
	schema, err := CompileSchema("chapter_plan.json", []byte(chapterPlanSchema))
	require.NoError(t, err)

	raw, err := client.CompleteStructured(context.Background(), Request{Prompt: "plan it", Phase: "plan_chapter"}, schema)
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.JSONEq(t, `{"scene_beats": ["a", "b", "c"]}`, string(raw))
}

func TestCompleteStructuredGivesUpAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": `{"scene_beats": []}`}},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key-0123456789", WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""), WithRetry(0))
	schema, err := CompileSchema("chapter_plan.json", []byte(chapterPlanSchema))
	require.NoError(t, err)

	_, err = client.CompleteStructured(context.Background(), Request{Prompt: "plan it", Phase: "plan_chapter"}, schema)
	require.Error(t, err)
}
