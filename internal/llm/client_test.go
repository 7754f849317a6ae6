package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newAnthropicStub(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": text}},
			"usage":   map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
}

func TestCompleteAnthropic(t *testing.T) {
	srv := newAnthropicStub(t, `{"ok":true}`)
	defer srv.Close()

	client := NewClient("test-key-0123456789",
		WithAPIConfig(srv.URL, "claude-sonnet-4-5", ""),
		WithRetry(0),
	)

	resp, err := client.Complete(context.Background(), Request{Prompt: "hello", Phase: "test"})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, resp)
}

func TestCompleteReasoningVariant(t *testing.T) {
	var sawModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		sawModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "ok"}},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key-0123456789",
		WithAPIConfig(srv.URL, "claude-sonnet-4-5", "claude-opus-4-1"),
		WithRetry(0),
	)

	_, err := client.Complete(context.Background(), Request{Prompt: "plan the climax", Reasoning: true, Phase: "plan_chapter"})
	require.NoError(t, err)
	require.Equal(t, "claude-opus-4-1", sawModel)
}
