package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
)

type stubCompleter struct {
	text func(req llm.Request) string
}

func (s *stubCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.text(req), nil
}

func TestBeatDispatcherAssemblesInBeatOrder(t *testing.T) {
	completer := &stubCompleter{text: func(req llm.Request) string {
		return fmt.Sprintf("scene for phase %s", req.Phase)
	}}
	q := NewPriorityQueue(context.Background(), DefaultLaneConcurrency(), nil)
	t.Cleanup(q.Close)

	dispatcher := NewBeatDispatcher(q, completer, config.BeatConfig{
		MinBeatWords: 50, TokensPerWord: 1.6, MaxTokens: 2000,
	}, 5*time.Second)

	beats := []string{"The hook", "Rising pressure", "The cliffhanger"}
	text, beatTexts, ok := dispatcher.DispatchBeats(context.Background(), beats, "base prompt", 900, 50)

	require.True(t, ok)
	require.Len(t, beatTexts, 3)
	require.Contains(t, beatTexts[0], "distributed_beat_1")
	require.Contains(t, beatTexts[1], "distributed_beat_2")
	require.Contains(t, beatTexts[2], "distributed_beat_3")
	require.NotEmpty(t, text)
}

func TestBeatDispatcherFailsOpenWhenEveryBeatEmpty(t *testing.T) {
	completer := &stubCompleter{text: func(req llm.Request) string { return "" }}
	q := NewPriorityQueue(context.Background(), DefaultLaneConcurrency(), nil)
	t.Cleanup(q.Close)

	dispatcher := NewBeatDispatcher(q, completer, config.BeatConfig{
		MinBeatWords: 50, TokensPerWord: 1.6, MaxTokens: 2000,
	}, 5*time.Second)

	_, _, ok := dispatcher.DispatchBeats(context.Background(), []string{"only beat"}, "base", 500, 50)
	require.False(t, ok)
}

func TestBeatDispatcherNoBeatsIsTriviallyOK(t *testing.T) {
	q := NewPriorityQueue(context.Background(), DefaultLaneConcurrency(), nil)
	t.Cleanup(q.Close)
	dispatcher := NewBeatDispatcher(q, &stubCompleter{text: func(llm.Request) string { return "x" }}, config.BeatConfig{
		MinBeatWords: 50, TokensPerWord: 1.6, MaxTokens: 2000,
	}, 0)

	text, beatTexts, ok := dispatcher.DispatchBeats(context.Background(), nil, "base", 500, 50)
	require.True(t, ok)
	require.Empty(t, text)
	require.Nil(t, beatTexts)
}
