package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
)

// BeatCompleter is the narrow completion surface the distributed
// dispatcher needs from llm.Client, isolated the same way
// internal/pipeline/beats.go isolates its own beatClient.
type BeatCompleter interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

const dispatcherWriterSystemPrompt = "You are a serial-fiction author writing for a mobile pay-to-read audience. Short paragraphs. End on a strong, complete cliffhanger sentence."

// BeatDispatcher pushes each scene beat onto the queue's beats_high
// lane and waits on a chord-like assembly barrier, falling back
// (ok=false) on a timeout or on every beat failing. It satisfies
// internal/pipeline's BeatDispatcher interface structurally; nothing
// here imports internal/pipeline. Grounded on generation_tasks.py's
// generate_beat_task/assemble_beats_task/generate_beats_distributed.
type BeatDispatcher struct {
	queue   *PriorityQueue
	client  BeatCompleter
	cfg     config.BeatConfig
	timeout time.Duration
}

// NewBeatDispatcher builds a distributed dispatcher. timeout bounds
// the assembly barrier; zero falls back to 180s.
func NewBeatDispatcher(queue *PriorityQueue, client BeatCompleter, cfg config.BeatConfig, timeout time.Duration) *BeatDispatcher {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &BeatDispatcher{queue: queue, client: client, cfg: cfg, timeout: timeout}
}

func (d *BeatDispatcher) DispatchBeats(ctx context.Context, beats []string, basePrompt string, targetWords, minBeatWords int) (string, []string, bool) {
	if len(beats) == 0 {
		return "", nil, true
	}

	perBeatTarget := maxInt(minBeatWords, int(float64(targetWords)/float64(len(beats))*0.85))

	texts := make([]string, len(beats))
	succeeded := make([]bool, len(beats))

	var wg sync.WaitGroup
	wg.Add(len(beats))

	for idx, beat := range beats {
		idx, beat := idx, beat
		currentWords := int(float64(perBeatTarget) * float64(idx))
		remaining := maxInt(targetWords-currentWords, 0)
		beatTarget := remaining
		if remaining == 0 {
			beatTarget = perBeatTarget
		}
		beatTarget = maxInt(minBeatWords, minInt(perBeatTarget, beatTarget))

		prompt := buildDistributedBeatPrompt(basePrompt, beats, idx, beat, beatTarget)

		task := Task{
			ID:       fmt.Sprintf("beat-%d", idx),
			Priority: PriorityBeats,
			Run: func(taskCtx context.Context) error {
				defer wg.Done()
				text, err := d.client.Complete(taskCtx, llm.Request{
					System:    dispatcherWriterSystemPrompt,
					Prompt:    prompt,
					MaxTokens: maxTokensForWords(beatTarget, d.cfg),
					Phase:     fmt.Sprintf("write_chapter.distributed_beat_%d", idx+1),
				})
				text = strings.TrimSpace(text)
				if err != nil || text == "" {
					return err
				}
				texts[idx] = text
				succeeded[idx] = true
				return nil
			},
		}
		if err := d.queue.Submit(ctx, task); err != nil {
			wg.Done()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.timeout):
		return "", nil, false
	case <-ctx.Done():
		return "", nil, false
	}

	var kept []string
	for i, text := range texts {
		if succeeded[i] {
			kept = append(kept, text)
		}
	}
	if len(kept) == 0 {
		return "", nil, false
	}

	return strings.Join(kept, "\n\n"), texts, true
}

func buildDistributedBeatPrompt(basePrompt string, beats []string, idx int, beat string, beatTarget int) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	fmt.Fprintf(&b, "\nWrite scene %d of %d: %s\n", idx+1, len(beats), beat)
	fmt.Fprintf(&b, "Target length for this scene: about %d words.\n", beatTarget)
	b.WriteString("Assume earlier scenes are already written; begin this scene directly.\n")
	return b.String()
}

func maxTokensForWords(words int, cfg config.BeatConfig) int {
	tokens := int(float64(words) * cfg.TokensPerWord)
	if tokens > cfg.MaxTokens {
		return cfg.MaxTokens
	}
	if tokens < 1 {
		return cfg.MinBeatWords
	}
	return tokens
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
