package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vampirenirmal/storyforge/internal/config"
	"github.com/vampirenirmal/storyforge/internal/llm"
	"github.com/vampirenirmal/storyforge/internal/phase"
)

// countWords is the whitespace-split word counter used throughout the
// writer phase to size beat targets.
func countWords(s string) int {
	return len(strings.Fields(s))
}

// maxTokensForWords converts a word target into a completion token
// budget via config.BeatConfig.TokensPerWord, capped at MaxTokens.
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

// beatWork is one scene beat queued for completion. Index is its
// position in the plan's scene_beats list; results are always placed
// back at this index regardless of completion order.
type beatWork struct {
	Index        int
	Beat         string
	BasePrompt   string
	BeatOutline  string
	TotalBeats   int
	TargetWords  int
	PreviousBlock string
	Continuation string
}

func (w beatWork) ID() string   { return strconv.Itoa(w.Index) }
func (w beatWork) Priority() int { return w.Index }

type beatResult struct {
	Index int
	Text  string
	Err   error
}

func (r beatResult) ItemID() string { return strconv.Itoa(r.Index) }
func (r beatResult) Error() error   { return r.Err }

// buildBeatPrompt assembles one beat's user prompt from the shared
// base prompt plus this beat's position, target length, and whatever
// came before it. Grounded on writing_pipeline.py's _build_beat_prompt.
func buildBeatPrompt(w beatWork) string {
	var b strings.Builder
	b.WriteString(w.BasePrompt)
	fmt.Fprintf(&b, "\n%s\n", w.BeatOutline)
	fmt.Fprintf(&b, "Write scene %d of %d: %s\n", w.Index+1, w.TotalBeats, w.Beat)
	fmt.Fprintf(&b, "Target length for this scene: about %d words.\n", w.TargetWords)
	if w.PreviousBlock != "" {
		fmt.Fprintf(&b, "Previous scenes (already written, do not repeat):\n%s\n", w.PreviousBlock)
	}
	if w.Continuation != "" {
		b.WriteString(w.Continuation + "\n")
	}
	return b.String()
}

func buildBeatsOutline(beats []string) string {
	var b strings.Builder
	b.WriteString("Scene outline:\n")
	for i, beat := range beats {
		fmt.Fprintf(&b, "%d. %s\n", i+1, beat)
	}
	return b.String()
}

// truncateChars truncates s to at most max runes, keeping the tail
// (the most recently written text matters most for continuity hints).
func truncateTail(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[len(r)-max:])
}

const writerSystemPrompt = "You are a serial-fiction author writing for a mobile pay-to-read audience. Short paragraphs. End on a strong, complete cliffhanger sentence."

// beatClient is the narrow completion surface beats.go needs from
// llm.Client, isolated so tests can stub it without the full client.
type beatClient interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// runBeatsParallel fans every beat out across a phase.WorkerPool, a
// generic errgroup-backed worker pool, then reassembles results by
// Index rather than completion order. Grounded on
// writing_pipeline.py's WRITE_PARALLEL_BEATS branch.
func runBeatsParallel(ctx context.Context, client beatClient, works []beatWork, workers int, cfg config.BeatConfig) ([]string, int, error) {
	pool := phase.NewWorkerPool[beatWork, beatResult](
		phase.WithWorkers(workers),
		phase.WithBufferSize(len(works)),
	)

	results, err := pool.ProcessBasic(ctx, works, func(ctx context.Context, w beatWork) (beatResult, error) {
		text, err := client.Complete(ctx, llm.Request{
			System:    writerSystemPrompt,
			Prompt:    buildBeatPrompt(w),
			MaxTokens: maxTokensForWords(w.TargetWords, cfg),
			Phase:     fmt.Sprintf("write_chapter.beat_%d", w.Index+1),
		})
		return beatResult{Index: w.Index, Text: strings.TrimSpace(text)}, err
	})
	if err != nil {
		return nil, 0, err
	}

	texts := make([]string, len(works))
	failed := 0
	for _, r := range results {
		texts[r.Index] = r.Text
		if r.Text == "" {
			failed++
		}
	}
	return texts, failed, nil
}

// runBeatsSequential writes beats one at a time, recomputing the
// remaining word budget after each, and stops early once
// EarlyStopRatio of the target is reached. A beat that
// returns empty content stops the loop and is counted as failed rather
// than aborting the whole chapter.
func runBeatsSequential(ctx context.Context, client beatClient, beats []string, basePrompt, beatOutline string, targetWords, minBeatWords int, perBeatTarget int, earlyStopRatio float64, cfg config.BeatConfig) ([]string, int, string) {
	var content strings.Builder
	var texts []string
	currentWords := 0
	failed := 0

	for idx, beat := range beats {
		beatsLeft := len(beats) - idx
		remaining := targetWords - currentWords
		if remaining < 0 {
			remaining = 0
		}
		var beatTarget int
		if remaining == 0 {
			beatTarget = maxInt(minBeatWords, int(float64(perBeatTarget)*0.5))
		} else {
			dynamic := maxInt(minBeatWords, remaining/beatsLeft)
			beatTarget = maxInt(minBeatWords, minInt(perBeatTarget, dynamic))
		}

		continuation := ""
		if content.Len() > 0 {
			continuation = "Continue directly from the previous scene; do not restate it."
		}

		w := beatWork{
			Index: idx, Beat: beat, BasePrompt: basePrompt, BeatOutline: beatOutline,
			TotalBeats: len(beats), TargetWords: beatTarget, Continuation: continuation,
		}
		text, err := client.Complete(ctx, llm.Request{
			System:    writerSystemPrompt,
			Prompt:    buildBeatPrompt(w),
			MaxTokens: maxTokensForWords(beatTarget, cfg),
			Phase:     fmt.Sprintf("write_chapter.beat_%d", idx+1),
		})
		text = strings.TrimSpace(text)
		if err != nil || text == "" {
			failed++
			break
		}
		texts = append(texts, text)
		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(text)
		currentWords = countWords(content.String())
		if currentWords >= int(float64(targetWords)*earlyStopRatio) {
			break
		}
	}
	return texts, failed, content.String()
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

// logDegradedBeats records a BeatTimeout-style degradation without
// failing the whole chapter.
func logDegradedBeats(logger *slog.Logger, failed int, total int) {
	if failed == 0 {
		return
	}
	logger.Warn("some beats produced no content", "failed_beats", failed, "total_beats", total)
}
