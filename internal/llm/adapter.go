package llm

import "context"

// AIClientAdapter narrows Client to the single-string request/response
// shape internal/memory.RecursiveMemoryManager drives its summarization
// calls through, so that package doesn't need to build llm.Request
// values itself.
type AIClientAdapter struct {
	client *Client
	phase  string
}

// NewAIClientAdapter wraps c, tagging every call with phase for
// structured logging (Request.Phase).
func NewAIClientAdapter(c *Client, phase string) *AIClientAdapter {
	return &AIClientAdapter{client: c, phase: phase}
}

func (a *AIClientAdapter) Complete(ctx context.Context, prompt string) (string, error) {
	return a.client.Complete(ctx, Request{Prompt: prompt, Phase: a.phase})
}

func (a *AIClientAdapter) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return a.client.Complete(ctx, Request{Prompt: prompt, JSON: true, Phase: a.phase})
}

func (a *AIClientAdapter) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return a.client.Complete(ctx, Request{System: systemPrompt, Prompt: userPrompt, Phase: a.phase})
}

func (a *AIClientAdapter) CompleteJSONWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return a.client.Complete(ctx, Request{System: systemPrompt, Prompt: userPrompt, JSON: true, Phase: a.phase})
}
