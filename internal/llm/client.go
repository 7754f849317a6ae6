// Package llm wraps chat-completion providers behind the narrow
// surface the pipeline needs: plain completions, JSON-mode
// completions, streaming, and a reasoning-model variant for the
// planning calls that warrant deeper deliberation. Built on the
// teacher's rate-limited, retrying HTTP client, adding a circuit
// breaker around the transport and a distinct bad-JSON retry policy.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is a rate-limited, circuit-broken chat-completion client
// supporting the Anthropic and OpenAI wire formats.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	reasoningModel string
	httpClient     *http.Client
	maxRetries     int
	limiter        *rate.Limiter
	apiType        string
	logger         *slog.Logger
	breaker        *CircuitBreaker
}

type Option func(*Client)

func WithRetry(maxRetries int) Option {
	return func(c *Client) { c.maxRetries = maxRetries }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		transport := c.httpClient.Transport
		c.httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

// WithAPIConfig sets the provider endpoint, the default completion
// model, and the reasoning-model variant used when a Request asks for
// deeper deliberation (spec's PLAN_REASONING_* knobs).
func WithAPIConfig(baseURL, model, reasoningModel string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
		c.model = model
		c.reasoningModel = reasoningModel
		if strings.Contains(baseURL, "openai") {
			c.apiType = "openai"
		} else {
			c.apiType = "anthropic"
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *Client) { c.breaker = NewCircuitBreaker("llm", cfg, c.logger) }
}

func NewClient(apiKey string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    "https://api.anthropic.com/v1",
		model:      "claude-sonnet-4-5",
		httpClient: &http.Client{Timeout: 120 * time.Second, Transport: transport},
		maxRetries: 4,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		apiType:    "anthropic",
		logger:     slog.Default().With("component", "llm_client"),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewCircuitBreaker("llm", DefaultCircuitBreakerConfig(), c.logger)
	}
	if c.reasoningModel == "" {
		c.reasoningModel = c.model
	}

	c.logger.Debug("llm client initialized",
		"api_type", c.apiType, "base_url", c.baseURL, "model", c.model,
		"reasoning_model", c.reasoningModel, "max_retries", c.maxRetries)

	return c
}

// Request is a single completion call. Phase identifies the pipeline
// node issuing the call, used only for structured logging.
type Request struct {
	System     string
	Prompt     string
	JSON       bool
	Reasoning  bool
	MaxTokens  int
	Phase      string
}

func (r Request) modelFor(c *Client) string {
	if r.Reasoning {
		return c.reasoningModel
	}
	return c.model
}

func (r Request) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return 4096
}

// Complete issues a (possibly system-prompted, possibly JSON-mode)
// completion, applying the rate limiter, circuit breaker, and
// exponential-backoff retry loop.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	requestID := fmt.Sprintf("llm_%d", time.Now().UnixNano())
	startTime := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptStart := time.Now()
		c.logger.Debug("llm request attempt",
			"request_id", requestID, "attempt", attempt, "phase", req.Phase,
			"json_mode", req.JSON, "reasoning", req.Reasoning, "model", req.modelFor(c))

		var response string
		err := c.breaker.Execute(ctx, func() error {
			var innerErr error
			response, innerErr = c.doRequest(ctx, req)
			return innerErr
		})

		if err == nil {
			c.logger.Info("llm request succeeded",
				"request_id", requestID, "phase", req.Phase, "attempt", attempt,
				"duration_ms", time.Since(attemptStart).Milliseconds(),
				"total_duration_ms", time.Since(startTime).Milliseconds())
			return response, nil
		}

		lastErr = err
		if !isRetryable(err) {
			c.logger.Error("llm request failed, non-retryable",
				"request_id", requestID, "phase", req.Phase, "error", err)
			return "", err
		}
		c.logger.Warn("llm request failed, retrying",
			"request_id", requestID, "phase", req.Phase, "attempt", attempt, "error", err)
	}

	return "", fmt.Errorf("llm: max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, req Request) (string, error) {
	if c.apiType == "openai" {
		return c.doOpenAIRequest(ctx, req)
	}
	return c.doAnthropicRequest(ctx, req)
}

func (c *Client) doOpenAIRequest(ctx context.Context, req Request) (string, error) {
	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	if req.JSON && req.System == "" {
		messages = append([]map[string]string{{
			"role":    "system",
			"content": "You MUST respond with valid JSON only, no markdown or commentary.",
		}}, messages...)
	}

	body := map[string]any{
		"model":      req.modelFor(c),
		"messages":   messages,
		"max_tokens": req.maxTokens(),
	}
	if req.JSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	return c.send(ctx, "/chat/completions", body, func(respBody []byte) (string, error) {
		var resp struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return "", fmt.Errorf("parsing response: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}
		return resp.Choices[0].Message.Content, nil
	})
}

func (c *Client) doAnthropicRequest(ctx context.Context, req Request) (string, error) {
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with valid JSON only, no markdown or commentary.")
	}

	body := map[string]any{
		"model":      req.modelFor(c),
		"messages":   []map[string]string{{"role": "user", "content": req.Prompt}},
		"max_tokens": req.maxTokens(),
	}
	if system != "" {
		body["system"] = system
	}

	return c.send(ctx, "/messages", body, func(respBody []byte) (string, error) {
		var resp struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return "", fmt.Errorf("parsing response: %w", err)
		}
		if len(resp.Content) == 0 {
			return "", fmt.Errorf("no content in response")
		}
		return resp.Content[0].Text, nil
	})
}

func (c *Client) send(ctx context.Context, path string, body map[string]any, parse func([]byte) (string, error)) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return parse(respBody)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiType == "openai" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
}

// StreamDelta is one incremental chunk of a streamed completion.
type StreamDelta struct {
	Text string
	Done bool
}

// CompleteStream issues a streaming completion, invoking onDelta for
// each chunk of text as it arrives. Used by the writer phase to
// surface partial chapter text to callers watching a long-running
// generation.
func (c *Client) CompleteStream(ctx context.Context, req Request, onDelta func(StreamDelta)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	return c.breaker.Execute(ctx, func() error {
		if c.apiType == "openai" {
			return c.streamOpenAI(ctx, req, onDelta)
		}
		return c.streamAnthropic(ctx, req, onDelta)
	})
}

func (c *Client) streamOpenAI(ctx context.Context, req Request, onDelta func(StreamDelta)) error {
	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":      req.modelFor(c),
		"messages":   messages,
		"max_tokens": req.maxTokens(),
		"stream":     true,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(b))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			onDelta(StreamDelta{Done: true})
			return nil
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				onDelta(StreamDelta{Text: choice.Delta.Content})
			}
		}
	}
	return scanner.Err()
}

func (c *Client) streamAnthropic(ctx context.Context, req Request, onDelta func(StreamDelta)) error {
	body := map[string]any{
		"model":      req.modelFor(c),
		"messages":   []map[string]string{{"role": "user", "content": req.Prompt}},
		"max_tokens": req.maxTokens(),
		"stream":     true,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(b))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var event struct {
			Type  string `json:"type"`
			Delta struct {
				Text string `json:"text"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				onDelta(StreamDelta{Text: event.Delta.Text})
			}
		case "message_stop":
			onDelta(StreamDelta{Done: true})
			return nil
		}
	}
	return scanner.Err()
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "circuit breaker") {
		return false
	}
	return true
}
