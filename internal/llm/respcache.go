package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vampirenirmal/storyforge/internal/storage"
)

// ResponseCache persists completions keyed by a hash of the full
// request (prompt, system, mode, model variant), so identical calls
// within TTL skip the provider entirely. Adapted from
// internal/agent/cache.go's ResponseCache, repointed at the
// Request-based client.
type ResponseCache struct {
	storage storage.Storage
	ttl     time.Duration
	logger  *slog.Logger
}

type cachedResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

func NewResponseCache(store storage.Storage, ttl time.Duration) *ResponseCache {
	return &ResponseCache{storage: store, ttl: ttl, logger: slog.Default().With("component", "llm_response_cache")}
}

func (c *ResponseCache) key(req Request) string {
	enc, _ := json.Marshal(req)
	hash := sha256.Sum256(enc)
	return hex.EncodeToString(hash[:])
}

func (c *ResponseCache) Get(ctx context.Context, req Request) (string, bool) {
	key := c.key(req)
	path := fmt.Sprintf("cache/llm/%s.json", key)

	data, err := c.storage.Load(ctx, path)
	if err != nil {
		return "", false
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return "", false
	}
	if time.Since(cached.Timestamp) > c.ttl {
		return "", false
	}
	c.logger.Debug("llm cache hit", "key", key, "phase", req.Phase)
	return cached.Response, true
}

func (c *ResponseCache) Set(ctx context.Context, req Request, response string) error {
	key := c.key(req)
	path := fmt.Sprintf("cache/llm/%s.json", key)

	data, err := json.Marshal(cachedResponse{Response: response, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	return c.storage.Save(ctx, path, data)
}

// CachedComplete wraps Client.Complete with the response cache,
// skipping the provider on a fresh hit.
func (c *Client) CachedComplete(ctx context.Context, req Request, cache *ResponseCache) (string, error) {
	if cache != nil {
		if response, ok := cache.Get(ctx, req); ok {
			return response, nil
		}
	}

	response, err := c.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	if cache != nil {
		if err := cache.Set(ctx, req, response); err != nil {
			c.logger.Warn("failed to cache llm response", "error", err, "phase", req.Phase)
		}
	}
	return response, nil
}
