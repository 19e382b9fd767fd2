package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	llmclient "restack/internal/llm/client"
)

// WithCache memoizes successful GenerateText calls in an LRU keyed by model
// name and prompt digest. entries <= 0 disables caching. Errors are never
// cached, so a transient failure does not poison later identical prompts.
func WithCache(entries int) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		if entries <= 0 {
			return next
		}
		cache, err := lru.New[string, string](entries)
		if err != nil {
			return next
		}
		return &cached{next: next, cache: cache}
	}
}

type cached struct {
	next  llmclient.LLMClient
	cache *lru.Cache[string, string]
}

func (c *cached) Name() string                { return c.next.Name() }
func (c *cached) Close() error                { return c.next.Close() }
func (c *cached) CountTokens(text string) int { return c.next.CountTokens(text) }
func (c *cached) TokenCapacity() int          { return c.next.TokenCapacity() }

func (c *cached) key(prompt string) string {
	sum := sha256.Sum256([]byte(c.next.Name() + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

func (c *cached) GenerateText(ctx context.Context, prompt string) (string, error) {
	k := c.key(prompt)
	if out, ok := c.cache.Get(k); ok {
		return out, nil
	}
	out, err := c.next.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.Add(k, out)
	return out, nil
}
