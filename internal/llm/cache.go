package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"clinical-rag/internal/contextutil"
)

// TextEmbedder embeds texts in order, one vector per text.
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CachedEmbedder memoizes embeddings per text in an expiring LRU. Only
// texts missing from the cache reach the wrapped embedder.
type CachedEmbedder struct {
	next  TextEmbedder
	model string
	cache *expirable.LRU[string, []float32]
}

// NewCachedEmbedder wraps next with a cache of size entries kept for ttl.
// A non-positive size disables caching.
func NewCachedEmbedder(next TextEmbedder, model string, size int, ttl time.Duration) *CachedEmbedder {
	c := &CachedEmbedder{next: next, model: model}
	if size > 0 {
		c.cache = expirable.NewLRU[string, []float32](size, nil, ttl)
	}
	return c
}

func (c *CachedEmbedder) key(text string) string {
	hash := sha256.Sum256([]byte(text))
	return c.model + ":" + hex.EncodeToString(hash[:])
}

// EmbedTexts returns cached vectors where present and embeds the rest in one call.
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cache == nil {
		return c.next.EmbedTexts(ctx, texts)
	}

	result := make([][]float32, len(texts))
	var missing []string
	var missingPos []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			result[i] = vec
			continue
		}
		missing = append(missing, text)
		missingPos = append(missingPos, i)
	}

	if len(missing) == 0 {
		contextutil.LoggerFromContext(ctx).DebugContext(ctx, "embedding cache hit", "texts", len(texts))
		return result, nil
	}

	vectors, err := c.next.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(vectors))
	}
	for j, vec := range vectors {
		result[missingPos[j]] = vec
		c.cache.Add(c.key(missing[j]), vec)
	}
	return result, nil
}

// EmbedQuery embeds a single query text through the cache.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
