package embeddingcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mkravets/rag-retrieval/internal/core/ports"
)

// CachedEmbedder memoizes query embeddings behind an LRU. Document
// embedding stays uncached: ingestion content rarely repeats and would
// only evict useful query entries.
type CachedEmbedder struct {
	inner  ports.Embedder
	cache  *lru.Cache[string, []float32]
	logger *slog.Logger
}

func NewCachedEmbedder(inner ports.Embedder, size int, logger *slog.Logger) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache, logger: logger}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.Embed(ctx, texts)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		c.logger.Debug("embedding_cache_hit", "key", key[:12])
		return vec, nil
	}

	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Clear drops every cached embedding.
func (c *CachedEmbedder) Clear() {
	c.cache.Purge()
}

// CacheKey normalizes the query before hashing so that trivially
// different spellings of the same query share one entry.
func CacheKey(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	normalized = strings.ToValidUTF8(normalized, "")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
