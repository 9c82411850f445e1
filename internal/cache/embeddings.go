package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/randalmurphy/code-analyzer/internal/embedding"
)

// DefaultEmbeddingTTL keeps embeddings for a month; they only change with
// the model.
const DefaultEmbeddingTTL = 30 * 24 * time.Hour

// Store is the subset of RedisCache used for embeddings.
type Store interface {
	GetMany(ctx context.Context, keys []string) ([]string, error)
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error
}

// CachedEmbedder serves embeddings from Store and only sends misses to the
// wrapped embedder. Cache failures are logged and treated as misses.
type CachedEmbedder struct {
	inner  embedding.Embedder
	store  Store
	model  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedEmbedder wraps inner with store.
func NewCachedEmbedder(inner embedding.Embedder, store Store, model string, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		inner:  inner,
		store:  store,
		model:  model,
		ttl:    DefaultEmbeddingTTL,
		logger: logger,
	}
}

// Embed returns one vector per text, in input order. Cached vectors are
// fetched in one round trip and only the misses reach the wrapped embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = EmbeddingCacheKey(c.model, text)
	}

	cached, err := c.store.GetMany(ctx, keys)
	if err != nil {
		c.logger.Warn("embedding cache read failed", "error", err)
		cached = nil
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if i < len(cached) {
			if v, ok := c.decode(cached[i]); ok {
				vectors[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	c.logger.Debug("embedding cache", "hits", len(texts)-len(missTexts), "misses", len(missTexts))

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]string, len(missIdx))
	for j, i := range missIdx {
		vectors[i] = fresh[j]
		if data, err := json.Marshal(fresh[j]); err == nil {
			entries[keys[i]] = string(data)
		}
	}
	if err := c.store.SetMany(ctx, entries, c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}

	return vectors, nil
}

// EmbedQuery is never cached: queries are one-off and embedded with a
// different input type.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return c.inner.EmbedQuery(ctx, query)
}

// Dimension returns the wrapped embedder's vector size.
func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}

func (c *CachedEmbedder) decode(raw string) ([]float32, bool) {
	if raw == "" {
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.logger.Warn("discarding corrupt cached embedding", "error", err)
		return nil, false
	}
	return v, true
}
