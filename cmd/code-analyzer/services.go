// cmd/code-analyzer/services.go
package main

import (
	"fmt"
	"os"

	"github.com/randalmurphy/code-analyzer/internal/cache"
	"github.com/randalmurphy/code-analyzer/internal/embedding"
	"github.com/randalmurphy/code-analyzer/internal/metrics"
	"github.com/randalmurphy/code-analyzer/internal/store"
)

// services are the external backends shared by index and search.
type services struct {
	embedder embedding.Embedder
	store    *store.QdrantStore
	redis    *cache.RedisCache // nil when Redis is unavailable
	metrics  *metrics.Logger
}

func openServices() (*services, error) {
	voyageKey := os.Getenv("VOYAGE_API_KEY")
	if voyageKey == "" {
		return nil, fmt.Errorf("VOYAGE_API_KEY environment variable not set")
	}

	qdrantStore, err := store.NewQdrantStore(cfg.Storage.QdrantURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", cfg.Storage.QdrantURL, err)
	}

	svc := &services{store: qdrantStore}

	var embedder embedding.Embedder = embedding.NewVoyageClient(voyageKey, cfg.Embedding.Model)
	if cfg.Storage.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Storage.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, running without cache", "url", cfg.Storage.RedisURL, "error", err)
		} else {
			svc.redis = redisCache
			embedder = cache.NewCachedEmbedder(embedder, redisCache, cfg.Embedding.Model, logger)
		}
	}
	svc.embedder = embedder

	m, err := metrics.NewLogger(metrics.DefaultPath())
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	}
	svc.metrics = m

	return svc, nil
}

func (s *services) Close() {
	s.store.Close()
	if s.redis != nil {
		s.redis.Close()
	}
	s.metrics.Close()
}
