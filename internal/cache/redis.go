// Package cache provides Redis backed caching of embeddings, search results
// and incremental indexing state.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes owned by this package. ClearAll removes all of them.
const (
	prefixEmbedding = "embed:"
	prefixQuery     = "query:"
	prefixFileHash  = "filehash:"
	prefixVersion   = "index:version:"
)

const scanBatch = 500

// AllRepos is the index version of results that span every repository.
// Bumping any repo's version bumps it too.
const AllRepos = "all"

// RedisCache provides caching via Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to url and verifies the connection.
func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get returns the value at key, or "" when it is absent.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// Set stores value at key. A zero ttl never expires.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// GetMany fetches keys in one round trip. Missing keys come back as "".
func (c *RedisCache) GetMany(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]string, len(keys))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

// SetMany writes every entry with the same ttl in one pipeline.
func (c *RedisCache) SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range entries {
			p.Set(ctx, k, v, ttl)
		}
		return nil
	})
	return err
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Keys returns every key matching the glob pattern, scanning in batches.
func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// DeletePattern removes every key matching pattern and reports how many
// were removed.
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var removed int
	var batch []string

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Unlink(ctx, batch...).Result()
		removed += int(n)
		batch = batch[:0]
		return err
	}

	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, flush()
}

// ClearAll removes cached embeddings, search results, file hashes and index
// versions.
func (c *RedisCache) ClearAll(ctx context.Context) (int, error) {
	var total int
	for _, prefix := range []string{prefixEmbedding, prefixQuery, prefixFileHash, prefixVersion} {
		n, err := c.DeletePattern(ctx, prefix+"*")
		total += n
		if err != nil {
			return total, fmt.Errorf("delete %s*: %w", prefix, err)
		}
	}
	return total, nil
}

// GetIndexVersion retrieves the current index version for a repo. Search
// result keys embed the version, so bumping it invalidates cached results.
func (c *RedisCache) GetIndexVersion(ctx context.Context, repo string) (int64, error) {
	val, err := c.client.Get(ctx, prefixVersion+repo).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// IncrIndexVersion increments the index version of repo and of AllRepos in
// one transaction, returning the repo's new version.
func (c *RedisCache) IncrIndexVersion(ctx context.Context, repo string) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, prefixVersion+repo)
		if repo != AllRepos {
			pipe.Incr(ctx, prefixVersion+AllRepos)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// QueryCacheKey names the cached result of query against one index version.
func QueryCacheKey(repo, query string, version int64) string {
	h := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%s%s:%x:%d", prefixQuery, repo, h[:8], version)
}

// EmbeddingCacheKey names the cached document embedding of text.
func EmbeddingCacheKey(model, text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s%s:%x", prefixEmbedding, model, h)
}

// FileHashKey names the content hash recorded for an indexed file.
func FileHashKey(repo, relPath string) string {
	return prefixFileHash + repo + ":" + relPath
}
