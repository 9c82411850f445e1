package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redisOrSkip connects to REDIS_URL (default localhost) or skips the test.
func redisOrSkip(t *testing.T) *RedisCache {
	t.Helper()
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	c, err := NewRedisCache(redisURL)
	if err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRedisCacheGetSet(t *testing.T) {
	c := redisOrSkip(t)
	ctx := context.Background()

	key := QueryCacheKey("test-repo", "parse config", 1)
	value := `{"mode":"semantic","results":[]}`

	require.NoError(t, c.Set(ctx, key, value, time.Minute))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	require.NoError(t, c.Delete(ctx, key))

	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCacheBatch(t *testing.T) {
	c := redisOrSkip(t)
	ctx := context.Background()

	a := EmbeddingCacheKey("test-model", "def a(): pass")
	b := EmbeddingCacheKey("test-model", "def b(): pass")
	missing := EmbeddingCacheKey("test-model", "def missing(): pass")
	t.Cleanup(func() { _, _ = c.DeletePattern(ctx, "embed:test-model:*") })

	require.NoError(t, c.SetMany(ctx, map[string]string{a: "[1]", b: "[2]"}, time.Minute))

	got, err := c.GetMany(ctx, []string{a, missing, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"[1]", "", "[2]"}, got)

	got, err = c.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCacheIndexVersion(t *testing.T) {
	c := redisOrSkip(t)
	ctx := context.Background()
	repo := "test-repo-version"

	_ = c.Delete(ctx, prefixVersion+repo)
	t.Cleanup(func() { _ = c.Delete(ctx, prefixVersion+repo) })
	all, err := c.GetIndexVersion(ctx, AllRepos)
	require.NoError(t, err)

	version, err := c.GetIndexVersion(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	newVersion, err := c.IncrIndexVersion(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, int64(1), newVersion)

	version, err = c.GetIndexVersion(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Results across all repos are invalidated by any repo's bump.
	allAfter, err := c.GetIndexVersion(ctx, AllRepos)
	require.NoError(t, err)
	assert.Equal(t, all+1, allAfter)
}

func TestRedisCacheDeletePattern(t *testing.T) {
	c := redisOrSkip(t)
	ctx := context.Background()

	_ = c.Set(ctx, FileHashKey("pattern-repo", "a.py"), "1", time.Minute)
	_ = c.Set(ctx, FileHashKey("pattern-repo", "pkg/b.py"), "2", time.Minute)
	_ = c.Set(ctx, FileHashKey("other-repo", "c.py"), "3", time.Minute)
	t.Cleanup(func() { _ = c.Delete(ctx, FileHashKey("other-repo", "c.py")) })

	keys, err := c.Keys(ctx, FileHashKey("pattern-repo", "*"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		FileHashKey("pattern-repo", "a.py"),
		FileHashKey("pattern-repo", "pkg/b.py"),
	}, keys)

	n, err := c.DeletePattern(ctx, FileHashKey("pattern-repo", "*"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, _ := c.Get(ctx, FileHashKey("pattern-repo", "a.py"))
	assert.Empty(t, got)

	got, _ = c.Get(ctx, FileHashKey("other-repo", "c.py"))
	assert.Equal(t, "3", got)
}

func TestQueryCacheKey(t *testing.T) {
	key := QueryCacheKey("test-repo", "hello world", 42)
	assert.True(t, strings.HasPrefix(key, "query:test-repo:"))
	assert.True(t, strings.HasSuffix(key, ":42"))

	assert.Equal(t, key, QueryCacheKey("test-repo", "hello world", 42))
	assert.NotEqual(t, key, QueryCacheKey("test-repo", "goodbye world", 42))
	assert.NotEqual(t, key, QueryCacheKey("test-repo", "hello world", 43), "a new index version changes the key")
}

func TestEmbeddingCacheKey(t *testing.T) {
	key := EmbeddingCacheKey("voyage-code-3", "def f(): pass")
	assert.True(t, strings.HasPrefix(key, "embed:voyage-code-3:"))
	// Full sha256 hex digest.
	assert.Len(t, strings.TrimPrefix(key, "embed:voyage-code-3:"), 64)

	assert.Equal(t, key, EmbeddingCacheKey("voyage-code-3", "def f(): pass"))
	assert.NotEqual(t, key, EmbeddingCacheKey("voyage-3-lite", "def f(): pass"))
	assert.NotEqual(t, key, EmbeddingCacheKey("voyage-code-3", "def g(): pass"))
}

func TestFileHashKey(t *testing.T) {
	assert.Equal(t, "filehash:repo:pkg/mod.py", FileHashKey("repo", "pkg/mod.py"))
}
