package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphy/code-analyzer/internal/cache"
	"github.com/randalmurphy/code-analyzer/internal/chunk"
	"github.com/randalmurphy/code-analyzer/internal/store"
)

type fakeEmbedder struct {
	queries []string
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

type fakeIndex struct {
	semantic      []store.Document
	byName        map[string][]store.Document
	searchFilters []map[string]interface{}
	nameFilters   []map[string]interface{}
	searchLimit   int
}

func (f *fakeIndex) Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}) ([]store.Document, error) {
	f.searchFilters = append(f.searchFilters, filter)
	f.searchLimit = limit
	out := make([]store.Document, len(f.semantic))
	copy(out, f.semantic)
	return out, nil
}

func (f *fakeIndex) SearchByFilter(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]store.Document, error) {
	f.nameFilters = append(f.nameFilters, filter)
	name, _ := filter["name"].(string)
	return f.byName[name], nil
}

type memCache struct {
	data     map[string]string
	versions map[string]int64
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}, versions: map[string]int64{}}
}

// reindexed bumps repo's version the way RedisCache.IncrIndexVersion does.
func (m *memCache) reindexed(repo string) {
	m.versions[repo]++
	m.versions[cache.AllRepos]++
}

func (m *memCache) Get(ctx context.Context, key string) (string, error) { return m.data[key], nil }

func (m *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) GetIndexVersion(ctx context.Context, repo string) (int64, error) {
	return m.versions[repo], nil
}

func doc(name string, score float32, isTest bool) store.Document {
	return store.Document{
		Repo:     "r",
		FilePath: "pkg/" + name + ".py",
		IsTest:   isTest,
		Score:    score,
		Chunk: chunk.Chunk{
			ID:   name,
			Text: "def " + name + "(): ...",
			Metadata: chunk.Metadata{
				Type:      chunk.TypeFunction,
				Name:      name,
				StartLine: 1,
				EndLine:   2,
			},
		},
	}
}

func TestSearchSemanticWeightsTests(t *testing.T) {
	index := &fakeIndex{semantic: []store.Document{
		doc("test_upload", 0.9, true),
		doc("upload", 0.6, false),
		doc("retry", 0.4, false),
	}}
	embedder := &fakeEmbedder{}
	s := NewSearcher(embedder, index, "python_functions", nil, nil, nil)

	resp, err := s.Search(context.Background(), Query{Text: "how are uploads retried", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, ModeSemantic, resp.Mode)
	require.Len(t, resp.Results, 2)
	// 0.9 * 0.5 = 0.45 ranks test_upload below upload but above retry.
	assert.Equal(t, "upload", resp.Results[0].Name)
	assert.Equal(t, "test_upload", resp.Results[1].Name)
	assert.Equal(t, 4, index.searchLimit)
	assert.Equal(t, []string{"how are uploads retried"}, embedder.queries)
}

func TestSearchByName(t *testing.T) {
	index := &fakeIndex{byName: map[string][]store.Document{
		"parse_config": {doc("parse_config", 0, false)},
	}}
	embedder := &fakeEmbedder{}
	s := NewSearcher(embedder, index, "c", nil, nil, nil)

	resp, err := s.Search(context.Background(), Query{Text: "parse_config", Repo: "r"})
	require.NoError(t, err)

	assert.Equal(t, ModeName, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "pkg/parse_config.py", resp.Results[0].FilePath)
	assert.Empty(t, embedder.queries)
	assert.Equal(t, map[string]interface{}{"name": "parse_config", "repo": "r"}, index.nameFilters[0])
}

func TestSearchNameFallsBackToSemantic(t *testing.T) {
	index := &fakeIndex{semantic: []store.Document{doc("load_settings", 0.7, false)}}
	embedder := &fakeEmbedder{}
	s := NewSearcher(embedder, index, "c", nil, nil, nil)

	resp, err := s.Search(context.Background(), Query{Text: "load_config"})
	require.NoError(t, err)

	assert.Equal(t, ModeSemantic, resp.Mode)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "load_settings", resp.Results[0].Name)
	assert.Len(t, embedder.queries, 1)
}

func TestSearchFilters(t *testing.T) {
	tests := []struct {
		query    Query
		expected map[string]interface{}
	}{
		{Query{Text: "x y"}, map[string]interface{}{}},
		{Query{Text: "x y", Repo: "all"}, map[string]interface{}{}},
		{Query{Text: "x y", Repo: "r", IncludeTests: "exclude"}, map[string]interface{}{"repo": "r", "is_test": false}},
		{Query{Text: "x y", IncludeTests: "only"}, map[string]interface{}{"is_test": true}},
	}

	for _, tt := range tests {
		index := &fakeIndex{}
		s := NewSearcher(&fakeEmbedder{}, index, "c", nil, nil, nil)
		_, err := s.Search(context.Background(), tt.query)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, index.searchFilters[0])
	}
}

func TestSearchCache(t *testing.T) {
	index := &fakeIndex{semantic: []store.Document{doc("upload", 0.8, false)}}
	embedder := &fakeEmbedder{}
	rc := newMemCache()
	s := NewSearcher(embedder, index, "c", rc, nil, nil)
	ctx := context.Background()
	q := Query{Text: "upload files", Repo: "r"}

	first, err := s.Search(ctx, q)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, q)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Len(t, embedder.queries, 1)

	// Re-indexing another repo leaves this entry valid.
	rc.reindexed("other")
	hit, err := s.Search(ctx, q)
	require.NoError(t, err)
	assert.True(t, hit.CacheHit)

	// A new index version misses the cache.
	rc.reindexed("r")
	third, err := s.Search(ctx, q)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Len(t, embedder.queries, 2)
}

func TestSearchAllReposCacheFollowsAnyReindex(t *testing.T) {
	index := &fakeIndex{semantic: []store.Document{doc("func_old", 0.8, false)}}
	rc := newMemCache()
	s := NewSearcher(&fakeEmbedder{}, index, "c", rc, nil, nil)
	ctx := context.Background()

	for _, repo := range []string{"", "all"} {
		t.Run("repo="+repo, func(t *testing.T) {
			q := Query{Text: "upload files to " + repo + " storage", Repo: repo}
			index.semantic = []store.Document{doc("func_old", 0.8, false)}

			before, err := s.Search(ctx, q)
			require.NoError(t, err)
			require.Len(t, before.Results, 1)
			assert.Equal(t, "func_old", before.Results[0].Name)

			rc.reindexed("r1")
			index.semantic = []store.Document{doc("func_new", 0.8, false)}

			after, err := s.Search(ctx, q)
			require.NoError(t, err)
			assert.False(t, after.CacheHit)
			require.Len(t, after.Results, 1)
			assert.Equal(t, "func_new", after.Results[0].Name)
		})
	}
}

func TestSearchErrors(t *testing.T) {
	s := NewSearcher(&fakeEmbedder{}, &fakeIndex{}, "c", nil, nil, nil)
	_, err := s.Search(context.Background(), Query{})
	require.Error(t, err)

	s = NewSearcher(&fakeEmbedder{err: errors.New("boom")}, &fakeIndex{}, "c", nil, nil, nil)
	_, err = s.Search(context.Background(), Query{Text: "some question"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding failed")
}
