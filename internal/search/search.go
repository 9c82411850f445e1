// Package search answers natural-language and name queries over indexed
// function chunks.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/randalmurphy/code-analyzer/internal/cache"
	"github.com/randalmurphy/code-analyzer/internal/embedding"
	"github.com/randalmurphy/code-analyzer/internal/metrics"
	"github.com/randalmurphy/code-analyzer/internal/store"
)

// DefaultLimit is used when a query does not set one.
const DefaultLimit = 10

const (
	resultTTL  = 15 * time.Minute
	testWeight = 0.5
)

// Index is the read side of the vector store.
type Index interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, filter map[string]interface{}) ([]store.Document, error)
	SearchByFilter(ctx context.Context, collection string, filter map[string]interface{}, limit int) ([]store.Document, error)
}

// ResultCache stores rendered results per index version. The version of
// cache.AllRepos must change whenever any repository's version does.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	GetIndexVersion(ctx context.Context, repo string) (int64, error)
}

// Query describes one search.
type Query struct {
	Text         string
	Repo         string // empty searches every repository
	IncludeTests string // include (default), exclude or only
	Limit        int
}

// Result is one matching chunk.
type Result struct {
	Repo      string  `json:"repo"`
	FilePath  string  `json:"file_path"`
	Module    string  `json:"module,omitempty"`
	Name      string  `json:"name"`
	ChunkID   string  `json:"chunk_id"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Text      string  `json:"text"`
	Docstring string  `json:"docstring,omitempty"`
	IsTest    bool    `json:"is_test"`
	Score     float32 `json:"score,omitempty"`
}

// Response is the outcome of Search.
type Response struct {
	Mode     Mode     `json:"mode"`
	Results  []Result `json:"results"`
	CacheHit bool     `json:"-"`
}

// Searcher combines embedding, vector search and an optional result cache.
type Searcher struct {
	embedder   embedding.Embedder
	index      Index
	cache      ResultCache
	collection string
	metrics    *metrics.Logger
	logger     *slog.Logger
}

// NewSearcher creates a searcher. cache and m may be nil.
func NewSearcher(embedder embedding.Embedder, index Index, collection string, rc ResultCache, m *metrics.Logger, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder:   embedder,
		index:      index,
		cache:      rc,
		collection: collection,
		metrics:    m,
		logger:     logger,
	}
}

// Search runs q. Name queries return exact function matches when any exist
// and fall back to similarity search otherwise.
func (s *Searcher) Search(ctx context.Context, q Query) (*Response, error) {
	startTime := time.Now()

	if q.Text == "" {
		return nil, fmt.Errorf("query is required")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	mode, name := Classify(q.Text)
	s.logger.Info("search", "query", q.Text, "mode", mode, "repo", q.Repo, "limit", q.Limit)

	cacheKey := s.cacheKey(ctx, q)
	if cached := s.cached(ctx, cacheKey); cached != nil {
		s.logger.Debug("cache hit", "query", q.Text, "repo", q.Repo)
		s.metrics.LogSearch(q.Text, string(cached.Mode), len(cached.Results), time.Since(startTime).Milliseconds(), true)
		return cached, nil
	}

	filter := buildFilter(q)

	var docs []store.Document
	var err error
	if mode == ModeName {
		nameFilter := map[string]interface{}{"name": name}
		for k, v := range filter {
			nameFilter[k] = v
		}
		docs, err = s.index.SearchByFilter(ctx, s.collection, nameFilter, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("name lookup failed: %w", err)
		}
		if len(docs) == 0 {
			mode = ModeSemantic
		}
	}

	if mode == ModeSemantic {
		docs, err = s.searchSemantic(ctx, q.Text, filter, q.Limit)
		if err != nil {
			return nil, err
		}
	}

	resp := &Response{Mode: mode, Results: toResults(docs)}
	s.save(ctx, cacheKey, resp)
	s.metrics.LogSearch(q.Text, string(mode), len(resp.Results), time.Since(startTime).Milliseconds(), false)

	return resp, nil
}

func (s *Searcher) searchSemantic(ctx context.Context, query string, filter map[string]interface{}, limit int) ([]store.Document, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	// Get extra results for weighting adjustment
	docs, err := s.index.Search(ctx, s.collection, vector, limit*2, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return applyWeights(docs, limit), nil
}

// applyWeights demotes test code, re-ranks, then truncates.
func applyWeights(docs []store.Document, limit int) []store.Document {
	weight := func(d store.Document) float32 {
		if d.IsTest {
			return d.Score * testWeight
		}
		return d.Score
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return weight(docs[i]) > weight(docs[j])
	})

	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

func buildFilter(q Query) map[string]interface{} {
	filter := make(map[string]interface{})
	if q.Repo != "" && q.Repo != "all" {
		filter["repo"] = q.Repo
	}
	switch q.IncludeTests {
	case "exclude":
		filter["is_test"] = false
	case "only":
		filter["is_test"] = true
	}
	return filter
}

func toResults(docs []store.Document) []Result {
	results := make([]Result, len(docs))
	for i, d := range docs {
		m := d.Chunk.Metadata
		results[i] = Result{
			Repo:      d.Repo,
			FilePath:  d.FilePath,
			Module:    d.Module,
			Name:      m.Name,
			ChunkID:   d.Chunk.ID,
			StartLine: m.StartLine,
			EndLine:   m.EndLine,
			Text:      d.Chunk.Text,
			Docstring: m.Docstring,
			IsTest:    d.IsTest,
			Score:     d.Score,
		}
	}
	return results
}

func (s *Searcher) cacheKey(ctx context.Context, q Query) string {
	if s.cache == nil {
		return ""
	}
	repo := q.Repo
	if repo == "" {
		repo = cache.AllRepos
	}
	version, err := s.cache.GetIndexVersion(ctx, repo)
	if err != nil {
		s.logger.Warn("index version unavailable, bypassing cache", "error", err)
		return ""
	}
	return cache.QueryCacheKey(repo, fmt.Sprintf("%s|%s|%d", q.Text, q.IncludeTests, q.Limit), version)
}

func (s *Searcher) cached(ctx context.Context, key string) *Response {
	if key == "" {
		return nil
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return nil
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil
	}
	resp.CacheHit = true
	return &resp
}

func (s *Searcher) save(ctx context.Context, key string, resp *Response) {
	if key == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), resultTTL); err != nil {
		s.logger.Warn("failed to cache result", "error", err)
	}
}
