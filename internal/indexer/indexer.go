package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphy/code-analyzer/internal/analyzer"
	"github.com/randalmurphy/code-analyzer/internal/cache"
	"github.com/randalmurphy/code-analyzer/internal/chunk"
	"github.com/randalmurphy/code-analyzer/internal/config"
	"github.com/randalmurphy/code-analyzer/internal/embedding"
	"github.com/randalmurphy/code-analyzer/internal/metrics"
	"github.com/randalmurphy/code-analyzer/internal/security"
	"github.com/randalmurphy/code-analyzer/internal/store"
)

const upsertBatchSize = 100

// VectorStore is where embedded chunks end up.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	DeleteFile(ctx context.Context, collection, repo, filePath string) error
	Upsert(ctx context.Context, collection string, docs []store.Document) error
}

// StateStore remembers file hashes between runs and versions the index.
// It is optional; without it every file is re-indexed and points of deleted
// files are not swept.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	IncrIndexVersion(ctx context.Context, repo string) (int64, error)
}

// Indexer coordinates the indexing pipeline: file discovery, analysis and
// chunking, secret redaction, embedding generation, and storage.
type Indexer struct {
	config   *config.Config
	embedder embedding.Embedder
	store    VectorStore
	state    StateStore
	chunker  *chunk.Chunker
	secrets  *security.SecretDetector
	metrics  *metrics.Logger
	logger   *slog.Logger
	progress func(path string)
	force    bool
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithState enables incremental runs and index versioning.
func WithState(s StateStore) Option {
	return func(idx *Indexer) { idx.state = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithMetrics records an index_run event per run.
func WithMetrics(m *metrics.Logger) Option {
	return func(idx *Indexer) { idx.metrics = m }
}

// WithProgress registers fn to be called once per analyzed file. Calls are
// serialized but arrive in completion order.
func WithProgress(fn func(path string)) Option {
	return func(idx *Indexer) { idx.progress = fn }
}

// WithForce re-indexes files whose content has not changed.
func WithForce(force bool) Option {
	return func(idx *Indexer) { idx.force = force }
}

// NewIndexer creates a new indexer with the given configuration.
func NewIndexer(cfg *config.Config, embedder embedding.Embedder, vectors VectorStore, opts ...Option) *Indexer {
	idx := &Indexer{
		config:   cfg,
		embedder: embedder,
		store:    vectors,
		chunker:  chunk.NewChunker(),
		secrets:  security.NewSecretDetector(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexResult contains statistics from an indexing run.
type IndexResult struct {
	FilesFound      int
	FilesProcessed  int
	FilesUnchanged  int
	FilesRemoved    int
	ChunksCreated   int
	SecretsRedacted int
	Errors          []error
}

// fileResult is the outcome of analyzing one file.
type fileResult struct {
	relPath string
	hash    string
	docs    []store.Document
	skipped bool
	err     error
}

// Index processes a repository, extracting function chunks, generating
// embeddings, and storing them in the vector database. Files that fail to
// read or parse are reported in IndexResult.Errors and do not stop the run.
func (idx *Indexer) Index(ctx context.Context, repoPath string, repoCfg *config.RepoConfig) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	walker := NewWalker(repoCfg.Include, repoCfg.Exclude)
	paths, err := walker.Files(repoPath)
	if err != nil {
		return result, fmt.Errorf("walk failed: %w", err)
	}
	result.FilesFound = len(paths)

	removed := idx.removedFiles(ctx, repoPath, repoCfg.Name, paths)
	if len(paths) == 0 && len(removed) == 0 {
		return result, nil
	}

	collection := idx.config.Storage.Collection
	if err := idx.store.EnsureCollection(ctx, collection, idx.embedder.Dimension()); err != nil {
		return result, fmt.Errorf("failed to ensure collection: %w", err)
	}

	for _, relPath := range removed {
		if err := idx.store.DeleteFile(ctx, collection, repoCfg.Name, relPath); err != nil {
			return result, fmt.Errorf("delete chunks of removed %s: %w", relPath, err)
		}
		if err := idx.state.Delete(ctx, cache.FileHashKey(repoCfg.Name, relPath)); err != nil {
			idx.logger.Warn("failed to forget removed file", "path", relPath, "error", err)
		}
		result.FilesRemoved++
	}

	files, err := idx.analyzeAll(ctx, repoPath, repoCfg.Name, paths)
	if err != nil {
		return result, err
	}

	var docs []store.Document
	var changed []fileResult
	for _, f := range files {
		switch {
		case f.err != nil:
			idx.logger.Warn("skipping file", "path", f.relPath, "error", f.err)
			result.Errors = append(result.Errors, f.err)
			idx.metrics.LogError("index", f.err.Error())
		case f.skipped:
			result.FilesUnchanged++
		default:
			result.FilesProcessed++
			changed = append(changed, f)
			docs = append(docs, f.docs...)
		}
	}

	for _, d := range docs {
		if d.Chunk.Metadata.HasSecrets {
			result.SecretsRedacted++
		}
	}

	if len(docs) > 0 {
		idx.logger.Info("generating embeddings", "chunks", len(docs))

		texts := make([]string, len(docs))
		for i := range docs {
			texts[i] = buildEmbeddingText(&docs[i])
		}

		vectors, err := embedding.EmbedBatched(ctx, idx.embedder, texts, idx.config.Indexing.BatchSize)
		if err != nil {
			return result, fmt.Errorf("embedding failed: %w", err)
		}
		for i := range docs {
			docs[i].Vector = vectors[i]
		}
	}

	// Drop points of the previous version of each file so removed or
	// renamed functions do not linger.
	for _, f := range changed {
		if err := idx.store.DeleteFile(ctx, collection, repoCfg.Name, f.relPath); err != nil {
			return result, fmt.Errorf("delete stale chunks of %s: %w", f.relPath, err)
		}
	}

	idx.logger.Info("storing chunks", "count", len(docs))
	for i := 0; i < len(docs); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(docs))
		if err := idx.store.Upsert(ctx, collection, docs[i:end]); err != nil {
			return result, fmt.Errorf("upsert failed: %w", err)
		}
	}
	result.ChunksCreated = len(docs)

	idx.recordState(ctx, repoCfg.Name, changed, len(removed) > 0)

	idx.metrics.LogIndexRun(repoCfg.Name, result.FilesProcessed, result.ChunksCreated,
		len(result.Errors), time.Since(start).Milliseconds())

	return result, nil
}

// analyzeAll chunks every file with a bounded worker pool. The returned slice
// is in the order of paths.
func (idx *Indexer) analyzeAll(ctx context.Context, repoPath, repo string, paths []string) ([]fileResult, error) {
	results := make([]fileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, idx.config.Indexing.Workers))

	var progressMu sync.Mutex
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			relPath := relativePath(repoPath, path)
			results[i] = idx.analyzeFile(ctx, repo, path, relPath)

			if idx.progress != nil {
				progressMu.Lock()
				idx.progress(relPath)
				progressMu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (idx *Indexer) analyzeFile(ctx context.Context, repo, path, relPath string) fileResult {
	res := fileResult{relPath: relPath}

	source, err := os.ReadFile(path)
	if err != nil {
		res.err = fmt.Errorf("read %s: %w", relPath, err)
		return res
	}

	res.hash = computeFileHash(source)
	if idx.unchanged(ctx, repo, relPath, res.hash) {
		res.skipped = true
		return res
	}

	docs, err := idx.ChunkFile(source, repo, relPath)
	if err != nil {
		res.err = fmt.Errorf("analyze %s: %w", relPath, err)
		return res
	}
	res.docs = docs
	return res
}

// ChunkFile analyzes one Python source and returns its redacted chunks as
// storable documents.
func (idx *Indexer) ChunkFile(source []byte, repo, relPath string) ([]store.Document, error) {
	a, err := analyzer.New(source)
	if err != nil {
		return nil, err
	}

	chunks := idx.chunker.Chunk(a.Functions(), idx.config.Analysis.MaxChunkTokens)
	module := ModulePath(relPath)
	isTest := IsTestFile(relPath)

	docs := make([]store.Document, len(chunks))
	for i, c := range chunks {
		redacted, found := idx.secrets.Scan(c.Text)
		if len(found) > 0 {
			c.Text = redacted
			c.Metadata.HasSecrets = true
		}
		docs[i] = store.Document{
			Repo:     repo,
			FilePath: relPath,
			Module:   module,
			IsTest:   isTest,
			Chunk:    c,
		}
	}
	return docs, nil
}

func (idx *Indexer) unchanged(ctx context.Context, repo, relPath, hash string) bool {
	if idx.state == nil || idx.force {
		return false
	}
	prev, err := idx.state.Get(ctx, cache.FileHashKey(repo, relPath))
	if err != nil {
		idx.logger.Debug("file hash lookup failed", "path", relPath, "error", err)
		return false
	}
	return prev == hash
}

// removedFiles lists files with a recorded hash that the walk no longer
// finds.
func (idx *Indexer) removedFiles(ctx context.Context, repoPath, repo string, paths []string) []string {
	if idx.state == nil {
		return nil
	}
	prefix := cache.FileHashKey(repo, "")
	keys, err := idx.state.Keys(ctx, prefix+"*")
	if err != nil {
		idx.logger.Warn("cannot list indexed files, skipping removal sweep", "repo", repo, "error", err)
		return nil
	}

	present := make(map[string]bool, len(paths))
	for _, path := range paths {
		present[relativePath(repoPath, path)] = true
	}

	var removed []string
	for _, key := range keys {
		if relPath := strings.TrimPrefix(key, prefix); !present[relPath] {
			removed = append(removed, relPath)
		}
	}
	sort.Strings(removed)
	return removed
}

func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (idx *Indexer) recordState(ctx context.Context, repo string, changed []fileResult, removed bool) {
	if idx.state == nil || (len(changed) == 0 && !removed) {
		return
	}

	var errs []error
	for _, f := range changed {
		errs = append(errs, idx.state.Set(ctx, cache.FileHashKey(repo, f.relPath), f.hash, 0))
	}
	if _, err := idx.state.IncrIndexVersion(ctx, repo); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		idx.logger.Warn("failed to record index state", "repo", repo, "error", err)
	}
}

func computeFileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// buildEmbeddingText prefixes chunk text with its location for better embeddings.
func buildEmbeddingText(d *store.Document) string {
	var parts []string

	header := "# File: " + d.FilePath
	if d.Module != "" {
		header += "\n# Module: " + d.Module
	}
	parts = append(parts, header)
	parts = append(parts, d.Chunk.Text)

	return strings.Join(parts, "\n\n")
}
