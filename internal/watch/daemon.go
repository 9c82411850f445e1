// Package watch re-indexes repositories when their Python files change.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/randalmurphy/code-analyzer/internal/config"
	"github.com/randalmurphy/code-analyzer/internal/indexer"
)

// Indexer runs one indexing pass over a repository.
type Indexer interface {
	Index(ctx context.Context, repoPath string, repoCfg *config.RepoConfig) (*indexer.IndexResult, error)
}

// Repo is a repository to watch.
type Repo struct {
	Path   string
	Config *config.RepoConfig
}

// Daemon polls repositories and re-indexes the ones whose indexed files
// changed since the previous poll.
type Daemon struct {
	repos    []Repo
	interval time.Duration
	indexer  Indexer
	logger   *slog.Logger

	// fingerprints maps repo name to the last indexed file-set fingerprint.
	fingerprints map[string]string
}

// NewDaemon creates a new watch daemon.
func NewDaemon(repos []Repo, interval time.Duration, idx Indexer, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		repos:        repos,
		interval:     interval,
		indexer:      idx,
		logger:       logger,
		fingerprints: make(map[string]string),
	}
}

// Run indexes every repo once, then polls until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting watch daemon", "interval", d.interval, "repos", len(d.repos))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.SyncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon shutting down")
			return ctx.Err()
		case <-ticker.C:
			d.SyncAll(ctx)
		}
	}
}

// SyncAll checks each repo once. Failures are logged and retried on the
// next poll.
func (d *Daemon) SyncAll(ctx context.Context) {
	for _, repo := range d.repos {
		if ctx.Err() != nil {
			return
		}
		if err := d.syncRepo(ctx, repo); err != nil {
			d.logger.Error("sync failed", "repo", repo.Config.Name, "error", err)
		}
	}
}

func (d *Daemon) syncRepo(ctx context.Context, repo Repo) error {
	name := repo.Config.Name

	current, err := Fingerprint(repo.Path, repo.Config)
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}
	if current == d.fingerprints[name] {
		d.logger.Debug("repo unchanged", "name", name)
		return nil
	}

	d.logger.Info("repo changed, syncing", "name", name)

	result, err := d.indexer.Index(ctx, repo.Path, repo.Config)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	d.logger.Info("sync complete",
		"repo", name,
		"files", result.FilesProcessed,
		"unchanged", result.FilesUnchanged,
		"chunks", result.ChunksCreated,
		"errors", len(result.Errors),
	)

	d.fingerprints[name] = current
	return nil
}

// Fingerprint hashes the path, size and modification time of every file the
// repo config selects. Any edit, addition or removal changes it.
func Fingerprint(root string, repoCfg *config.RepoConfig) (string, error) {
	files, err := indexer.NewWalker(repoCfg.Include, repoCfg.Exclude).Files(root)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		rel, _ := filepath.Rel(root, path)
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", rel, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
