// cmd/code-analyzer/invalidate.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/cache"
	"github.com/randalmurphy/code-analyzer/internal/config"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate FILE",
	Short: "Mark a file as needing re-indexing",
	Long: `Forget the stored content hash of FILE so the next index run processes it,
and bump the repository's index version to invalidate cached search results.
Meant to be called from editor hooks; failures are reported but never fatal.`,
	Args: cobra.ExactArgs(1),
	RunE: runInvalidate,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the Redis cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached embeddings, search results and file hashes",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(invalidateCmd, cacheCmd)
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return nil
	}

	root, repoCfg := findRepo(filepath.Dir(absPath))
	if repoCfg == nil {
		logger.Debug("file is not inside an initialized repository", "path", absPath)
		return nil
	}
	relPath, err := filepath.Rel(root, absPath)
	if err != nil {
		return nil
	}

	redisCache, err := cache.NewRedisCache(cfg.Storage.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable", "error", err)
		return nil
	}
	defer redisCache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisCache.Delete(ctx, cache.FileHashKey(repoCfg.Name, relPath)); err != nil {
		logger.Warn("failed to clear file hash", "path", relPath, "error", err)
		return nil
	}
	version, err := redisCache.IncrIndexVersion(ctx, repoCfg.Name)
	if err != nil {
		logger.Warn("failed to bump index version", "repo", repoCfg.Name, "error", err)
		return nil
	}

	fmt.Fprintf(os.Stderr, "[code-analyzer] Marked %s for re-indexing (version: %d)\n", relPath, version)
	return nil
}

// findRepo walks up from dir to the nearest directory holding a repo config.
func findRepo(dir string) (string, *config.RepoConfig) {
	for {
		if repoCfg, err := config.LoadRepoConfig(dir); err == nil {
			return dir, repoCfg
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	redisCache, err := cache.NewRedisCache(cfg.Storage.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Storage.RedisURL, err)
	}
	defer redisCache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := redisCache.ClearAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%d keys).\n", n)
	return nil
}
