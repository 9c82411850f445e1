// cmd/code-analyzer/index.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/config"
	"github.com/randalmurphy/code-analyzer/internal/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index [repo-path]",
	Short: "Index a repository's Python functions for search",
	Long: `Chunk every Python function of a repository, embed the chunks and store
them in Qdrant. Files whose content is unchanged since the last run are skipped
unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var (
	indexForce      bool
	indexNoProgress bool
)

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Re-index unchanged files")
	indexCmd.Flags().BoolVar(&indexNoProgress, "no-progress", false, "Disable the progress bar")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return fmt.Errorf("repository not found: %s", absPath)
	}

	repoCfg, err := config.LoadRepoConfig(absPath)
	if os.IsNotExist(err) {
		repoCfg = config.DefaultRepoConfig(filepath.Base(absPath))
		logger.Info("no repo config, using defaults", "name", repoCfg.Name)
	} else if err != nil {
		return fmt.Errorf("failed to load repo config: %w", err)
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	files, err := indexer.NewWalker(repoCfg.Include, repoCfg.Exclude).Files(absPath)
	if err != nil {
		return fmt.Errorf("walk %s: %w", absPath, err)
	}

	opts := []indexer.Option{
		indexer.WithLogger(logger),
		indexer.WithMetrics(svc.metrics),
		indexer.WithForce(indexForce),
	}
	if svc.redis != nil {
		opts = append(opts, indexer.WithState(svc.redis))
	}
	if !indexNoProgress {
		bar := progressbar.Default(int64(len(files)), "analyzing")
		defer bar.Finish()
		opts = append(opts, indexer.WithProgress(func(string) { _ = bar.Add(1) }))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Indexing %s (%s)...\n", repoCfg.Name, absPath)

	idx := indexer.NewIndexer(cfg, svc.embedder, svc.store, opts...)
	result, err := idx.Index(ctx, absPath, repoCfg)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nIndexing complete:\n")
	fmt.Fprintf(out, "  Files found:      %d\n", result.FilesFound)
	fmt.Fprintf(out, "  Files processed:  %d\n", result.FilesProcessed)
	fmt.Fprintf(out, "  Files unchanged:  %d\n", result.FilesUnchanged)
	if result.FilesRemoved > 0 {
		fmt.Fprintf(out, "  Files removed:    %d\n", result.FilesRemoved)
	}
	fmt.Fprintf(out, "  Chunks created:   %d\n", result.ChunksCreated)
	if result.SecretsRedacted > 0 {
		fmt.Fprintf(out, "  Secrets redacted: %d\n", result.SecretsRedacted)
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "    - %v\n", e)
		}
	}

	return nil
}
