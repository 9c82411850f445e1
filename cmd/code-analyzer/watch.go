// cmd/code-analyzer/watch.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/config"
	"github.com/randalmurphy/code-analyzer/internal/indexer"
	"github.com/randalmurphy/code-analyzer/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [repo-path...]",
	Short: "Keep repositories indexed as their files change",
	Long: `Poll initialized repositories and re-index them when their Python files
change. Unchanged files are skipped through the incremental file hashes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "Poll interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var repos []watch.Repo
	for _, arg := range args {
		absPath, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		repoCfg, err := config.LoadRepoConfig(absPath)
		if err != nil {
			return fmt.Errorf("failed to load repo config: %w\nRun 'code-analyzer init %s' first", err, arg)
		}
		repos = append(repos, watch.Repo{Path: absPath, Config: repoCfg})
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	opts := []indexer.Option{indexer.WithLogger(logger), indexer.WithMetrics(svc.metrics)}
	if svc.redis != nil {
		opts = append(opts, indexer.WithState(svc.redis))
	}
	idx := indexer.NewIndexer(cfg, svc.embedder, svc.store, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = watch.NewDaemon(repos, watchInterval, idx, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
