// cmd/code-analyzer/status.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/metrics"
	"github.com/randalmurphy/code-analyzer/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	qdrantStore, err := store.NewQdrantStore(cfg.Storage.QdrantURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant at %s: %w", cfg.Storage.QdrantURL, err)
	}
	defer qdrantStore.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := qdrantStore.CollectionInfo(ctx, cfg.Storage.Collection)
	if err != nil {
		logger.Debug("collection info failed", "error", err)
		fmt.Fprintln(out, "No index found. Run 'code-analyzer index <repo>' to create one.")
	} else {
		fmt.Fprintln(out, "Index Status:")
		fmt.Fprintf(out, "  Collection: %s\n", cfg.Storage.Collection)
		fmt.Fprintf(out, "  Points:     %d\n", info.PointsCount)
		fmt.Fprintf(out, "  Vectors:    %d dimensions\n", info.VectorSize)
		fmt.Fprintf(out, "  Status:     %s\n", info.Status)
	}

	path := metrics.DefaultPath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	summary, err := metrics.NewReader(path).Summarize(7 * 24 * time.Hour)
	if err != nil {
		return fmt.Errorf("read metrics: %w", err)
	}
	fmt.Fprintln(out, "\nLast 7 days:")
	fmt.Fprintf(out, "  Index runs:     %d (%d chunks)\n", summary.IndexRuns, summary.ChunksIndexed)
	fmt.Fprintf(out, "  Searches:       %d\n", summary.Searches)
	fmt.Fprintf(out, "  Tool calls:     %d\n", summary.TotalToolCalls())
	return nil
}
