// cmd/code-analyzer/metrics.go
package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Summarize usage metrics",
	Long:  `Summarize tool calls, searches and index runs from the metrics log.`,
	RunE:  runMetrics,
}

var (
	metricsSince string
	metricsJSON  bool
)

func init() {
	metricsCmd.Flags().StringVar(&metricsSince, "last", "7d", "Time period (e.g., 1h, 24h, 7d, 30d)")
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	duration, err := parseDuration(metricsSince)
	if err != nil {
		return fmt.Errorf("invalid time period: %w", err)
	}

	out := cmd.OutOrStdout()
	path := metrics.DefaultPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "No metrics data found.")
		return nil
	}

	summary, err := metrics.NewReader(path).Summarize(duration)
	if err != nil {
		return err
	}

	if metricsJSON {
		return writeJSON(out, summary)
	}

	fmt.Fprintf(out, "Metrics Summary (last %s):\n\n", metricsSince)
	fmt.Fprintf(out, "  Tool calls:          %d (%d failed, avg %dms)\n", summary.TotalToolCalls(), summary.FailedToolCalls, summary.AvgToolMs)
	fmt.Fprintf(out, "  Searches:            %d\n", summary.Searches)
	fmt.Fprintf(out, "  Cache hits:          %d\n", summary.CacheHits)
	fmt.Fprintf(out, "  Zero-result queries: %d\n", summary.ZeroResultCount)
	fmt.Fprintf(out, "  Index runs:          %d (%d chunks)\n", summary.IndexRuns, summary.ChunksIndexed)
	fmt.Fprintf(out, "  Errors:              %d\n", summary.Errors)

	if len(summary.ToolCalls) > 0 {
		tools := make([]string, 0, len(summary.ToolCalls))
		for name := range summary.ToolCalls {
			tools = append(tools, name)
		}
		sort.Strings(tools)

		fmt.Fprintln(out, "\n  Calls by tool:")
		for _, name := range tools {
			fmt.Fprintf(out, "    - %s: %d\n", name, summary.ToolCalls[name])
		}
	}
	if len(summary.TopQueries) > 0 {
		fmt.Fprintln(out, "\n  Top queries:")
		for _, q := range summary.TopQueries {
			fmt.Fprintf(out, "    - %q (%d times)\n", q.Query, q.Count)
		}
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	// Handle day suffix
	if len(s) > 0 && s[len(s)-1] == 'd' {
		var d int
		if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &d); err == nil {
			return time.Duration(d) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
