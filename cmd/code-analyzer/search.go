// cmd/code-analyzer/search.go
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Search indexed functions by name or description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var (
	searchRepo  string
	searchTests string
	searchLimit int
	searchJSON  bool
)

func init() {
	searchCmd.Flags().StringVar(&searchRepo, "repo", "", "Restrict to one repository")
	searchCmd.Flags().StringVar(&searchTests, "tests", "include", "Test code: include, exclude or only")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", search.DefaultLimit, "Maximum results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	var rc search.ResultCache
	if svc.redis != nil {
		rc = svc.redis
	}
	searcher := search.NewSearcher(svc.embedder, svc.store, cfg.Storage.Collection, rc, svc.metrics, logger)

	resp, err := searcher.Search(context.Background(), search.Query{
		Text:         strings.Join(args, " "),
		Repo:         searchRepo,
		IncludeTests: searchTests,
		Limit:        searchLimit,
	})
	if err != nil {
		return err
	}

	if searchJSON {
		return writeJSON(cmd.OutOrStdout(), resp)
	}

	out := cmd.OutOrStdout()
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%d. %s  %s:%d-%d", i+1, r.Name, r.FilePath, r.StartLine, r.EndLine)
		if r.Score > 0 {
			fmt.Fprintf(out, "  (%.3f)", r.Score)
		}
		fmt.Fprintln(out)
		if r.Docstring != "" {
			fmt.Fprintf(out, "   %s\n", firstLine(r.Docstring))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
