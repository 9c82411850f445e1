// cmd/code-analyzer/analyze.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/analyzer"
	"github.com/randalmurphy/code-analyzer/internal/chunk"
)

var extractCmd = &cobra.Command{
	Use:   "extract NAME...",
	Short: "Extract functions and the functions they call",
	Long: `Print the named functions of a Python file as a Markdown report. With
--depth N the functions they call, up to N levels, are included too.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

var outlineCmd = &cobra.Command{
	Use:   "outline FILE",
	Short: "Print imports and function signatures of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runOutline,
}

var chunksCmd = &cobra.Command{
	Use:   "chunks FILE",
	Short: "Split a file's functions into token-bounded chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

var callgraphCmd = &cobra.Command{
	Use:   "callgraph FILE",
	Short: "Print which names each function calls",
	Args:  cobra.ExactArgs(1),
	RunE:  runCallgraph,
}

var (
	extractFile  string
	extractDepth int
	extractJSON  bool

	chunksMaxTokens int
	chunksJSON      bool

	callgraphDOT bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "Python file to read (default: stdin)")
	extractCmd.Flags().IntVarP(&extractDepth, "depth", "d", -1, "Call levels to follow (default from config)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Output function records as JSON")

	chunksCmd.Flags().IntVar(&chunksMaxTokens, "max-tokens", 0, "Token budget per chunk (default from config)")
	chunksCmd.Flags().BoolVar(&chunksJSON, "json", false, "Output as JSON")

	callgraphCmd.Flags().BoolVar(&callgraphDOT, "dot", false, "Render as Graphviz DOT")

	rootCmd.AddCommand(extractCmd, outlineCmd, chunksCmd, callgraphCmd)
}

// load reads and analyzes path; "-" and "" read stdin.
func load(cmd *cobra.Command, path string) (*analyzer.Analyzer, error) {
	var source []byte
	var err error
	if path == "" || path == "-" {
		source, err = io.ReadAll(cmd.InOrStdin())
	} else {
		source, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	a, err := analyzer.New(source)
	if err != nil {
		return nil, err
	}
	logger.Debug("analyzed", "path", path, "functions", len(a.Functions()))
	return a, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	depth := extractDepth
	if !cmd.Flags().Changed("depth") {
		depth = cfg.Analysis.Depth
	}
	if depth < 0 {
		return fmt.Errorf("depth must not be negative")
	}

	a, err := load(cmd, extractFile)
	if err != nil {
		return err
	}

	functions := a.ExtractWithDependencies(args, depth)
	if extractJSON {
		return writeJSON(cmd.OutOrStdout(), functions)
	}
	fmt.Fprintln(cmd.OutOrStdout(), analyzer.Format(functions))
	return nil
}

func runOutline(cmd *cobra.Command, args []string) error {
	a, err := load(cmd, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.Outline())
	return nil
}

func runChunks(cmd *cobra.Command, args []string) error {
	maxTokens := chunksMaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.Analysis.MaxChunkTokens
	}

	a, err := load(cmd, args[0])
	if err != nil {
		return err
	}

	chunks := chunk.File(a, maxTokens)
	if chunksJSON {
		return writeJSON(cmd.OutOrStdout(), chunks)
	}

	out := cmd.OutOrStdout()
	for _, c := range chunks {
		m := c.Metadata
		label := m.Name
		if m.IsPartial {
			label = fmt.Sprintf("%s (part %d)", m.Name, m.Part)
		}
		fmt.Fprintf(out, "--- %s lines %d-%d, ~%d tokens\n%s\n\n", label, m.StartLine, m.EndLine, c.TokenEstimate(), c.Text)
	}
	return nil
}

func runCallgraph(cmd *cobra.Command, args []string) error {
	a, err := load(cmd, args[0])
	if err != nil {
		return err
	}

	graph := a.CallGraph()
	if callgraphDOT {
		return graph.WriteDOT(cmd.OutOrStdout())
	}

	out := cmd.OutOrStdout()
	for _, name := range graph.Names() {
		fmt.Fprintf(out, "%s -> %v\n", name, graph.Callees(name))
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
