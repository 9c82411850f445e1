// Package mcp exposes the analyzer as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/randalmurphy/code-analyzer/internal/analyzer"
	"github.com/randalmurphy/code-analyzer/internal/chunk"
	"github.com/randalmurphy/code-analyzer/internal/config"
	"github.com/randalmurphy/code-analyzer/internal/metrics"
	"github.com/randalmurphy/code-analyzer/internal/search"
	"github.com/randalmurphy/code-analyzer/internal/security"
)

type handlerFunc = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Searcher answers python_search calls.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (*search.Response, error)
}

// Tools holds the shared state behind every registered tool.
type Tools struct {
	maxTokens int
	depth     int
	chunker   *chunk.Chunker
	secrets   *security.SecretDetector
	searcher  Searcher
	metrics   *metrics.Logger
	logger    *slog.Logger
}

// Option configures Tools.
type Option func(*Tools)

// WithSearcher enables the python_search tool.
func WithSearcher(s Searcher) Option {
	return func(t *Tools) { t.searcher = s }
}

// WithMetrics records one tool_call event per invocation.
func WithMetrics(m *metrics.Logger) Option {
	return func(t *Tools) { t.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tools) { t.logger = l }
}

// NewTools creates the tool set with budgets taken from cfg.
func NewTools(cfg *config.Config, opts ...Option) *Tools {
	t := &Tools{
		maxTokens: cfg.Analysis.MaxChunkTokens,
		depth:     cfg.Analysis.Depth,
		chunker:   chunk.NewChunker(),
		secrets:   security.NewSecretDetector(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewServer builds an MCP server with every tool registered.
func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))
	tools.Register(s)
	return s
}

// Register adds the tools to s. python_search is only added when a searcher
// was configured.
func (t *Tools) Register(s *server.MCPServer) {
	sourceOpts := []mcp.ToolOption{
		mcp.WithString("source", mcp.Description("Python source text. Takes precedence over path.")),
		mcp.WithString("path", mcp.Description("Path of a Python file to read when source is not given.")),
	}

	s.AddTool(mcp.NewTool("python_outline", append([]mcp.ToolOption{
		mcp.WithDescription("Summarize a Python file as its imports and one signature stub per function, without bodies."),
		mcp.WithReadOnlyHintAnnotation(true),
	}, sourceOpts...)...), t.instrument("python_outline", t.handleOutline))

	s.AddTool(mcp.NewTool("python_extract", append([]mcp.ToolOption{
		mcp.WithDescription("Extract named functions, plus the functions they call up to depth levels, as a Markdown report."),
		mcp.WithArray("names", mcp.Required(), mcp.Description("Function names to extract"), mcp.WithStringItems()),
		mcp.WithNumber("depth", mcp.Description("Call levels to follow from the named functions (default from config)")),
		mcp.WithReadOnlyHintAnnotation(true),
	}, sourceOpts...)...), t.instrument("python_extract", t.handleExtract))

	s.AddTool(mcp.NewTool("python_callgraph", append([]mcp.ToolOption{
		mcp.WithDescription("Map each function to the names it calls. Calls are matched by name only."),
		mcp.WithBoolean("dot", mcp.Description("Render as Graphviz DOT instead of JSON")),
		mcp.WithReadOnlyHintAnnotation(true),
	}, sourceOpts...)...), t.instrument("python_callgraph", t.handleCallGraph))

	s.AddTool(mcp.NewTool("python_chunks", append([]mcp.ToolOption{
		mcp.WithDescription("Split a Python file into per-function chunks that fit a token budget. Secrets are redacted."),
		mcp.WithNumber("max_tokens", mcp.Description("Token budget per chunk (default from config)")),
		mcp.WithReadOnlyHintAnnotation(true),
	}, sourceOpts...)...), t.instrument("python_chunks", t.handleChunks))

	if t.searcher != nil {
		s.AddTool(mcp.NewTool("python_search",
			mcp.WithDescription("Search indexed Python functions by name or by describing what they do."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Function name or natural-language question")),
			mcp.WithString("repo", mcp.Description("Repository to search (default: all)")),
			mcp.WithString("include_tests", mcp.Description("include (default), exclude or only")),
			mcp.WithNumber("limit", mcp.Description("Maximum results (default: 10)")),
			mcp.WithReadOnlyHintAnnotation(true),
		), t.instrument("python_search", t.handleSearch))
	}
}

// instrument logs latency and outcome of every call.
func (t *Tools) instrument(name string, h handlerFunc) handlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := h(ctx, request)
		failed := err != nil || (result != nil && result.IsError)

		latency := time.Since(start).Milliseconds()
		t.metrics.LogToolCall(name, latency, failed)
		if err != nil {
			t.metrics.LogError(name, err.Error())
			t.logger.Error("tool failed", "tool", name, "error", err)
		} else {
			t.logger.Info("tool call", "tool", name, "latency_ms", latency, "failed", failed)
		}
		return result, err
	}
}

func (t *Tools) handleOutline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, errResult := analyze(request)
	if errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(a.Outline()), nil
}

func (t *Tools) handleExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	names := stringList(args["names"])
	if len(names) == 0 {
		return mcp.NewToolResultError("names parameter is required"), nil
	}
	depth := intArg(args, "depth", t.depth)
	if depth < 0 {
		return mcp.NewToolResultError("depth must not be negative"), nil
	}

	a, errResult := analyze(request)
	if errResult != nil {
		return errResult, nil
	}
	return mcp.NewToolResultText(analyzer.Format(a.ExtractWithDependencies(names, depth))), nil
}

func (t *Tools) handleCallGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	a, errResult := analyze(request)
	if errResult != nil {
		return errResult, nil
	}

	if dot, _ := args["dot"].(bool); dot {
		var sb strings.Builder
		if err := a.CallGraph().WriteDOT(&sb); err != nil {
			return nil, fmt.Errorf("render call graph: %w", err)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
	return marshalResult(a.CallGraph())
}

func (t *Tools) handleChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	maxTokens := intArg(args, "max_tokens", t.maxTokens)
	if maxTokens <= 0 {
		return mcp.NewToolResultError("max_tokens must be positive"), nil
	}

	a, errResult := analyze(request)
	if errResult != nil {
		return errResult, nil
	}

	chunks := t.chunker.Chunk(a.Functions(), maxTokens)
	for i := range chunks {
		text, found := t.secrets.Scan(chunks[i].Text)
		if len(found) > 0 {
			chunks[i].Text = text
			chunks[i].Metadata.HasSecrets = true
		}
	}
	return marshalResult(chunks)
}

func (t *Tools) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	repo, _ := args["repo"].(string)
	tests, _ := args["include_tests"].(string)

	resp, err := t.searcher.Search(ctx, search.Query{
		Text:         query,
		Repo:         repo,
		IncludeTests: tests,
		Limit:        intArg(args, "limit", search.DefaultLimit),
	})
	if err != nil {
		return nil, err
	}
	return marshalResult(resp)
}

// analyze loads the source named by the request and analyzes it. Problems
// the caller can fix come back as an error result.
func analyze(request mcp.CallToolRequest) (*analyzer.Analyzer, *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, mcp.NewToolResultError("invalid arguments format")
	}

	var source []byte
	if s, ok := args["source"].(string); ok && s != "" {
		source = []byte(s)
	} else if path, ok := args["path"].(string); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err))
		}
		source = data
	} else {
		return nil, mcp.NewToolResultError("either source or path is required")
	}

	// Syntax errors are reported to the caller, not raised.
	a, err := analyzer.New(source)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return a, nil
}

func marshalResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringList accepts a JSON array of strings or a comma-separated string.
func stringList(v interface{}) []string {
	var out []string
	switch val := v.(type) {
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, val...)
	case string:
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// intArg reads a numeric argument; JSON numbers decode as float64.
func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}
