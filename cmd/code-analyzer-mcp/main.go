// cmd/code-analyzer-mcp/main.go
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/randalmurphy/code-analyzer/internal/cache"
	"github.com/randalmurphy/code-analyzer/internal/config"
	"github.com/randalmurphy/code-analyzer/internal/embedding"
	"github.com/randalmurphy/code-analyzer/internal/mcp"
	"github.com/randalmurphy/code-analyzer/internal/metrics"
	"github.com/randalmurphy/code-analyzer/internal/search"
	"github.com/randalmurphy/code-analyzer/internal/store"
)

const (
	serverName    = "code-analyzer-mcp"
	serverVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "code-analyzer-mcp",
	Short: "MCP server for Python structural analysis",
	Long:  `An MCP (Model Context Protocol) server exposing Python outline, extraction, call graph and chunking tools.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long:  `Start the MCP server listening on stdin/stdout for JSON-RPC messages.`,
	RunE:  runServe,
}

var (
	logFile    string
	configPath string
)

func init() {
	serveCmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (defaults to ~/.cache/code-analyzer/server.log)")
	serveCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath(), "Global config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set up logging to file (NOT stdout - that's for MCP protocol)
	logger, cleanup, err := setupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	logger.Info("starting MCP server", "name", serverName, "version", serverVersion)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m, err := metrics.NewLogger(metrics.DefaultPath())
	if err != nil {
		logger.Warn("metrics disabled", "error", err)
	}
	defer m.Close()

	opts := []mcp.Option{mcp.WithLogger(logger), mcp.WithMetrics(m)}

	// Search needs Voyage and Qdrant; the analysis tools work without them.
	if voyageKey := os.Getenv("VOYAGE_API_KEY"); voyageKey != "" {
		searcher, closeSearch, err := newSearcher(cfg, voyageKey, m, logger)
		if err != nil {
			logger.Warn("search disabled", "error", err)
		} else {
			defer closeSearch()
			opts = append(opts, mcp.WithSearcher(searcher))
		}
	}

	s := mcp.NewServer(serverName, serverVersion, mcp.NewTools(cfg, opts...))
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newSearcher(cfg *config.Config, voyageKey string, m *metrics.Logger, logger *slog.Logger) (*search.Searcher, func(), error) {
	qdrantStore, err := store.NewQdrantStore(cfg.Storage.QdrantURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to Qdrant: %w", err)
	}

	var embedder embedding.Embedder = embedding.NewVoyageClient(voyageKey, cfg.Embedding.Model)
	var rc search.ResultCache
	var redisCache *cache.RedisCache
	if cfg.Storage.RedisURL != "" {
		if redisCache, err = cache.NewRedisCache(cfg.Storage.RedisURL); err != nil {
			logger.Warn("redis unavailable, running without cache", "error", err)
			redisCache = nil
		} else {
			rc = redisCache
			embedder = cache.NewCachedEmbedder(embedder, redisCache, cfg.Embedding.Model, logger)
		}
	}

	closeAll := func() {
		qdrantStore.Close()
		if redisCache != nil {
			redisCache.Close()
		}
	}
	return search.NewSearcher(embedder, qdrantStore, cfg.Storage.Collection, rc, m, logger), closeAll, nil
}

func setupLogging() (*slog.Logger, func(), error) {
	path := logFile
	if path == "" {
		// Default to ~/.cache/code-analyzer/server.log
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = "/tmp"
		}
		logDir := filepath.Join(cacheDir, "code-analyzer")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path = filepath.Join(logDir, "server.log")
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cleanup := func() {
		file.Close()
	}

	return logger, cleanup, nil
}
