// Package metrics records usage events as JSON lines and summarizes them.
package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kinds.
const (
	EventToolCall = "tool_call"
	EventSearch   = "search"
	EventIndexRun = "index_run"
	EventError    = "error"
)

// Event is one line of the metrics log. Only the fields meaningful for Kind
// are written.
type Event struct {
	Time      time.Time `json:"ts"`
	Kind      string    `json:"event"`
	Tool      string    `json:"tool,omitempty"`
	Query     string    `json:"query,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Repo      string    `json:"repo,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Message   string    `json:"message,omitempty"`
	Files     int       `json:"files,omitempty"`
	Chunks    int       `json:"chunks,omitempty"`
	Failures  int       `json:"failures,omitempty"`
	Results   *int      `json:"results,omitempty"`
	Failed    *bool     `json:"failed,omitempty"`
	CacheHit  *bool     `json:"cache_hit,omitempty"`
	LatencyMs int64     `json:"latency_ms,omitempty"`
}

// Logger appends events to a JSONL file. A nil *Logger discards events, so
// callers never need to check whether metrics are enabled.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	now func() time.Time
}

// DefaultPath returns ~/.local/share/code-analyzer/metrics.jsonl.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "code-analyzer", "metrics.jsonl")
}

// NewLogger opens path for appending, creating parent directories.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Logger{f: f, enc: json.NewEncoder(f), now: time.Now}, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.f.Close()
}

// Write stamps e and appends it. Write errors are dropped: metrics never
// fail the operation being measured.
func (l *Logger) Write(e Event) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}
	_ = l.enc.Encode(e)
}

// LogToolCall records one MCP tool invocation.
func (l *Logger) LogToolCall(tool string, latencyMs int64, failed bool) {
	l.Write(Event{Kind: EventToolCall, Tool: tool, LatencyMs: latencyMs, Failed: &failed})
}

// LogSearch records a search query.
func (l *Logger) LogSearch(query, mode string, results int, latencyMs int64, cacheHit bool) {
	l.Write(Event{
		Kind:      EventSearch,
		Query:     query,
		Mode:      mode,
		Results:   &results,
		LatencyMs: latencyMs,
		CacheHit:  &cacheHit,
	})
}

// LogIndexRun records a completed indexing run.
func (l *Logger) LogIndexRun(repo string, files, chunks, failures int, latencyMs int64) {
	l.Write(Event{
		Kind:      EventIndexRun,
		Repo:      repo,
		Files:     files,
		Chunks:    chunks,
		Failures:  failures,
		LatencyMs: latencyMs,
	})
}

// LogError records a failed operation.
func (l *Logger) LogError(operation, message string) {
	l.Write(Event{Kind: EventError, Operation: operation, Message: message})
}
