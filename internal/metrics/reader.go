package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"time"
)

const topQueryCount = 10

// Reader summarizes a metrics log.
type Reader struct {
	path string
}

// NewReader creates a reader for the log at path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Summary aggregates the events of one period.
type Summary struct {
	Period          string         `json:"period"`
	ToolCalls       map[string]int `json:"tool_calls"`
	FailedToolCalls int            `json:"failed_tool_calls"`
	AvgToolMs       int64          `json:"avg_tool_latency_ms"`
	Searches        int            `json:"searches"`
	ZeroResultCount int            `json:"zero_result_count"`
	CacheHits       int            `json:"cache_hits"`
	IndexRuns       int            `json:"index_runs"`
	ChunksIndexed   int            `json:"chunks_indexed"`
	Errors          int            `json:"errors"`
	TopQueries      []QueryCount   `json:"top_queries"`
}

// QueryCount is how often one query was searched.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Events returns the events newer than since, in file order. Malformed lines
// are skipped.
func (r *Reader) Events(since time.Duration) ([]Event, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cutoff := time.Now().Add(-since)
	var events []Event

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil || e.Time.IsZero() {
			continue
		}
		if e.Time.Before(cutoff) {
			continue
		}
		events = append(events, e)
	}
	return events, sc.Err()
}

// Summarize aggregates the events newer than since.
func (r *Reader) Summarize(since time.Duration) (*Summary, error) {
	events, err := r.Events(since)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Period:    since.String(),
		ToolCalls: make(map[string]int),
	}
	queries := make(map[string]int)
	var toolLatency int64

	for _, e := range events {
		switch e.Kind {
		case EventToolCall:
			s.ToolCalls[e.Tool]++
			if e.Failed != nil && *e.Failed {
				s.FailedToolCalls++
			}
			toolLatency += e.LatencyMs
		case EventSearch:
			s.Searches++
			if e.Results != nil && *e.Results == 0 {
				s.ZeroResultCount++
			}
			if e.CacheHit != nil && *e.CacheHit {
				s.CacheHits++
			}
			if e.Query != "" {
				queries[e.Query]++
			}
		case EventIndexRun:
			s.IndexRuns++
			s.ChunksIndexed += e.Chunks
		case EventError:
			s.Errors++
		}
	}

	if calls := s.TotalToolCalls(); calls > 0 {
		s.AvgToolMs = toolLatency / int64(calls)
	}
	s.TopQueries = topQueries(queries, topQueryCount)
	return s, nil
}

// TotalToolCalls sums the per-tool call counts.
func (s *Summary) TotalToolCalls() int {
	n := 0
	for _, c := range s.ToolCalls {
		n += c
	}
	return n
}

func topQueries(counts map[string]int, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
