package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSummarize(t *testing.T) {
	// Create temp log file with test data
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "metrics.jsonl")

	now := time.Now().UTC()
	recentTS := now.Add(-1 * time.Hour).Format(time.RFC3339)
	oldTS := now.Add(-25 * time.Hour).Format(time.RFC3339)

	logData := `{"ts":"` + recentTS + `","event":"tool_call","tool":"python_outline","latency_ms":10,"failed":false}
{"ts":"` + recentTS + `","event":"tool_call","tool":"python_outline","latency_ms":30,"failed":false}
{"ts":"` + recentTS + `","event":"tool_call","tool":"python_extract","latency_ms":20,"failed":true}
{"ts":"` + recentTS + `","event":"search","query":"parse config","results":5,"cache_hit":false}
{"ts":"` + recentTS + `","event":"search","query":"parse config","results":3,"cache_hit":true}
{"ts":"` + recentTS + `","event":"search","query":"retry","results":0,"cache_hit":false}
{"ts":"` + recentTS + `","event":"index_run","repo":"billing","files":3,"chunks":12,"failures":0}
{"ts":"` + recentTS + `","event":"error","operation":"index","message":"boom"}
not json
{"ts":"` + oldTS + `","event":"tool_call","tool":"python_chunks","latency_ms":200,"failed":false}
`
	require.NoError(t, os.WriteFile(logPath, []byte(logData), 0644))

	summary, err := NewReader(logPath).Summarize(24 * time.Hour)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"python_outline": 2, "python_extract": 1}, summary.ToolCalls)
	assert.Equal(t, 1, summary.FailedToolCalls)
	assert.Equal(t, int64(20), summary.AvgToolMs) // (10+30+20)/3
	assert.Equal(t, 3, summary.Searches)
	assert.Equal(t, 1, summary.ZeroResultCount)
	assert.Equal(t, 1, summary.CacheHits)
	assert.Equal(t, 1, summary.IndexRuns)
	assert.Equal(t, 12, summary.ChunksIndexed)
	assert.Equal(t, 1, summary.Errors)

	require.Len(t, summary.TopQueries, 2)
	assert.Equal(t, QueryCount{Query: "parse config", Count: 2}, summary.TopQueries[0])
}

func TestReaderEmptyFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(logPath, []byte(""), 0644))

	summary, err := NewReader(logPath).Summarize(24 * time.Hour)
	require.NoError(t, err)
	assert.Empty(t, summary.ToolCalls)
	assert.Zero(t, summary.IndexRuns)
}

func TestReaderFileNotFound(t *testing.T) {
	_, err := NewReader("/nonexistent/path/metrics.jsonl").Summarize(24 * time.Hour)
	assert.Error(t, err)
}
