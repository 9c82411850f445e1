package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandDependencyChain(t *testing.T) {
	a := mustAnalyze(t, dependencyChain)

	tests := []struct {
		depth    int
		expected []string
	}{
		{0, []string{"main"}},
		{1, []string{"main", "process"}},
		{2, []string{"helper", "main", "process"}},
		{5, []string{"helper", "main", "process"}},
		{-1, []string{"main"}},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, a.Expand([]string{"main"}, tc.depth).Sorted(), "depth %d", tc.depth)
	}
}

func TestExpandZeroDepthReturnsSeeds(t *testing.T) {
	g := CallGraph{"a": NewNameSet("b")}
	seeds := []string{"a", "not-in-graph"}

	assert.Equal(t, NewNameSet(seeds...), Expand(g, seeds, 0))
}

func TestExpandMonotonic(t *testing.T) {
	g := CallGraph{
		"a": NewNameSet("b", "c"),
		"b": NewNameSet("d"),
		"c": NewNameSet("a"),
		"d": NewNameSet("e", "print"),
		"e": NewNameSet("e"),
	}

	prev := Expand(g, []string{"a"}, 0)
	for depth := 1; depth <= 6; depth++ {
		cur := Expand(g, []string{"a"}, depth)
		for name := range prev {
			assert.True(t, cur.Has(name), "depth %d lost %s", depth, name)
		}
		assert.GreaterOrEqual(t, len(cur), len(prev))
		prev = cur
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "print"}, prev.Sorted())
}

func TestExpandBoundedRounds(t *testing.T) {
	g := CallGraph{
		"a": NewNameSet("b"),
		"b": NewNameSet("c"),
		"c": NewNameSet("d"),
	}
	assert.Equal(t, []string{"a", "b", "c"}, Expand(g, []string{"a"}, 2).Sorted())
}

func TestExtractWithDependencies(t *testing.T) {
	a := mustAnalyze(t, dependencyChain)

	depth1 := a.ExtractWithDependencies([]string{"main"}, 1)
	assert.Equal(t, 2, depth1.Len())
	_, ok := depth1.Get("process")
	assert.True(t, ok)

	depth2 := a.ExtractWithDependencies([]string{"main"}, 2)
	assert.Equal(t, 3, depth2.Len())
	assert.Equal(t, "helper", depth2.Oldest().Key)
}

func TestExtractWithDependenciesDropsUndefined(t *testing.T) {
	a := mustAnalyze(t, "def run(items):\n    return sorted(items)\n")

	functions := a.ExtractWithDependencies([]string{"run"}, 3)
	assert.Equal(t, 1, functions.Len())
	assert.True(t, a.Expand([]string{"run"}, 1).Has("sorted"))
}
