package analyzer

import (
	"encoding/json"
	"errors"
	"io"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/randalmurphy/code-analyzer/internal/parser"
)

// NameSet is a set of function names.
type NameSet map[string]struct{}

// NewNameSet returns a set holding names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add inserts name into the set.
func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s NameSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes the set as a sorted array.
func (s NameSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// CallGraph maps each function name to the names it may call. Edges come
// from syntax alone: bare calls contribute the identifier, member calls only
// the member name. Targets are not resolved against definitions, so they may
// name builtins, external functions or methods of any receiver.
type CallGraph map[string]NameSet

// CallGraph returns the possible-callees relation for every function in the
// file. The returned graph is a copy.
func (a *Analyzer) CallGraph() CallGraph {
	out := make(CallGraph, len(a.graph))
	for name, callees := range a.graph {
		out[name] = NewNameSet(callees.Sorted()...)
	}
	return out
}

// Callees returns the sorted callee names of name.
func (g CallGraph) Callees(name string) []string {
	return g[name].Sorted()
}

// Names returns the sorted names of every function with an entry.
func (g CallGraph) Names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WriteDOT renders the graph in Graphviz DOT format.
func (g CallGraph) WriteDOT(w io.Writer) error {
	dg := graph.New(graph.StringHash, graph.Directed())

	addVertex := func(name string) error {
		if err := dg.AddVertex(name); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return err
		}
		return nil
	}

	for _, name := range g.Names() {
		if err := addVertex(name); err != nil {
			return err
		}
	}

	for _, name := range g.Names() {
		for _, callee := range g.Callees(name) {
			if err := addVertex(callee); err != nil {
				return err
			}
			if err := dg.AddEdge(name, callee); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return err
			}
		}
	}

	return draw.DOT(dg, w)
}

// collectCalls walks the whole subtree of def, nested definitions included.
func collectCalls(tree *parser.Tree, def *sitter.Node) NameSet {
	calls := NameSet{}
	parser.Walk(def, func(node *sitter.Node) bool {
		if node.Type() == "call" {
			if target := tree.CallTarget(node); target != "" {
				calls.Add(target)
			}
		}
		return true
	})
	return calls
}
