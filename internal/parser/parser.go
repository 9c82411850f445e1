// Package parser provides tree-sitter based parsing of Python source code.
package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// InvalidSourceError reports source text that does not parse as Python.
type InvalidSourceError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Snippet string `json:"snippet"`
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid python source: syntax error at line %d, column %d: %q",
		e.Line, e.Column, e.Snippet)
}

// Tree is a parsed Python file together with a 1-based line view of its text.
type Tree struct {
	source []byte
	lines  []string
	tree   *sitter.Tree
}

// Parse builds a syntax tree for source. A tree containing any ERROR or
// MISSING node, or a construct Python 3 refuses to compile (Python 2 print
// and exec statements, a bare walrus statement, del f(), a non-default
// parameter after a default one, misordered call arguments), is rejected
// with *InvalidSourceError and nothing is returned.
func Parse(source []byte) (*Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	t := &Tree{
		source: source,
		lines:  strings.Split(string(source), "\n"),
		tree:   tree,
	}

	root := tree.RootNode()
	if root.HasError() {
		invalid := t.syntaxError(firstErrorNode(root))
		tree.Close()
		return nil, invalid
	}
	if bad := firstInvalidNode(root); bad != nil {
		invalid := t.syntaxError(bad)
		tree.Close()
		return nil, invalid
	}

	return t, nil
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	t.tree.Close()
}

// Root returns the module node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the raw source bytes.
func (t *Tree) Source() []byte {
	return t.source
}

// LineCount returns the number of lines in the source.
func (t *Tree) LineCount() int {
	return len(t.lines)
}

// Line returns line n (1-based), or "" when n is out of range.
func (t *Tree) Line(n int) string {
	if n < 1 || n > len(t.lines) {
		return ""
	}
	return t.lines[n-1]
}

// Lines returns lines start..end inclusive (1-based) joined by newlines.
func (t *Tree) Lines(start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(t.lines) {
		end = len(t.lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(t.lines[start-1:end], "\n")
}

// Text returns the source text covered by node.
func (t *Tree) Text(node *sitter.Node) string {
	return nodeContent(node, t.source)
}

// Walk visits every node in pre-order. Children of a node are skipped when
// fn returns false for it.
func (t *Tree) Walk(fn func(node *sitter.Node) bool) {
	Walk(t.Root(), fn)
}

// Functions returns every function definition (def and async def, nested
// functions and methods included) in declaration order.
func (t *Tree) Functions() []*sitter.Node {
	var defs []*sitter.Node
	t.Walk(func(node *sitter.Node) bool {
		if node.Type() == "function_definition" {
			defs = append(defs, node)
		}
		return true
	})
	return defs
}

// Walk visits node and its descendants in pre-order, skipping the children
// of any node for which fn returns false.
func Walk(node *sitter.Node, fn func(node *sitter.Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		Walk(node.Child(i), fn)
	}
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "ERROR" || child.IsMissing() || child.HasError() {
			return firstErrorNode(child)
		}
	}
	return node
}

func (t *Tree) syntaxError(node *sitter.Node) *InvalidSourceError {
	line := int(node.StartPoint().Row) + 1
	return &InvalidSourceError{
		Line:    line,
		Column:  int(node.StartPoint().Column) + 1,
		Snippet: strings.TrimSpace(t.Line(line)),
	}
}
