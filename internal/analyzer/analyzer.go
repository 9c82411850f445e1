// Package analyzer extracts function records, a name-based call graph and a
// signature outline from Python source.
package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/randalmurphy/code-analyzer/internal/parser"
)

// FunctionInfo describes one function definition.
type FunctionInfo struct {
	Name      string   `json:"name"`
	Code      string   `json:"code"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Args      []string `json:"args"`
	Docstring string   `json:"docstring,omitempty"`
	Async     bool     `json:"async,omitempty"`

	// PreambleEnd is the last line of the signature and docstring.
	PreambleEnd int `json:"-"`
}

// Stub renders the function as a body-less signature, e.g. "def f(a, b): ...".
func (f FunctionInfo) Stub() string {
	prefix := "def "
	if f.Async {
		prefix = "async def "
	}
	return prefix + f.Name + "(" + strings.Join(f.Args, ", ") + "): ..."
}

// Functions is a name-keyed mapping of function records that iterates in
// insertion order.
type Functions = orderedmap.OrderedMap[string, FunctionInfo]

// NewFunctions returns an empty Functions mapping.
func NewFunctions() *Functions {
	return orderedmap.New[string, FunctionInfo]()
}

// Analyzer holds the indices built from one parsed source file. It is
// immutable after New and safe for concurrent reads.
type Analyzer struct {
	functions []FunctionInfo
	graph     CallGraph
	imports   []string
}

// New parses source and indexes its functions, calls and imports in one
// pass over the tree. It returns *parser.InvalidSourceError when the source
// does not parse.
func New(source []byte) (*Analyzer, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	a := &Analyzer{
		graph:   CallGraph{},
		imports: tree.ImportLines(),
	}

	for _, def := range tree.Functions() {
		info := newFunctionInfo(tree, def)
		a.functions = append(a.functions, info)
		// Later definitions with the same name replace earlier ones.
		a.graph[info.Name] = collectCalls(tree, def)
	}

	return a, nil
}

// Functions returns every function record in declaration order.
func (a *Analyzer) Functions() []FunctionInfo {
	out := make([]FunctionInfo, len(a.functions))
	copy(out, a.functions)
	return out
}

// Imports returns the rendered import statements in declaration order.
func (a *Analyzer) Imports() []string {
	return append([]string(nil), a.imports...)
}

// Extract returns the records of every function whose name is in names.
// When several definitions share a name the last one in declaration order
// wins. Unknown names are ignored.
func (a *Analyzer) Extract(names []string) *Functions {
	wanted := NewNameSet(names...)
	extracted := NewFunctions()

	for _, fn := range a.functions {
		if wanted.Has(fn.Name) {
			extracted.Set(fn.Name, fn)
		}
	}

	return extracted
}

func newFunctionInfo(tree *parser.Tree, def *sitter.Node) FunctionInfo {
	startLine := int(def.StartPoint().Row) + 1
	endLine := int(def.EndPoint().Row) + 1

	docstring, docNode := tree.Docstring(def)

	preambleEnd := startLine
	if docNode != nil {
		preambleEnd = int(docNode.EndPoint().Row) + 1
	} else if body := def.ChildByFieldName("body"); body != nil {
		// Signatures spanning several lines end on the line before the body.
		if row := int(body.StartPoint().Row); row > preambleEnd {
			preambleEnd = row
		}
	}

	return FunctionInfo{
		Name:        tree.FunctionName(def),
		Code:        tree.Lines(startLine, endLine),
		StartLine:   startLine,
		EndLine:     endLine,
		Args:        tree.ParameterNames(def),
		Docstring:   docstring,
		Async:       parser.IsAsync(def),
		PreambleEnd: preambleEnd,
	}
}
