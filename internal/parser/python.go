package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// FunctionName returns the declared name of a function_definition node.
func (t *Tree) FunctionName(def *sitter.Node) string {
	if name := def.ChildByFieldName("name"); name != nil {
		return t.Text(name)
	}
	if name := findChild(def, "identifier"); name != nil {
		return t.Text(name)
	}
	return ""
}

// IsAsync reports whether def was declared with async def.
func IsAsync(def *sitter.Node) bool {
	return findChild(def, "async") != nil
}

// ParameterNames returns every declared parameter identifier of def in
// declaration order: plain, typed, defaulted, *args and **kwargs alike.
// The bare * and / separators are not parameters.
func (t *Tree) ParameterNames(def *sitter.Node) []string {
	params := def.ChildByFieldName("parameters")
	if params == nil {
		params = findChild(def, "parameters")
	}
	if params == nil {
		return nil
	}

	names := []string{}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		var name string

		switch param.Type() {
		case "identifier":
			name = t.Text(param)
		case "typed_parameter":
			if param.NamedChildCount() > 0 {
				name = t.patternName(param.NamedChild(0))
			}
		case "default_parameter", "typed_default_parameter":
			name = t.patternName(param.ChildByFieldName("name"))
		case "list_splat_pattern", "dictionary_splat_pattern":
			name = t.patternName(param)
		}

		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (t *Tree) patternName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier":
		return t.Text(node)
	case "list_splat_pattern", "dictionary_splat_pattern":
		if id := findChild(node, "identifier"); id != nil {
			return t.Text(id)
		}
	}
	return ""
}

// Docstring returns the cleaned docstring of def and the statement node that
// holds it. The node is nil when the first body statement is not a plain
// string literal.
func (t *Tree) Docstring(def *sitter.Node) (string, *sitter.Node) {
	body := def.ChildByFieldName("body")
	if body == nil {
		body = findChild(def, "block")
	}
	if body == nil {
		return "", nil
	}

	var first *sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if child := body.NamedChild(i); child.Type() != "comment" {
			first = child
			break
		}
	}
	if first == nil || first.Type() != "expression_statement" || first.NamedChildCount() != 1 {
		return "", nil
	}

	expr := first.NamedChild(0)
	var raw strings.Builder
	switch expr.Type() {
	case "string":
		value, ok := stringValue(t.Text(expr))
		if !ok {
			return "", nil
		}
		raw.WriteString(value)
	case "concatenated_string":
		for i := 0; i < int(expr.NamedChildCount()); i++ {
			part := expr.NamedChild(i)
			if part.Type() != "string" {
				continue
			}
			value, ok := stringValue(t.Text(part))
			if !ok {
				return "", nil
			}
			raw.WriteString(value)
		}
	default:
		return "", nil
	}

	return cleanDocstring(raw.String()), first
}

// ImportLines renders every import statement in the file, in declaration
// order, one entry per imported module for plain imports.
func (t *Tree) ImportLines() []string {
	var imports []string
	t.Walk(func(node *sitter.Node) bool {
		switch node.Type() {
		case "import_statement":
			for _, name := range t.importedNames(node) {
				imports = append(imports, "import "+name)
			}
			return false
		case "import_from_statement", "future_import_statement":
			module := "__future__"
			if m := node.ChildByFieldName("module_name"); m != nil {
				module = t.Text(m)
			}
			names := t.importedNames(node)
			imports = append(imports, "from "+module+" import "+strings.Join(names, ", "))
			return false
		}
		return true
	})
	return imports
}

// importedNames returns the names listed after the import keyword; aliases
// are reported by their original name.
func (t *Tree) importedNames(stmt *sitter.Node) []string {
	var names []string
	afterImport := false
	for i := 0; i < int(stmt.ChildCount()); i++ {
		child := stmt.Child(i)
		if child.Type() == "import" {
			afterImport = true
			continue
		}
		if !afterImport {
			continue
		}
		switch child.Type() {
		case "dotted_name", "identifier":
			names = append(names, t.Text(child))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				names = append(names, t.Text(name))
			}
		case "wildcard_import":
			names = append(names, "*")
		}
	}
	return names
}

// stringValue strips the prefix and quotes of a Python string literal.
// Bytes and f-strings are not plain strings and report false.
func stringValue(literal string) (string, bool) {
	i := 0
	for i < len(literal) && strings.IndexByte("rRuUbBfF", literal[i]) >= 0 {
		i++
	}
	if strings.ContainsAny(literal[:i], "bBfF") {
		return "", false
	}

	body := literal[i:]
	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(quote) && strings.HasPrefix(body, quote) && strings.HasSuffix(body, quote) {
			return body[len(quote) : len(body)-len(quote)], true
		}
	}
	return "", false
}

func findChild(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

func nodeContent(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CallTarget returns the callee name of a call node: the identifier for
// bare calls and only the member name for receiver.method(...) calls.
// Any other callee expression yields "".
func (t *Tree) CallTarget(call *sitter.Node) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return t.Text(fn)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			return t.Text(attr)
		}
	}
	return ""
}
