package parser

import sitter "github.com/smacker/go-tree-sitter"

// firstInvalidNode finds a construct the tree-sitter grammar accepts but the
// Python 3 compiler rejects. It returns nil for valid trees.
func firstInvalidNode(root *sitter.Node) *sitter.Node {
	var bad *sitter.Node
	Walk(root, func(node *sitter.Node) bool {
		if bad != nil {
			return false
		}
		switch node.Type() {
		case "print_statement", "exec_statement":
			// Python 2 statements.
			bad = node
		case "expression_statement":
			// x := 5 needs parentheses at statement level.
			bad = firstNamedOfType(node, "named_expression")
		case "delete_statement":
			bad = callDeleteTarget(node)
		case "parameters", "lambda_parameters":
			bad = nonDefaultAfterDefault(node)
		case "argument_list":
			bad = misorderedArgument(node)
		}
		return bad == nil
	})
	return bad
}

func firstNamedOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

// callDeleteTarget catches del f() and del a, f().
func callDeleteTarget(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		target := node.NamedChild(i)
		switch target.Type() {
		case "call":
			return target
		case "expression_list":
			if call := firstNamedOfType(target, "call"); call != nil {
				return call
			}
		}
	}
	return nil
}

// nonDefaultAfterDefault catches def f(x=1, y). Parameters after a bare *
// or *args are keyword-only and may omit defaults.
func nonDefaultAfterDefault(params *sitter.Node) *sitter.Node {
	seenDefault := false
	for i := 0; i < int(params.ChildCount()); i++ {
		p := params.Child(i)
		switch p.Type() {
		case "default_parameter", "typed_default_parameter":
			seenDefault = true
		case "identifier":
			if seenDefault {
				return p
			}
		case "typed_parameter":
			first := p.NamedChild(0)
			if first == nil || first.Type() != "identifier" {
				// *args: T or **kwargs: T
				return nil
			}
			if seenDefault {
				return p
			}
		case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator", "*":
			return nil
		}
	}
	return nil
}

// misorderedArgument catches f(**a, *b), f(**a, b) and f(a=1, b).
func misorderedArgument(args *sitter.Node) *sitter.Node {
	seenKeyword, seenDictSplat := false, false
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "comment":
		case "keyword_argument":
			seenKeyword = true
		case "dictionary_splat":
			seenDictSplat = true
		case "list_splat":
			if seenDictSplat {
				return arg
			}
		default:
			if seenKeyword || seenDictSplat {
				return arg
			}
		}
	}
	return nil
}
