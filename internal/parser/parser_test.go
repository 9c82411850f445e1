package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFunctions(t *testing.T) {
	code := `
def hello(name: str) -> str:
    """Greet someone by name."""
    return f"Hello, {name}!"

class User:
    def __init__(self, name):
        self.name = name

    async def fetch(self):
        def inner():
            pass
        return inner
`
	tree, err := Parse([]byte(code))
	require.NoError(t, err)
	defer tree.Close()

	defs := tree.Functions()
	require.Len(t, defs, 4)

	var names []string
	for _, def := range defs {
		names = append(names, tree.FunctionName(def))
	}
	assert.Equal(t, []string{"hello", "__init__", "fetch", "inner"}, names)

	assert.False(t, IsAsync(defs[0]))
	assert.True(t, IsAsync(defs[2]))
}

func TestParseInvalidSource(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"broken def", "def broken function() invalid syntax"},
		{"unclosed paren", "def f(x:\n    return x\n"},
		{"missing colon", "def f(x)\n    return x\n"},
		{"dangling operator", "a = 1 +\n"},
		{"python 2 print", "print \"hello\"\n"},
		{"python 2 exec", "exec \"x = 1\"\n"},
		{"bare walrus statement", "x := 5\n"},
		{"delete call", "def f():\n    del g()\n"},
		{"delete call in tuple", "del a, g()\n"},
		{"parameter after default", "def f(x=1, y):\n    pass\n"},
		{"typed parameter after default", "def f(x=1, y: int):\n    pass\n"},
		{"lambda parameter after default", "g = lambda x=1, y: y\n"},
		{"unpacking after keyword unpacking", "f(**a, *b)\n"},
		{"positional after keyword", "f(a=1, b)\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := Parse([]byte(tc.code))
			require.Error(t, err)
			assert.Nil(t, tree)

			var invalid *InvalidSourceError
			require.True(t, errors.As(err, &invalid))
			assert.GreaterOrEqual(t, invalid.Line, 1)
			assert.Contains(t, err.Error(), "invalid python source")
		})
	}
}

func TestParseAcceptsValidEdgeCases(t *testing.T) {
	valid := []string{
		"print(\"hello\")\n",
		"exec(\"x = 1\")\n",
		"if (x := 5):\n    pass\n",
		"del a, b[0], c.d\n",
		"def f(x, y=1, *, z):\n    pass\n",
		"def f(x=1, *args, y, **kwargs):\n    pass\n",
		"def f(x: int = 1, *args: str, y: int):\n    pass\n",
		"def f(a, /, b=2, *, c):\n    pass\n",
		"f(a, *b, c=1, *d, **e)\n",
		"f(x for x in range(3))\n",
	}

	for _, code := range valid {
		t.Run(code, func(t *testing.T) {
			tree, err := Parse([]byte(code))
			require.NoError(t, err)
			tree.Close()
		})
	}
}

func TestParseInvalidConstructPosition(t *testing.T) {
	_, err := Parse([]byte("def f():\n    pass\n\nf(**kw, *rest)\n"))

	var invalid *InvalidSourceError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 4, invalid.Line)
	assert.Equal(t, 9, invalid.Column)
	assert.Equal(t, "f(**kw, *rest)", invalid.Snippet)
}

func TestParseEmptySource(t *testing.T) {
	tree, err := Parse([]byte(""))
	require.NoError(t, err)
	defer tree.Close()

	assert.Empty(t, tree.Functions())
	assert.Equal(t, 1, tree.LineCount())
}

func TestLines(t *testing.T) {
	tree, err := Parse([]byte("a = 1\nb = 2\nc = 3"))
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, "a = 1", tree.Line(1))
	assert.Equal(t, "c = 3", tree.Line(3))
	assert.Equal(t, "", tree.Line(0))
	assert.Equal(t, "", tree.Line(4))
	assert.Equal(t, "b = 2\nc = 3", tree.Lines(2, 3))
	assert.Equal(t, "a = 1\nb = 2\nc = 3", tree.Lines(0, 10))
	assert.Equal(t, "", tree.Lines(3, 2))
}

func TestParameterNames(t *testing.T) {
	tests := []struct {
		code     string
		expected []string
	}{
		{"def f(): pass", []string{}},
		{"def f(a, b): pass", []string{"a", "b"}},
		{"def f(a, b=10, *args, **kwargs): pass", []string{"a", "b", "args", "kwargs"}},
		{"def f(x: int, y: str = 'a'): pass", []string{"x", "y"}},
		{"def f(a, /, b, *, c): pass", []string{"a", "b", "c"}},
		{"def f(*args: int, **kw: str): pass", []string{"args", "kw"}},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			tree, err := Parse([]byte(tc.code))
			require.NoError(t, err)
			defer tree.Close()

			defs := tree.Functions()
			require.Len(t, defs, 1)
			assert.Equal(t, tc.expected, tree.ParameterNames(defs[0]))
		})
	}
}

func TestDocstring(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected string
		present  bool
	}{
		{
			name:     "single line",
			code:     "def f():\n    \"\"\"Calculate overtime pay\"\"\"\n    return 0\n",
			expected: "Calculate overtime pay",
			present:  true,
		},
		{
			name:     "multi line",
			code:     "def f():\n    \"\"\"\n    This is a multi-line docstring.\n    It explains what the function does.\n    \"\"\"\n    return 1\n",
			expected: "This is a multi-line docstring.\nIt explains what the function does.",
			present:  true,
		},
		{
			name:     "single quotes",
			code:     "def f():\n    'short'\n",
			expected: "short",
			present:  true,
		},
		{
			name:     "raw string",
			code:     "def f():\n    r'''raw \\d'''\n",
			expected: `raw \d`,
			present:  true,
		},
		{
			name:    "no docstring",
			code:    "def f():\n    return 1\n",
			present: false,
		},
		{
			name:    "string is not first",
			code:    "def f():\n    x = 1\n    \"\"\"late\"\"\"\n",
			present: false,
		},
		{
			name:    "f-string",
			code:    "def f():\n    f\"\"\"{x}\"\"\"\n",
			present: false,
		},
		{
			name:    "bytes",
			code:    "def f():\n    b'raw'\n",
			present: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := Parse([]byte(tc.code))
			require.NoError(t, err)
			defer tree.Close()

			defs := tree.Functions()
			require.Len(t, defs, 1)

			doc, stmt := tree.Docstring(defs[0])
			if !tc.present {
				assert.Nil(t, stmt)
				assert.Empty(t, doc)
				return
			}
			require.NotNil(t, stmt)
			assert.Equal(t, tc.expected, doc)
		})
	}
}

func TestImportLines(t *testing.T) {
	code := `
from __future__ import annotations
import os, sys
import numpy as np
from pathlib import Path
from . import sibling
from ..pkg.mod import (a, b as c)
from typing import *

def f():
    import json
`
	tree, err := Parse([]byte(code))
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, []string{
		"from __future__ import annotations",
		"import os",
		"import sys",
		"import numpy",
		"from pathlib import Path",
		"from . import sibling",
		"from ..pkg.mod import a, b",
		"from typing import *",
		"import json",
	}, tree.ImportLines())
}

func TestCleanDocstring(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Simple", "Simple"},
		{"  padded  ", "padded  "},
		{"\n    Indented.\n      Deeper.\n    ", "Indented.\n  Deeper."},
		{"First\n    second\n    third", "First\nsecond\nthird"},
		{"\n\n", ""},
		{"\tTabbed\n\tbody", "Tabbed\nbody"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, cleanDocstring(tc.input), "input %q", tc.input)
	}
}
