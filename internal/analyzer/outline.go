package analyzer

import (
	"fmt"
	"strings"
)

// MaxOutlineImports caps the import lines listed in an outline.
const MaxOutlineImports = 10

// Outline renders the file's imports followed by one stub line per function
// in declaration order. Bodies are omitted.
func (a *Analyzer) Outline() string {
	var parts []string

	if len(a.imports) > 0 {
		parts = append(parts, "# Imports")
		shown := min(len(a.imports), MaxOutlineImports)
		parts = append(parts, a.imports[:shown]...)
		if extra := len(a.imports) - shown; extra > 0 {
			parts = append(parts, fmt.Sprintf("# ... and %d more imports", extra))
		}
		parts = append(parts, "")
	}

	parts = append(parts, "# Functions")
	for _, fn := range a.functions {
		parts = append(parts, fn.Stub())
	}

	return strings.Join(parts, "\n")
}
