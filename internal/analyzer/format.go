package analyzer

import (
	"fmt"
	"strings"
)

// NoFunctions is the report produced for an empty mapping.
const NoFunctions = "No functions extracted."

// Format renders functions as a markdown report, one section per function in
// the mapping's insertion order.
func Format(functions *Functions) string {
	if functions == nil || functions.Len() == 0 {
		return NoFunctions
	}

	var parts []string
	for pair := functions.Oldest(); pair != nil; pair = pair.Next() {
		fn := pair.Value

		parts = append(parts, fmt.Sprintf("### Function: `%s` (Lines %d-%d)", fn.Name, fn.StartLine, fn.EndLine))

		args := "None"
		if len(fn.Args) > 0 {
			args = strings.Join(fn.Args, ", ")
		}
		parts = append(parts, "**Arguments:** "+args)

		if fn.Docstring != "" {
			parts = append(parts, "**Docstring:** "+fn.Docstring)
		}

		parts = append(parts, "\n```python", fn.Code, "```\n")
	}

	return strings.Join(parts, "\n")
}
