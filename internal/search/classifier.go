package search

import (
	"regexp"
	"strings"
)

// Mode is the retrieval strategy chosen for a query.
type Mode string

const (
	// ModeName looks a function up by exact name, falling back to ModeSemantic.
	ModeName Mode = "name"
	// ModeSemantic ranks chunks by vector similarity.
	ModeSemantic Mode = "semantic"
)

var (
	quotedTermRe = regexp.MustCompile("^[\"`'](.+)[\"`']$")
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*(\(\))?$`)
)

// Classify picks the mode for query and, for ModeName, the function name to
// look up. Quoted terms and lone identifiers such as `parse_config`,
// `Service.run` or `main()` are names; anything else is semantic.
func Classify(query string) (Mode, string) {
	q := strings.TrimSpace(query)
	if m := quotedTermRe.FindStringSubmatch(q); m != nil {
		q = strings.TrimSpace(m[1])
	} else if !strings.ContainsAny(q, "_.()") && !hasInnerUpper(q) {
		// A single plain word like "retry" reads better as a concept.
		return ModeSemantic, ""
	}

	if !identifierRe.MatchString(q) {
		return ModeSemantic, ""
	}

	q = strings.TrimSuffix(q, "()")
	if i := strings.LastIndex(q, "."); i >= 0 {
		q = q[i+1:]
	}
	return ModeName, q
}

func hasInnerUpper(s string) bool {
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}
