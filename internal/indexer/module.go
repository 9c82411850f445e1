package indexer

import (
	"path"
	"path/filepath"
	"strings"
)

// ModulePath converts a repository-relative Python file path to its dotted
// import path: "pkg/sub/mod.py" is "pkg.sub.mod" and a package's
// "__init__.py" names the package itself. A leading "src" directory and a
// duplicated top-level directory (as in "billing/billing/api.py") are
// dropped.
func ModulePath(relPath string) string {
	p := strings.TrimSuffix(filepath.ToSlash(relPath), ".py")
	if path.Base(p) == "__init__" {
		p = path.Dir(p)
	}
	if p == "." || p == "" {
		return ""
	}

	parts := strings.Split(p, "/")
	if len(parts) > 1 && parts[0] == "src" {
		parts = parts[1:]
	}
	if len(parts) >= 2 && parts[0] == parts[1] {
		parts = parts[1:]
	}

	return strings.Join(parts, ".")
}

var testPatterns = []string{
	"/tests/",
	"/test/",
	"conftest.py",
}

// IsTestFile reports whether relPath looks like a pytest or unittest module.
func IsTestFile(relPath string) bool {
	p := "/" + strings.ToLower(filepath.ToSlash(relPath))
	base := path.Base(p)
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py") {
		return true
	}
	for _, pattern := range testPatterns {
		if strings.Contains(p, pattern) {
			return true
		}
	}
	return false
}
