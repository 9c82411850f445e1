// Package indexer provides the file walker and indexing pipeline.
package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIncludes selects Python sources when a repo config names none.
var DefaultIncludes = []string{"**/*.py"}

// DefaultExcludes are applied on top of every repo config: VCS metadata,
// virtualenvs, tool caches and build output.
var DefaultExcludes = []string{
	"**/.git/**",
	"**/__pycache__/**",
	"**/*.pyc",
	"**/venv/**",
	"**/.venv/**",
	"**/.tox/**",
	"**/.nox/**",
	"**/.mypy_cache/**",
	"**/.pytest_cache/**",
	"**/.ruff_cache/**",
	"**/site-packages/**",
	"**/node_modules/**",
	"**/dist/**",
	"**/build/**",
	"**/*.egg-info/**",
}

// MaxFileSize is the largest file the walker reports. Bigger Python files
// are almost always generated.
const MaxFileSize = 1 << 20

// Walker selects repository files by doublestar include/exclude globs
// matched against slash-separated paths relative to the walked root.
type Walker struct {
	includes []string
	excludes []string
	maxSize  int64
}

// NewWalker creates a walker. Empty includes fall back to DefaultIncludes;
// excludes are added to DefaultExcludes.
func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	all := make([]string, 0, len(DefaultExcludes)+len(excludes))
	all = append(all, DefaultExcludes...)
	all = append(all, excludes...)

	return &Walker{
		includes: includes,
		excludes: all,
		maxSize:  MaxFileSize,
	}
}

// Validate reports every malformed pattern.
func (w *Walker) Validate() error {
	var errs []error
	for _, p := range append(append([]string{}, w.includes...), w.excludes...) {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("invalid glob pattern %q", p))
		}
	}
	return errors.Join(errs...)
}

// Match reports whether relPath (slash-separated) is selected.
func (w *Walker) Match(relPath string) bool {
	return !matchAny(w.excludes, relPath) && matchAny(w.includes, relPath)
}

// Files returns the absolute or root-joined paths of every selected file,
// in lexical walk order.
func (w *Walker) Files(root string) ([]string, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.excludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !w.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > w.maxSize {
			return nil
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// excludedDir prunes a directory when an exclude matches it or anything
// beneath it ("**/.git/**" matches ".git/").
func (w *Walker) excludedDir(rel string) bool {
	return matchAny(w.excludes, rel) || matchAny(w.excludes, rel+"/")
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
