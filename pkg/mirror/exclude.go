package mirror

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sdejongh/dirmirror/pkg/models"
)

// Excluder decides which keys are left out of both snapshots.
// Patterns support:
//   - Simple glob patterns matched on the base name: *.tmp, *.log
//   - Directory patterns excluding a whole subtree: .git/, node_modules/
//   - Path patterns matched on the full key: build/*, **/test/*.out
type Excluder struct {
	dirPatterns  []string
	pathPatterns []string
	namePatterns []string
}

// NewExcluder compiles patterns. An invalid pattern is a ConfigError.
func NewExcluder(patterns []string) (*Excluder, error) {
	e := &Excluder{}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}

		normalized := filepath.ToSlash(pattern)
		if !doublestar.ValidatePattern(normalized) {
			return nil, &models.ConfigError{
				Field:   "exclude",
				Message: fmt.Sprintf("invalid pattern %q", pattern),
			}
		}

		switch {
		case strings.HasSuffix(normalized, "/"):
			e.dirPatterns = append(e.dirPatterns, strings.TrimSuffix(normalized, "/"))
		case strings.Contains(normalized, "/"):
			e.pathPatterns = append(e.pathPatterns, strings.TrimPrefix(normalized, "/"))
		default:
			e.namePatterns = append(e.namePatterns, normalized)
		}
	}
	return e, nil
}

// Empty reports whether no pattern is configured
func (e *Excluder) Empty() bool {
	return e == nil || len(e.dirPatterns)+len(e.pathPatterns)+len(e.namePatterns) == 0
}

// Match reports whether a file key is excluded
func (e *Excluder) Match(key string) bool {
	if e.Empty() {
		return false
	}

	for _, p := range e.namePatterns {
		if ok, _ := doublestar.Match(p, path.Base(key)); ok {
			return true
		}
	}
	for _, p := range e.pathPatterns {
		if ok, _ := doublestar.Match(p, key); ok {
			return true
		}
	}
	return e.inExcludedDir(key)
}

// MatchDir reports whether a directory key is excluded
func (e *Excluder) MatchDir(key string) bool {
	if e.Empty() {
		return false
	}
	return e.inExcludedDir(key + "/")
}

// inExcludedDir checks every ancestor directory of key against the
// directory patterns, at any depth
func (e *Excluder) inExcludedDir(key string) bool {
	dir := path.Dir(key)
	for dir != "." && dir != "/" && dir != "" {
		for _, p := range e.dirPatterns {
			if ok, _ := doublestar.Match(p, dir); ok {
				return true
			}
			if ok, _ := doublestar.Match(p, path.Base(dir)); ok && !strings.Contains(p, "/") {
				return true
			}
		}
		dir = path.Dir(dir)
	}
	return false
}
