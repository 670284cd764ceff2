// Package ignore matches working-tree paths against glob patterns.
package ignore

import (
	"github.com/bmatcuk/doublestar/v4"
)

// defaultPatterns are always ignored regardless of configuration.
var defaultPatterns = []string{
	".trak",
	".trak/**",
	"**/*.tmp",
	"**/*~",
}

// Matcher matches slash-separated relative paths against glob patterns.
type Matcher struct {
	patterns []string
}

// NewMatcher builds a matcher over the default patterns plus extra ones.
func NewMatcher(extra []string) *Matcher {
	patterns := make([]string, 0, len(defaultPatterns)+len(extra))
	patterns = append(patterns, defaultPatterns...)
	patterns = append(patterns, extra...)
	return &Matcher{patterns: patterns}
}

// Match reports whether relPath is ignored.
func (m *Matcher) Match(relPath string) bool {
	for _, p := range m.patterns {
		if ok, err := doublestar.Match(p, relPath); err == nil && ok {
			return true
		}
	}
	return false
}
