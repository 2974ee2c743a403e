package scanner

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/gobwas/glob"
)

// Matcher decides whether a discovered file is recorded.
type Matcher interface {
	Match(path string) bool
}

// MatchFunc adapts a function to Matcher.
type MatchFunc func(path string) bool

func (f MatchFunc) Match(path string) bool { return f(path) }

type regexMatcher struct{ re *regexp.Regexp }

func (m regexMatcher) Match(path string) bool { return m.re.MatchString(path) }

func (m regexMatcher) String() string { return m.re.String() }

// NewRegexMatcher compiles expr so that it must match the whole path, not a
// substring of it.
func NewRegexMatcher(expr string) (Matcher, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
	}
	return regexMatcher{re: re}, nil
}

type globMatcher struct {
	g       glob.Glob
	pattern string
}

func (m globMatcher) Match(path string) bool { return m.g.Match(path) }

func (m globMatcher) String() string { return m.pattern }

// NewGlobMatcher compiles a shell glob matched against the full path. "*"
// stops at path separators; "**" crosses them.
func NewGlobMatcher(pattern string) (Matcher, error) {
	g, err := glob.Compile(pattern, filepath.Separator)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return globMatcher{g: g, pattern: pattern}, nil
}

// NewMatcher builds the matcher for a regex and/or glob. Both empty means no
// filter. When both are set a path must satisfy both.
func NewMatcher(regex, globPattern string) (Matcher, error) {
	var ms []Matcher
	if regex != "" {
		m, err := NewRegexMatcher(regex)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	if globPattern != "" {
		m, err := NewGlobMatcher(globPattern)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	switch len(ms) {
	case 0:
		return nil, nil
	case 1:
		return ms[0], nil
	default:
		return MatchFunc(func(path string) bool {
			for _, m := range ms {
				if !m.Match(path) {
					return false
				}
			}
			return true
		}), nil
	}
}
