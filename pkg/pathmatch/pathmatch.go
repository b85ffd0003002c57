// Package pathmatch classifies repository paths with regular expressions.
package pathmatch

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// DefaultTestPatterns match the basenames of Python and Go test files.
var DefaultTestPatterns = []string{`^tests?_.*\.py$`, `_tests?\.py$`, `_test\.go$`}

// Matcher is a compiled list of patterns. The zero value matches nothing.
type Matcher struct {
	patterns []*regexp.Regexp
}

// Compile compiles patterns.
func Compile(patterns []string) (Matcher, error) {
	m := Matcher{patterns: make([]*regexp.Regexp, 0, len(patterns))}

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return Matcher{}, fmt.Errorf("compile pattern %q: %w", p, err)
		}

		m.patterns = append(m.patterns, re)
	}

	return m, nil
}

// MustCompile is like Compile but panics on invalid patterns.
func MustCompile(patterns ...string) Matcher {
	m, err := Compile(patterns)
	if err != nil {
		panic(err)
	}

	return m
}

// Empty reports whether m has no patterns.
func (m Matcher) Empty() bool {
	return len(m.patterns) == 0
}

// Match reports whether any pattern matches s.
func (m Matcher) Match(s string) bool {
	for _, re := range m.patterns {
		if re.MatchString(s) {
			return true
		}
	}

	return false
}

// MatchBase reports whether any pattern matches the last element of p.
func (m Matcher) MatchBase(p string) bool {
	return m.Match(path.Base(p))
}

// Strings returns the source patterns.
func (m Matcher) Strings() []string {
	out := make([]string, len(m.patterns))
	for i, re := range m.patterns {
		out[i] = re.String()
	}

	return out
}

// Clean normalizes a slash-separated relative path: "./a//b/" becomes "a/b"
// and the empty path becomes ".".
func Clean(p string) string {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if p == "" {
		return "."
	}

	return p
}

// UnderAny reports whether p equals or lies below one of prefixes. An empty
// prefix list, or a prefix of ".", admits everything.
func UnderAny(p string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}

	p = Clean(p)

	for _, prefix := range prefixes {
		prefix = Clean(prefix)
		if prefix == "." || p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}

	return false
}
