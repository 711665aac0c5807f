package uri

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Matcher matches normalised URI strings against glob patterns, with '/'
// as the separator ("admin/**" matches every admin page, "clients/*" one
// level below clients).
type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewMatcher compiles patterns. Patterns are normalised like request paths,
// so "/admin/" and "admin" are equivalent.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		p = Normalize(p)
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid path pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether the normalised form of p matches any pattern.
func (m *Matcher) Match(p string) bool {
	if m == nil {
		return false
	}
	s := Normalize(p)
	for _, g := range m.globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}

// Patterns returns the compiled patterns in normalised form.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}
