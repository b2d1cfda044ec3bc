package patients

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinChars is the shortest partial name that produces suggestions.
const DefaultMinChars = 2

// Matcher finds existing patients whose stored name contains a partial name.
type Matcher struct {
	MinChars int
}

// NewMatcher returns a matcher; minChars below 1 falls back to DefaultMinChars.
func NewMatcher(minChars int) Matcher {
	if minChars < 1 {
		minChars = DefaultMinChars
	}
	return Matcher{MinChars: minChars}
}

// Suggest returns, in roster order, every patient whose name contains partial
// case-insensitively. Partials shorter than MinChars runes match nothing.
// partial is not trimmed.
func (m Matcher) Suggest(partial string, roster []Patient) []Patient {
	minChars := m.MinChars
	if minChars < 1 {
		minChars = DefaultMinChars
	}
	if utf8.RuneCountInString(partial) < minChars {
		return []Patient{}
	}
	needle := strings.ToLower(partial)
	out := []Patient{}
	for _, p := range roster {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}

// Suggest runs the default matcher.
func Suggest(partial string, roster []Patient) []Patient {
	return NewMatcher(DefaultMinChars).Suggest(partial, roster)
}
