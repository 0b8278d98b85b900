package parser

import "regexp"

// Complexity thresholds are empirically chosen and tunable; nothing below
// is load-bearing beyond "long or structured messages go through the
// multi-stage pipeline".
type ComplexityConfig struct {
	MinChars    int
	MaxNewlines int
}

func DefaultComplexityConfig() ComplexityConfig {
	return ComplexityConfig{MinChars: 200, MaxNewlines: 2}
}

var numberedListRe = regexp.MustCompile(`\d+\.`)

// IsComplex reports whether a message warrants the multi-stage pipeline:
// long, or containing an enumerated list, or spanning several lines.
func (c ComplexityConfig) IsComplex(message string) bool {
	if c.MinChars <= 0 {
		c.MinChars = 200
	}
	if c.MaxNewlines <= 0 {
		c.MaxNewlines = 2
	}
	if len([]rune(message)) > c.MinChars {
		return true
	}
	if numberedListRe.MatchString(message) {
		return true
	}
	newlines := 0
	for _, r := range message {
		if r == '\n' {
			newlines++
			if newlines > c.MaxNewlines {
				return true
			}
		}
	}
	return false
}
