package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Pattern is the condition WaitFor evaluates against the ANSI-stripped
// cumulative output: either a literal substring or a compiled regular
// expression.
type Pattern struct {
	literal string
	re      *regexp.Regexp
}

// Literal returns a pattern that matches when the output contains s.
func Literal(s string) Pattern {
	return Pattern{literal: s}
}

// Regex returns a pattern backed by a compiled regular expression.
func Regex(re *regexp.Regexp) Pattern {
	return Pattern{re: re}
}

// CompilePattern compiles expr as a regular expression pattern.
func CompilePattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: compile pattern %q: %v", ErrInvalidConfig, expr, err)
	}
	return Pattern{re: re}, nil
}

// Match reports whether the pattern is satisfied by text.
func (p Pattern) Match(text string) bool {
	if p.re != nil {
		return p.re.MatchString(text)
	}
	if p.literal != "" {
		return strings.Contains(text, p.literal)
	}
	return false
}

// IsZero reports whether the pattern matches nothing.
func (p Pattern) IsZero() bool {
	return p.re == nil && p.literal == ""
}

func (p Pattern) String() string {
	if p.re != nil {
		return "regex " + strconv.Quote(p.re.String())
	}
	return "text " + strconv.Quote(p.literal)
}
