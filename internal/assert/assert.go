// Package assert is the harness's assertion engine: pure predicate and
// diff logic over a text value and a match specification. It never
// panics and never returns a Go error; every evaluation produces a
// Result and the caller decides whether a failure is fatal.
package assert

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/termscript/termscript/internal/ansi"
)

// Mode selects how the actual value is compared to the expectation.
type Mode string

const (
	// ModeExact compares for equality after optional normalization.
	ModeExact Mode = "exact"
	// ModeContains checks for a substring.
	ModeContains Mode = "contains"
	// ModeRegex tests a regular expression.
	ModeRegex Mode = "regex"
	// ModeJSON deep-compares parsed JSON, insensitive to key order.
	ModeJSON Mode = "json"
	// ModeJSONSchema validates parsed JSON against a JSON Schema.
	ModeJSONSchema Mode = "jsonSchema"
)

// Spec is the stable assertion contract for script authors.
type Spec struct {
	// Mode selects the comparison.
	Mode Mode `yaml:"mode" json:"mode"`

	// Expected is the expectation: a string for text modes, a JSON
	// document for ModeJSON, a schema document for ModeJSONSchema.
	Expected string `yaml:"expected" json:"expected"`

	// StripAnsi strips escape sequences from the actual value before
	// comparing.
	StripAnsi bool `yaml:"stripAnsi" json:"stripAnsi,omitempty"`

	// IgnoreCase lowercases both sides (text modes) or makes the regex
	// case-insensitive.
	IgnoreCase bool `yaml:"ignoreCase" json:"ignoreCase,omitempty"`

	// IgnoreWhitespace collapses whitespace runs and trims both sides
	// (text modes only).
	IgnoreWhitespace bool `yaml:"ignoreWhitespace" json:"ignoreWhitespace,omitempty"`
}

// Validate reports whether the spec is well formed, without evaluating
// anything.
func (s Spec) Validate() error {
	switch s.Mode {
	case ModeExact, ModeContains, ModeJSON, ModeJSONSchema:
	case ModeRegex:
		if _, err := regexp.Compile(s.Expected); err != nil {
			return fmt.Errorf("invalid regex %q: %w", s.Expected, err)
		}
	case "":
		return fmt.Errorf("assertion mode is required")
	default:
		return fmt.Errorf("unknown assertion mode %q", s.Mode)
	}
	return nil
}

// Result is the outcome of one assertion.
type Result struct {
	Passed   bool   `json:"passed"`
	Actual   string `json:"actual"`
	Expected string `json:"expected"`

	// Diff is a unified line diff, present on exact and JSON mismatches.
	Diff string `json:"diff,omitempty"`

	// Message explains a failure in one line.
	Message string `json:"message,omitempty"`
}

// Evaluate runs the assertion. It is pure: identical arguments always
// produce identical results.
func Evaluate(actual string, spec Spec) Result {
	if spec.StripAnsi {
		actual = ansi.Strip(actual)
	}

	switch spec.Mode {
	case ModeExact:
		return evaluateExact(actual, spec)
	case ModeContains:
		return evaluateContains(actual, spec)
	case ModeRegex:
		return evaluateRegex(actual, spec)
	case ModeJSON:
		return evaluateJSON(actual, spec)
	case ModeJSONSchema:
		return evaluateSchema(actual, spec)
	default:
		return Result{
			Actual:   actual,
			Expected: spec.Expected,
			Message:  fmt.Sprintf("unknown assertion mode %q", spec.Mode),
		}
	}
}

func evaluateExact(actual string, spec Spec) Result {
	normActual := normalizeText(actual, spec)
	normExpected := normalizeText(spec.Expected, spec)

	res := Result{
		Passed:   normActual == normExpected,
		Actual:   actual,
		Expected: spec.Expected,
	}
	if !res.Passed {
		res.Diff = unifiedDiff(normExpected, normActual)
		res.Message = "output does not exactly match expectation"
	}
	return res
}

func evaluateContains(actual string, spec Spec) Result {
	normActual := normalizeText(actual, spec)
	normExpected := normalizeText(spec.Expected, spec)

	res := Result{
		Passed:   strings.Contains(normActual, normExpected),
		Actual:   actual,
		Expected: spec.Expected,
	}
	if !res.Passed {
		res.Message = fmt.Sprintf("output does not contain %q", spec.Expected)
	}
	return res
}

func evaluateRegex(actual string, spec Spec) Result {
	expr := spec.Expected
	if spec.IgnoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Result{
			Actual:   actual,
			Expected: spec.Expected,
			Message:  fmt.Sprintf("invalid regex %q: %v", spec.Expected, err),
		}
	}

	res := Result{
		Passed:   re.MatchString(actual),
		Actual:   actual,
		Expected: spec.Expected,
	}
	if !res.Passed {
		res.Message = fmt.Sprintf("output does not match pattern %q", spec.Expected)
	}
	return res
}

// normalizeText applies the optional case and whitespace normalization
// used by the text modes.
func normalizeText(s string, spec Spec) string {
	if spec.IgnoreCase {
		s = strings.ToLower(s)
	}
	if spec.IgnoreWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}
	return s
}

// unifiedDiff renders a line-level diff between the expected and actual
// values.
func unifiedDiff(expected, actual string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}
