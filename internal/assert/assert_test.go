package assert

import (
	"strings"
	"testing"
)

func TestExactMode(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		res := Evaluate("hello\nworld\n", Spec{Mode: ModeExact, Expected: "hello\nworld\n"})
		if !res.Passed {
			t.Errorf("expected pass, got failure: %s", res.Message)
		}
		if res.Diff != "" {
			t.Errorf("passing result should carry no diff, got %q", res.Diff)
		}
	})

	t.Run("mismatch produces line diff", func(t *testing.T) {
		res := Evaluate("hello\nworld\n", Spec{Mode: ModeExact, Expected: "hello\nthere\n"})
		if res.Passed {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Diff, "-there") || !strings.Contains(res.Diff, "+world") {
			t.Errorf("diff missing changed lines: %q", res.Diff)
		}
		t.Logf("[TEST] diff:\n%s", res.Diff)
	})

	t.Run("stripAnsi", func(t *testing.T) {
		colored := "\x1b[1;32mok\x1b[0m"
		if res := Evaluate(colored, Spec{Mode: ModeExact, Expected: "ok"}); res.Passed {
			t.Error("raw escape bytes should not match the plain expectation")
		}
		res := Evaluate(colored, Spec{Mode: ModeExact, Expected: "ok", StripAnsi: true})
		if !res.Passed {
			t.Errorf("stripped comparison failed: %s", res.Message)
		}
	})

	t.Run("ignoreCase", func(t *testing.T) {
		res := Evaluate("HELLO", Spec{Mode: ModeExact, Expected: "hello", IgnoreCase: true})
		if !res.Passed {
			t.Errorf("case-insensitive comparison failed: %s", res.Message)
		}
	})

	t.Run("ignoreWhitespace", func(t *testing.T) {
		res := Evaluate("  a   b\n\tc  ", Spec{Mode: ModeExact, Expected: "a b c", IgnoreWhitespace: true})
		if !res.Passed {
			t.Errorf("whitespace-insensitive comparison failed: %s", res.Message)
		}
	})

	t.Run("result echoes originals", func(t *testing.T) {
		res := Evaluate("ABC", Spec{Mode: ModeExact, Expected: "abc", IgnoreCase: true})
		if res.Actual != "ABC" || res.Expected != "abc" {
			t.Errorf("result should carry un-normalized values, got actual=%q expected=%q", res.Actual, res.Expected)
		}
	})
}

func TestContainsMode(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		res := Evaluate("prefix needle suffix", Spec{Mode: ModeContains, Expected: "needle"})
		if !res.Passed {
			t.Errorf("expected pass: %s", res.Message)
		}
	})

	t.Run("miss", func(t *testing.T) {
		res := Evaluate("haystack", Spec{Mode: ModeContains, Expected: "needle"})
		if res.Passed {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Message, "needle") {
			t.Errorf("failure message should name the expectation: %q", res.Message)
		}
	})

	t.Run("normalization applies to both sides", func(t *testing.T) {
		res := Evaluate("Exit   Code: 0", Spec{
			Mode: ModeContains, Expected: "exit code: 0",
			IgnoreCase: true, IgnoreWhitespace: true,
		})
		if !res.Passed {
			t.Errorf("expected pass: %s", res.Message)
		}
	})
}

func TestRegexMode(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		res := Evaluate("done in 42ms", Spec{Mode: ModeRegex, Expected: `done in \d+ms`})
		if !res.Passed {
			t.Errorf("expected pass: %s", res.Message)
		}
	})

	t.Run("miss", func(t *testing.T) {
		res := Evaluate("done in forever", Spec{Mode: ModeRegex, Expected: `done in \d+ms`})
		if res.Passed {
			t.Error("expected failure")
		}
	})

	t.Run("ignoreCase", func(t *testing.T) {
		res := Evaluate("DONE", Spec{Mode: ModeRegex, Expected: `^done$`, IgnoreCase: true})
		if !res.Passed {
			t.Errorf("expected pass: %s", res.Message)
		}
	})

	t.Run("invalid pattern fails without panicking", func(t *testing.T) {
		res := Evaluate("anything", Spec{Mode: ModeRegex, Expected: `([unclosed`})
		if res.Passed {
			t.Fatal("invalid regex must not pass")
		}
		if !strings.Contains(res.Message, "invalid regex") {
			t.Errorf("message should report the bad pattern: %q", res.Message)
		}
	})
}

func TestJSONMode(t *testing.T) {
	t.Run("key order does not matter", func(t *testing.T) {
		res := Evaluate(`{"b": 2, "a": 1}`, Spec{Mode: ModeJSON, Expected: `{"a": 1, "b": 2}`})
		if !res.Passed {
			t.Errorf("expected pass: %s", res.Message)
		}
	})

	t.Run("whitespace does not matter", func(t *testing.T) {
		res := Evaluate("{\n  \"a\": [1, 2]\n}", Spec{Mode: ModeJSON, Expected: `{"a":[1,2]}`})
		if !res.Passed {
			t.Errorf("expected pass: %s", res.Message)
		}
	})

	t.Run("value mismatch produces diff", func(t *testing.T) {
		res := Evaluate(`{"count": 3}`, Spec{Mode: ModeJSON, Expected: `{"count": 4}`})
		if res.Passed {
			t.Fatal("expected failure")
		}
		if res.Diff == "" {
			t.Error("JSON mismatch should carry a diff")
		}
	})

	t.Run("array order matters", func(t *testing.T) {
		res := Evaluate(`[1, 2]`, Spec{Mode: ModeJSON, Expected: `[2, 1]`})
		if res.Passed {
			t.Error("reordered arrays must not be equal")
		}
	})

	t.Run("invalid actual", func(t *testing.T) {
		res := Evaluate(`not json`, Spec{Mode: ModeJSON, Expected: `{}`})
		if res.Passed {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Message, "actual output is not valid JSON") {
			t.Errorf("unexpected message: %q", res.Message)
		}
	})

	t.Run("invalid expected", func(t *testing.T) {
		res := Evaluate(`{}`, Spec{Mode: ModeJSON, Expected: `{broken`})
		if res.Passed {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Message, "expected value is not valid JSON") {
			t.Errorf("unexpected message: %q", res.Message)
		}
	})

	t.Run("trailing garbage rejected", func(t *testing.T) {
		res := Evaluate(`{} extra`, Spec{Mode: ModeJSON, Expected: `{}`})
		if res.Passed {
			t.Error("trailing data after the document must not pass")
		}
	})

	t.Run("stripAnsi before parsing", func(t *testing.T) {
		res := Evaluate("\x1b[32m{\"ok\": true}\x1b[0m", Spec{
			Mode: ModeJSON, Expected: `{"ok": true}`, StripAnsi: true,
		})
		if !res.Passed {
			t.Errorf("expected pass: %s", res.Message)
		}
	})
}

func TestJSONSchemaMode(t *testing.T) {
	schema := `{
		"type": "object",
		"required": ["name", "count"],
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer", "minimum": 0}
		}
	}`

	t.Run("valid document", func(t *testing.T) {
		res := Evaluate(`{"name": "run", "count": 3}`, Spec{Mode: ModeJSONSchema, Expected: schema})
		if !res.Passed {
			t.Errorf("expected pass: %s", res.Message)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		res := Evaluate(`{"name": "run"}`, Spec{Mode: ModeJSONSchema, Expected: schema})
		if res.Passed {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Message, "schema validation failed") {
			t.Errorf("unexpected message: %q", res.Message)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		res := Evaluate(`{"name": "run", "count": "three"}`, Spec{Mode: ModeJSONSchema, Expected: schema})
		if res.Passed {
			t.Error("expected failure")
		}
	})

	t.Run("invalid schema fails without panicking", func(t *testing.T) {
		res := Evaluate(`{}`, Spec{Mode: ModeJSONSchema, Expected: `{"type": 42}`})
		if res.Passed {
			t.Fatal("expected failure")
		}
		if !strings.Contains(res.Message, "invalid JSON schema") {
			t.Errorf("unexpected message: %q", res.Message)
		}
	})

	t.Run("repeated evaluation reuses the compiled schema", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			res := Evaluate(`{"name": "x", "count": 0}`, Spec{Mode: ModeJSONSchema, Expected: schema})
			if !res.Passed {
				t.Fatalf("iteration %d failed: %s", i, res.Message)
			}
		}
	})
}

func TestUnknownModeFails(t *testing.T) {
	res := Evaluate("anything", Spec{Mode: "fuzzy", Expected: "x"})
	if res.Passed {
		t.Fatal("unknown mode must not pass")
	}
	if !strings.Contains(res.Message, "fuzzy") {
		t.Errorf("message should name the mode: %q", res.Message)
	}
}

// TestEvaluateIsPure checks that re-running the same assertion yields
// identical results, failures included.
func TestEvaluateIsPure(t *testing.T) {
	specs := []Spec{
		{Mode: ModeExact, Expected: "a"},
		{Mode: ModeRegex, Expected: `([bad`},
		{Mode: ModeJSON, Expected: `{"k": 1}`},
	}
	for _, spec := range specs {
		first := Evaluate("input", spec)
		second := Evaluate("input", spec)
		if first != second {
			t.Errorf("mode %s: results differ between runs: %+v vs %+v", spec.Mode, first, second)
		}
	}
}

func TestSpecValidate(t *testing.T) {
	cases := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"exact", Spec{Mode: ModeExact, Expected: "x"}, false},
		{"contains", Spec{Mode: ModeContains, Expected: "x"}, false},
		{"good regex", Spec{Mode: ModeRegex, Expected: `\d+`}, false},
		{"bad regex", Spec{Mode: ModeRegex, Expected: `([`}, true},
		{"json", Spec{Mode: ModeJSON, Expected: `{}`}, false},
		{"missing mode", Spec{Expected: "x"}, true},
		{"unknown mode", Spec{Mode: "fuzzy"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
