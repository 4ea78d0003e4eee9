package assert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// evaluateJSON deep-compares the actual and expected values as parsed
// JSON, so key order and insignificant whitespace never matter.
func evaluateJSON(actual string, spec Spec) Result {
	res := Result{Actual: actual, Expected: spec.Expected}

	actualVal, err := decodeJSON(actual)
	if err != nil {
		res.Message = fmt.Sprintf("actual output is not valid JSON: %v", err)
		return res
	}
	expectedVal, err := decodeJSON(spec.Expected)
	if err != nil {
		res.Message = fmt.Sprintf("expected value is not valid JSON: %v", err)
		return res
	}

	if reflect.DeepEqual(actualVal, expectedVal) {
		res.Passed = true
		return res
	}

	res.Message = "JSON documents are not equal"
	res.Diff = unifiedDiff(canonicalJSON(expectedVal), canonicalJSON(actualVal))
	return res
}

// evaluateSchema validates the actual value against a JSON Schema given
// in Expected.
func evaluateSchema(actual string, spec Spec) Result {
	res := Result{Actual: actual, Expected: spec.Expected}

	sch, err := compiledSchema(spec.Expected)
	if err != nil {
		res.Message = fmt.Sprintf("invalid JSON schema: %v", err)
		return res
	}

	actualVal, err := decodeJSON(actual)
	if err != nil {
		res.Message = fmt.Sprintf("actual output is not valid JSON: %v", err)
		return res
	}

	if err := sch.Validate(actualVal); err != nil {
		res.Message = fmt.Sprintf("schema validation failed: %v", err)
		return res
	}
	res.Passed = true
	return res
}

// decodeJSON parses a document with number precision preserved.
func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// Reject trailing garbage after the first document.
	if dec.More() {
		return nil, fmt.Errorf("unexpected trailing data")
	}
	return v, nil
}

// canonicalJSON renders a decoded value with sorted keys and stable
// indentation, for diffing.
func canonicalJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return buf.String()
}

// schemaCache holds compiled schemas keyed by their source text, so
// repeated assertions against the same schema compile once.
var schemaCache = struct {
	sync.Mutex
	m map[string]*jsonschema.Schema
}{m: make(map[string]*jsonschema.Schema)}

func compiledSchema(src string) (*jsonschema.Schema, error) {
	schemaCache.Lock()
	defer schemaCache.Unlock()
	if sch, ok := schemaCache.m[src]; ok {
		return sch, nil
	}
	sch, err := jsonschema.CompileString("assertion.schema.json", src)
	if err != nil {
		return nil, err
	}
	schemaCache.m[src] = sch
	return sch, nil
}
