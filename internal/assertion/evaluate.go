// Package assertion evaluates the JSON-path assertions an endpoint may
// declare against a response body (SPEC_FULL.md §4.5). Grounded on
// original_source/src/models/setup.rs and assert_option.rs for the
// assertion shape and on internal/transport/result_validator.go's
// validate-then-classify control flow for the Go idiom (that file has
// since been removed with the rest of internal/transport — credited in
// DESIGN.md). PaesslerAG/jsonpath + PaesslerAG/gval are named, not
// grounded: no importable module in the retrieved pack implements
// JSON-path evaluation.
package assertion

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"github.com/qyzhg/atomic-bomb-engine/internal/model"
)

// Failure is a single assertion mismatch, carrying the exact
// wire-observable message text from SPEC_FULL.md §6.
type Failure struct {
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Evaluate runs every assertion against body in order, stopping at the
// first failure (SPEC_FULL.md's "skip remaining assertions" rule — an
// endpoint's assertion-error counter is incremented at most once per
// response regardless of how many assertions it declares). Returns nil
// when body parses and every assertion matches deeply equal to its
// expected value.
func Evaluate(body []byte, assertions []model.Assertion, endpointName string) error {
	if len(assertions) == 0 {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &Failure{Message: fmt.Sprintf("%s-JSONPath查询失败: %v", endpointName, err)}
	}

	for _, a := range assertions {
		result, err := jsonpath.Get(a.JSONPath, parsed)
		if err != nil {
			if isNoMatchError(err) {
				return &Failure{Message: fmt.Sprintf("%s-没有匹配到任何结果", endpointName)}
			}
			return &Failure{Message: fmt.Sprintf("%s-JSONPath查询失败: %v", endpointName, err)}
		}

		matches, isMultiple := asMatchSlice(result)
		switch {
		case isMultiple && len(matches) == 0:
			return &Failure{Message: fmt.Sprintf("%s-没有匹配到任何结果", endpointName)}
		case isMultiple && len(matches) > 1:
			return &Failure{Message: fmt.Sprintf("%s-匹配到多个值，无法进行断言", endpointName)}
		}

		actual := result
		if isMultiple {
			actual = matches[0]
		}

		if !deepEqualValue(actual, a.Expected) {
			return &Failure{Message: fmt.Sprintf("%s-预期结果：%v, 实际结果：%v", endpointName, a.Expected, actual)}
		}
	}

	return nil
}

// isNoMatchError reports whether err is PaesslerAG/jsonpath's well-known
// behavior of returning an error (rather than an empty/zero result) for a
// direct, non-wildcard path against JSON that simply lacks that key —
// e.g. "$.code" against `{}`. That case is a no-match, not a malformed
// JSONPath expression, and must produce step 2's message, not step 1's.
func isNoMatchError(err error) bool {
	return strings.Contains(err.Error(), "unknown key")
}

// asMatchSlice reports whether jsonpath.Get returned a slice of matches
// (the library's convention for wildcard/filter expressions) versus a
// single scalar/object result for a direct path expression.
func asMatchSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// deepEqualValue compares decoded-JSON values loosely: numeric types
// from json.Unmarshal are always float64, while an expected_value of
// e.g. 200 parsed from a Go literal or config file may arrive as int.
func deepEqualValue(actual, expected any) bool {
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	if aok && eok {
		return af == ef
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
