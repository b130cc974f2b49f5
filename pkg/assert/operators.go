package assert

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// applyOperator compares (actual, expected) under op. A returned error marks
// the single assertion failed with the error's message; it never aborts the
// batch.
func applyOperator(op Operator, actual, expected interface{}) (bool, error) {
	switch op {
	case OpEquals:
		return valuesEqual(actual, expected), nil
	case OpNotEquals:
		return !valuesEqual(actual, expected), nil
	case OpContains:
		return containsValue(actual, expected)
	case OpMatches:
		return matchesPattern(actual, expected)
	case OpLessThan:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a < b })
	case OpGreaterThan:
		return compareNumeric(actual, expected, func(a, b float64) bool { return a > b })
	case OpExists:
		return actual != nil, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

// valuesEqual performs deep equality with numeric coercion: values that both
// parse as numbers compare numerically even if one side is a numeric string.
func valuesEqual(actual, expected interface{}) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)
	if aok && eok {
		return af == ef
	}
	if as, ok := actual.(string); ok {
		if es, ok := expected.(string); ok {
			return as == es
		}
	}
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

// containsValue is a substring test for string actuals and a membership test
// for array actuals.
func containsValue(actual, expected interface{}) (bool, error) {
	switch av := actual.(type) {
	case string:
		es, ok := expected.(string)
		if !ok {
			es = fmt.Sprintf("%v", expected)
		}
		return strings.Contains(av, es), nil
	case []interface{}:
		for _, item := range av {
			if valuesEqual(item, expected) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("contains requires a string or array actual, got %T", actual)
	}
}

// matchesPattern tests a string actual against a regular expression pattern.
func matchesPattern(actual, expected interface{}) (bool, error) {
	as, ok := actual.(string)
	if !ok {
		return false, fmt.Errorf("%w: matches requires a string actual, got %T", ErrNotAString, actual)
	}
	pattern, ok := expected.(string)
	if !ok {
		return false, fmt.Errorf("%w: matches requires a string pattern, got %T", ErrInvalidPattern, expected)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re.MatchString(as), nil
}

func compareNumeric(actual, expected interface{}, cmp func(a, b float64) bool) (bool, error) {
	af, ok := toFloat(actual)
	if !ok {
		return false, fmt.Errorf("%w: actual %v (%T)", ErrNonNumeric, actual, actual)
	}
	ef, ok := toFloat(expected)
	if !ok {
		return false, fmt.Errorf("%w: expected %v (%T)", ErrNonNumeric, expected, expected)
	}
	return cmp(af, ef), nil
}

// toFloat coerces numbers, json.Number and numeric strings to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// normalize round-trips composite values through JSON so structurally equal
// maps and slices built from different concrete types compare equal.
func normalize(v interface{}) interface{} {
	switch v.(type) {
	case string, bool, nil:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
