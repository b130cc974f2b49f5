package assert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/apiflow/pkg/snapshot"
)

// resolveActual produces the actual value for an assertion from the
// response. Unresolvable values come back as nil rather than an error so the
// exists operator can still reason about absence; only structurally broken
// assertions return an error.
func resolveActual(a Assertion, resp *snapshot.ResponseSnapshot) (interface{}, error) {
	switch a.Type {
	case TypeStatus:
		return resp.Status, nil
	case TypeHeader:
		if v, ok := resp.HeaderValue(a.Target); ok {
			return v, nil
		}
		return nil, nil
	case TypeBody:
		return resp.Body, nil
	case TypeJSONPath:
		return resolveJSONPath(resp.Body, a.Target), nil
	case TypeResponseTime:
		return resp.TimeMS, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, a.Type)
	}
}

// resolveJSONPath evaluates a dotted/bracketed path such as
// "data.items[0].name" against the response body. Invalid JSON, a missing
// intermediate segment or an out-of-range index all yield nil without
// throwing.
func resolveJSONPath(body, target string) interface{} {
	if !gjson.Valid(body) {
		return nil
	}
	path := toGJSONPath(target)
	if path == "" {
		var root interface{}
		if err := json.Unmarshal([]byte(body), &root); err != nil {
			return nil
		}
		return root
	}
	return gjsonValue(gjson.Get(body, path))
}

// toGJSONPath converts the supported JSONPath subset to gjson syntax:
// strips an optional leading "$." and rewrites bracketed numeric indexes
// ("items[0]" → "items.0").
func toGJSONPath(target string) string {
	path := strings.TrimPrefix(target, "$")
	path = strings.TrimPrefix(path, ".")

	var out strings.Builder
	for i := 0; i < len(path); {
		if path[i] != '[' {
			out.WriteByte(path[i])
			i++
			continue
		}
		end := strings.IndexByte(path[i:], ']')
		if end == -1 {
			out.WriteString(path[i:])
			break
		}
		end += i
		content := strings.Trim(path[i+1:end], `"'`)
		if isIndex(content) {
			out.WriteByte('.')
			out.WriteString(content)
		} else if content != "" {
			// Bracketed key access: ["content-type"] → .content-type
			out.WriteByte('.')
			out.WriteString(content)
		}
		i = end + 1
	}
	return strings.TrimPrefix(out.String(), ".")
}

// isIndex reports whether s is a non-negative integer literal.
func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// gjsonValue converts a gjson result to a plain Go value, keeping whole
// numbers as int for readable messages.
func gjsonValue(result gjson.Result) interface{} {
	if !result.Exists() {
		return nil
	}
	switch result.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		if result.Num == float64(int64(result.Num)) {
			return int(result.Num)
		}
		return result.Num
	case gjson.String:
		return result.Str
	case gjson.JSON:
		var value interface{}
		if err := json.Unmarshal([]byte(result.Raw), &value); err != nil {
			return result.Raw
		}
		return value
	default:
		return result.Value()
	}
}
