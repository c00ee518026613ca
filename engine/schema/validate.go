package schema

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// -----------------------------------------------------------------------------
// Violations
// -----------------------------------------------------------------------------

// Violation names one structural mismatch between a value and its shape.
type Violation struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Message  string `json:"message,omitempty"`
}

func (v Violation) String() string {
	path := v.Path
	if path == "" {
		path = "$"
	}
	if v.Message != "" {
		return fmt.Sprintf("%s: %s", path, v.Message)
	}
	return fmt.Sprintf("%s: expected %s, got %s", path, v.Expected, v.Actual)
}

type ValidationResult struct {
	Violations []Violation `json:"violations,omitempty"`
}

func (r *ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

func (r *ValidationResult) Summary() string {
	if r.Valid() {
		return "valid"
	}
	lines := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		lines[i] = v.String()
	}
	return strings.Join(lines, "; ")
}

// -----------------------------------------------------------------------------
// Structural validation
// -----------------------------------------------------------------------------

// ValidateValue walks the shape against the value and collects every
// violation. Validation is structural only: the value is never mutated or
// coerced, and fields not named by the shape are permitted so richer agent
// outputs are not falsely rejected.
func (s Shape) ValidateValue(value any) *ValidationResult {
	res := &ValidationResult{}
	if s == nil {
		return res
	}
	walkShape("", map[string]any(s), value, res)
	return res
}

func walkShape(path string, shape map[string]any, value any, res *ValidationResult) {
	if enum, ok := shape["enum"].([]any); ok {
		checkEnum(path, enum, value, res)
		return
	}
	kind, _ := shape["type"].(string)
	switch kind {
	case "string":
		if _, ok := value.(string); !ok {
			res.Violations = append(res.Violations, mismatch(path, "string", value))
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			res.Violations = append(res.Violations, mismatch(path, "boolean", value))
		}
	case "number", "integer":
		checkNumber(path, kind, shape, value, res)
	case "object":
		checkObject(path, shape, value, res)
	case "array":
		checkArray(path, shape, value, res)
	case "":
		// Untyped shapes with properties behave as objects; anything else
		// places no constraint on the value.
		if _, ok := shape["properties"]; ok {
			checkObject(path, shape, value, res)
		}
	default:
		res.Violations = append(res.Violations, Violation{
			Path:     path,
			Expected: kind,
			Actual:   kindOf(value),
			Message:  fmt.Sprintf("unsupported shape type %q", kind),
		})
	}
}

func checkObject(path string, shape map[string]any, value any, res *ValidationResult) {
	obj, ok := asObject(value)
	if !ok {
		res.Violations = append(res.Violations, mismatch(path, "object", value))
		return
	}
	props, _ := shape["properties"].(map[string]any)
	for _, name := range requiredFields(shape) {
		if _, present := obj[name]; !present {
			res.Violations = append(res.Violations, Violation{
				Path:     joinPath(path, name),
				Expected: propertyKind(props, name),
				Actual:   "missing",
				Message:  "required field is missing",
			})
		}
	}
	for name, sub := range props {
		subShape, ok := sub.(map[string]any)
		if !ok {
			continue
		}
		val, present := obj[name]
		if !present {
			continue
		}
		walkShape(joinPath(path, name), subShape, val, res)
	}
}

func checkArray(path string, shape map[string]any, value any, res *ValidationResult) {
	arr, ok := asArray(value)
	if !ok {
		res.Violations = append(res.Violations, mismatch(path, "array", value))
		return
	}
	items, ok := shape["items"].(map[string]any)
	if !ok {
		return
	}
	for i, elem := range arr {
		walkShape(fmt.Sprintf("%s[%d]", path, i), items, elem, res)
	}
}

func checkNumber(path, kind string, shape map[string]any, value any, res *ValidationResult) {
	n, ok := asNumber(value)
	if !ok {
		res.Violations = append(res.Violations, mismatch(path, kind, value))
		return
	}
	if kind == "integer" && n != math.Trunc(n) {
		res.Violations = append(res.Violations, mismatch(path, "integer", value))
		return
	}
	if minVal, ok := asNumber(shape["minimum"]); ok && n < minVal {
		res.Violations = append(res.Violations, Violation{
			Path:     path,
			Expected: fmt.Sprintf(">= %v", minVal),
			Actual:   fmt.Sprintf("%v", n),
			Message:  "below declared minimum",
		})
	}
	if maxVal, ok := asNumber(shape["maximum"]); ok && n > maxVal {
		res.Violations = append(res.Violations, Violation{
			Path:     path,
			Expected: fmt.Sprintf("<= %v", maxVal),
			Actual:   fmt.Sprintf("%v", n),
			Message:  "above declared maximum",
		})
	}
}

func checkEnum(path string, enum []any, value any, res *ValidationResult) {
	for _, allowed := range enum {
		if equalJSON(allowed, value) {
			return
		}
	}
	res.Violations = append(res.Violations, Violation{
		Path:     path,
		Expected: fmt.Sprintf("one of %v", enum),
		Actual:   fmt.Sprintf("%v", value),
		Message:  "value not in enum",
	})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func mismatch(path, expected string, value any) Violation {
	return Violation{Path: path, Expected: expected, Actual: kindOf(value)}
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func requiredFields(shape map[string]any) []string {
	raw, ok := shape["required"].([]any)
	if !ok {
		if typed, ok := shape["required"].([]string); ok {
			return typed
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func propertyKind(props map[string]any, name string) string {
	sub, ok := props[name].(map[string]any)
	if !ok {
		return "present"
	}
	if _, ok := sub["enum"]; ok {
		return "enum"
	}
	if kind, ok := sub["type"].(string); ok && kind != "" {
		return kind
	}
	return "present"
}

func asObject(value any) (map[string]any, bool) {
	switch t := value.(type) {
	case map[string]any:
		return t, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		for _, k := range rv.MapKeys() {
			out[k.String()] = rv.MapIndex(k).Interface()
		}
		return out, true
	}
	return nil, false
}

func asArray(value any) ([]any, bool) {
	switch t := value.(type) {
	case []any:
		return t, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

func asNumber(value any) (float64, bool) {
	switch t := value.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	}
	return 0, false
}

func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, uint, uint64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	}
	return rv.Kind().String()
}

func equalJSON(a, b any) bool {
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if aok && bok {
		return an == bn
	}
	return reflect.DeepEqual(a, b)
}
