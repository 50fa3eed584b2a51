// In file: internal/tools/schema.go
package tools

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// ValidationError describes one argument that violates the descriptor's schema.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

// ValidationErrors aggregates every violation found in one argument set.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, ErrInvalidArguments) match.
func (errs ValidationErrors) Unwrap() error {
	return ErrInvalidArguments
}

// Validate checks args against an object schema. Declared constraints (required
// fields, primitive types, enums) are enforced; undeclared extra arguments are
// tolerated. The returned error, if any, is a ValidationErrors.
func (s JSONSchema) Validate(args map[string]any) error {
	var errs ValidationErrors
	for _, key := range s.Required {
		if v, ok := args[key]; !ok || v == nil {
			errs = append(errs, &ValidationError{Key: key, Reason: "required"})
		}
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		prop, ok := s.Properties[key]
		if !ok || prop == nil || args[key] == nil {
			continue
		}
		if reason := prop.check(args[key]); reason != "" {
			errs = append(errs, &ValidationError{Key: key, Reason: reason})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ApplyDefaults returns a copy of args with schema defaults filled in for missing
// properties. The input map is never modified.
func (s JSONSchema) ApplyDefaults(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+len(s.Properties))
	for k, v := range args {
		out[k] = v
	}
	for name, prop := range s.Properties {
		if prop == nil || prop.Default == nil {
			continue
		}
		if _, ok := out[name]; !ok {
			out[name] = prop.Default
		}
	}
	return out
}

func (s *JSONSchema) check(v any) string {
	if s.Type != "" && !matchesType(s.Type, v) {
		return fmt.Sprintf("expected %s, got %T", s.Type, v)
	}
	if len(s.Enum) > 0 && !inEnum(s.Enum, v) {
		return fmt.Sprintf("must be one of %v", s.Enum)
	}
	if s.Type == "array" && s.Items != nil {
		rv := reflect.ValueOf(v)
		for i := 0; i < rv.Len(); i++ {
			if reason := s.Items.check(rv.Index(i).Interface()); reason != "" {
				return fmt.Sprintf("item %d: %s", i, reason)
			}
		}
	}
	return ""
}

func matchesType(typ string, v any) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		_, ok := toFloat(v)
		return ok
	case "integer":
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		if v == nil {
			return false
		}
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func inEnum(enum []any, v any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(e, v) {
			return true
		}
		// YAML and JSON disagree on numeric widths; compare numbers by value.
		if ef, ok := toFloat(e); ok {
			if vf, ok := toFloat(v); ok && ef == vf {
				return true
			}
		}
	}
	return false
}
