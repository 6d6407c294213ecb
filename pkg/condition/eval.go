package condition

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// Evaluate walks the chain against a flat field-to-value map. Evaluation is
// pure: no short-circuiting is needed, both sides of a chain are always
// safe to compute.
//
// Unknown fields evaluate as undefined: every comparison is false except
// is_null, which is true.
func (e *Expression) Evaluate(data map[string]any) bool {
	result := e.evalSingle(data)
	if e.Next == nil {
		return result
	}
	rest := e.Next.Evaluate(data)
	if e.Logical == LogicOr {
		return result || rest
	}
	return result && rest
}

func (e *Expression) evalSingle(data map[string]any) bool {
	value, exists := data[e.Field]

	switch e.Operator {
	case OpIsNull:
		return !exists || value == nil
	case OpIsNotNull:
		return exists && value != nil
	}
	if !exists {
		return false
	}

	switch e.Operator {
	case OpTruthy:
		return truthy(value)
	case OpEq:
		return equal(value, e.Value)
	case OpNe:
		return !equal(value, e.Value)
	case OpGt, OpGe, OpLt, OpLe:
		return e.compare(value)
	case OpIn:
		return contains(e.Values, value)
	case OpNotIn:
		return !contains(e.Values, value)
	case OpContains:
		return containsValue(value, e.Value)
	case OpMatches:
		return e.matches(value)
	}
	return false
}

// equal compares numerically when both sides are numbers, by string form
// otherwise. A nil expression value matches only a nil field value.
func equal(field, want any) bool {
	if want == nil || field == nil {
		return field == nil && want == nil
	}
	if fn, err1 := cast.ToFloat64E(field); err1 == nil {
		if wn, err2 := cast.ToFloat64E(want); err2 == nil {
			return fn == wn
		}
	}
	return cast.ToString(field) == cast.ToString(want)
}

func (e *Expression) compare(field any) bool {
	fn, err1 := cast.ToFloat64E(field)
	wn, err2 := cast.ToFloat64E(e.Value)
	if err1 != nil || err2 != nil {
		// Fall back to lexicographic comparison of the string forms.
		return compareOrdered(e.Operator, strings.Compare(cast.ToString(field), cast.ToString(e.Value)))
	}
	switch {
	case fn > wn:
		return compareOrdered(e.Operator, 1)
	case fn < wn:
		return compareOrdered(e.Operator, -1)
	default:
		return compareOrdered(e.Operator, 0)
	}
}

func compareOrdered(op Operator, cmp int) bool {
	switch op {
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	}
	return false
}

func contains(values []any, field any) bool {
	for _, v := range values {
		if equal(field, v) {
			return true
		}
	}
	return false
}

// containsValue supports string substring checks and array membership.
func containsValue(field, want any) bool {
	rv := reflect.ValueOf(field)
	if field != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		for i := 0; i < rv.Len(); i++ {
			if equal(rv.Index(i).Interface(), want) {
				return true
			}
		}
		return false
	}
	return strings.Contains(cast.ToString(field), cast.ToString(want))
}

// matches compiles the pattern at evaluation time, applying the i/m/s flags.
func (e *Expression) matches(field any) bool {
	pattern := e.Pattern
	if e.Flags != "" {
		var mods strings.Builder
		for _, f := range e.Flags {
			switch f {
			case 'i', 'm', 's':
				mods.WriteRune(f)
			}
		}
		if mods.Len() > 0 {
			pattern = "(?" + mods.String() + ")" + pattern
		}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(cast.ToString(field))
}

func truthy(value any) bool {
	if value == nil {
		return false
	}
	if b, err := cast.ToBoolE(value); err == nil {
		return b
	}
	return cast.ToString(value) != ""
}
