// internal/rules/compare.go

package rules

import (
	"reflect"
	"strings"
)

// Compare applies operator to the attribute value left and the operand right.
// Values of mismatched or unordered types never satisfy an ordering operator.
func Compare(operator string, left, right any) bool {
	operator, _ = CanonicalOperator(operator)
	switch operator {
	case OperatorEqual:
		return equalValues(left, right)
	case OperatorNotEqual:
		return !equalValues(left, right)
	case OperatorGreaterThan:
		c, ok := orderValues(left, right)
		return ok && c > 0
	case OperatorGreaterThanOrEqual:
		c, ok := orderValues(left, right)
		return ok && c >= 0
	case OperatorLessThan:
		c, ok := orderValues(left, right)
		return ok && c < 0
	case OperatorLessThanOrEqual:
		c, ok := orderValues(left, right)
		return ok && c <= 0
	case OperatorContains:
		found, ok := containsValue(left, right)
		return ok && found
	case OperatorNotContains:
		found, ok := containsValue(left, right)
		return ok && !found
	default:
		return false
	}
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if sa, ok := toString(a); ok {
		if sb, ok := toString(b); ok {
			return sa == sb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// orderValues returns -1, 0 or 1 for numbers and strings.
func orderValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	if sa, ok := toString(a); ok {
		sb, ok := toString(b)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// containsValue handles substrings, slice and array membership, and map keys.
// The second result is false when container cannot contain anything.
func containsValue(container, elem any) (bool, bool) {
	if s, ok := toString(container); ok {
		sub, ok := toString(elem)
		if !ok {
			return false, true
		}
		return strings.Contains(s, sub), true
	}

	v := reflect.ValueOf(container)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if equalValues(v.Index(i).Interface(), elem) {
				return true, true
			}
		}
		return false, true
	case reflect.Map:
		for _, k := range v.MapKeys() {
			if equalValues(k.Interface(), elem) {
				return true, true
			}
		}
		return false, true
	default:
		return false, false
	}
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// toString accepts string and named string types such as enums.
func toString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}
