package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"rgehrsitz/rex/internal/facts"
)

// Bindings maps binding keys to the values (or fact IDs) bound by a match.
type Bindings map[string]any

// Copy returns a shallow copy of the bindings.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs)+1)
	for k, v := range bs {
		acc[k] = v
	}
	return acc
}

// Extend adds the binding; modifies and returns the Bindings.
func (bs Bindings) Extend(key string, v any) Bindings {
	bs[key] = v
	return bs
}

// FactID returns the fact ID bound under key.
func (bs Bindings) FactID(key string) (facts.ID, bool) {
	id, ok := bs[key].(facts.ID)
	return id, ok
}

// String returns the value bound under key if it is a string.
func (bs Bindings) String(key string) (string, bool) {
	s, ok := bs[key].(string)
	return s, ok
}

// Canonical renders the bindings as sorted key=value pairs. Values are
// rendered the way Compare sees them: numbers of any kind as one number,
// named string types as plain strings, anything else with its type.
func (bs Bindings) Canonical() string {
	keys := make([]string, 0, len(bs))
	for k := range bs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(canonicalValue(bs[k]))
	}
	return sb.String()
}

func canonicalValue(v any) string {
	if f, ok := toFloat(v); ok {
		return "num:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	if s, ok := toString(v); ok {
		return "str:" + strconv.Quote(s)
	}
	return fmt.Sprintf("%T:%#v", v, v)
}
