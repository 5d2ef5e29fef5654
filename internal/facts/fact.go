// internal/facts/fact.go

package facts

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ID identifies an asserted fact. IDs are allocated by a Store and are never
// reused within it.
type ID uint64

// Fact is anything the engine can match against. Type selects which patterns
// may look at the fact, Attr exposes its attributes by name.
type Fact interface {
	Type() string
	Attr(name string) (any, bool)
}

// Changes is a set of attribute updates keyed by attribute name.
type Changes map[string]any

// Updatable is implemented by facts that accept attribute changes. Update
// returns the replacement value; the receiver is left untouched.
type Updatable interface {
	Fact
	Update(changes Changes) (Fact, error)
}

// Cloner is implemented by facts that share mutable state with their
// holder. The store keeps its own clone of such facts and hands out clones.
type Cloner interface {
	Clone() Fact
}

// Record is a map-backed fact.
type Record struct {
	Kind  string
	Attrs map[string]any
}

// NewRecord builds a Record of the given type. Attributes are copied.
func NewRecord(kind string, attrs map[string]any) *Record {
	r := &Record{Kind: kind, Attrs: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		r.Attrs[k] = v
	}
	return r
}

func (r *Record) Type() string { return r.Kind }

func (r *Record) Attr(name string) (any, bool) {
	v, ok := r.Attrs[name]
	return v, ok
}

// Update returns a copy of r with changes applied. A nil value removes the
// attribute.
func (r *Record) Update(changes Changes) (Fact, error) {
	next := NewRecord(r.Kind, r.Attrs)
	for k, v := range changes {
		if k == "" {
			return nil, fmt.Errorf("%w: empty attribute name", ErrMalformedFact)
		}
		if v == nil {
			delete(next.Attrs, k)
			continue
		}
		next.Attrs[k] = v
	}
	return next, nil
}

// Clone copies r and its attribute map. Attribute values are not copied.
func (r *Record) Clone() Fact {
	return NewRecord(r.Kind, r.Attrs)
}

func (r *Record) String() string {
	keys := make([]string, 0, len(r.Attrs))
	for k := range r.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(r.Kind)
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %v", k, r.Attrs[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

// validate reports whether f can be held by a Store.
func validate(f Fact) error {
	if f == nil {
		return fmt.Errorf("%w: nil fact", ErrMalformedFact)
	}
	switch v := reflect.ValueOf(f); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			return fmt.Errorf("%w: nil %T", ErrMalformedFact, f)
		}
	}
	if f.Type() == "" {
		return fmt.Errorf("%w: fact has no type", ErrMalformedFact)
	}
	return nil
}

// own returns the copy of f a store may keep or hand out.
func own(f Fact) Fact {
	if c, ok := f.(Cloner); ok {
		return c.Clone()
	}
	return f
}
