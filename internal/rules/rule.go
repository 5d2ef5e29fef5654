// internal/rules/rule.go

package rules

import (
	"rgehrsitz/rex/internal/facts"
)

// Rule is a named left-hand side of patterns plus the action fired when all
// of them match. Higher Priority fires first; rules that leave it unset share
// priority 0 and fall back to recency and registration order.
type Rule struct {
	Name     string
	Priority int
	Patterns []Pattern
	Action   Action
}

// Action is the right-hand side of a rule. Returning an error (or panicking)
// aborts this firing only.
type Action func(b Bindings, wm WorkingMemory) error

// WorkingMemory is the engine surface handed to actions.
type WorkingMemory interface {
	Assert(f facts.Fact) (facts.ID, error)
	Retract(id facts.ID) error
	Modify(id facts.ID, changes facts.Changes) error
	ModifyFunc(id facts.ID, fn func(facts.Fact) (facts.Fact, error)) error
	Get(id facts.ID) (facts.Fact, error)
}

// Pattern matches one fact of the given Type.
//
// FactKey, when set, binds the matched fact's ID. Extractions then copy
// attributes into the binding context left to right, and Tests are checked
// left to right. Extracting into a key that is already bound requires the
// values to be equal.
type Pattern struct {
	Type    string
	FactKey string
	Extract []Extract
	Tests   []Test
}

// Extract copies attribute Attr of the matched fact into binding Key.
type Extract struct {
	Attr string
	Key  string
}

// Test compares attribute Attr against either the literal Value or, when Ref
// is set, the value bound under Ref.
type Test struct {
	Attr     string
	Operator string
	Value    any
	Ref      string
}

// Match starts a pattern on facts of the given type.
func Match(factType string) Pattern {
	return Pattern{Type: factType}
}

// As binds the matched fact's ID under key.
func (p Pattern) As(key string) Pattern {
	p.FactKey = key
	return p
}

// Bind extracts attr into key.
func (p Pattern) Bind(attr, key string) Pattern {
	p.Extract = append(append([]Extract(nil), p.Extract...), Extract{Attr: attr, Key: key})
	return p
}

// Where adds a test of attr against a literal value.
func (p Pattern) Where(attr, operator string, value any) Pattern {
	p.Tests = append(append([]Test(nil), p.Tests...), Test{Attr: attr, Operator: operator, Value: value})
	return p
}

// WhereRef adds a test of attr against the value bound under ref.
func (p Pattern) WhereRef(attr, operator, ref string) Pattern {
	p.Tests = append(append([]Test(nil), p.Tests...), Test{Attr: attr, Operator: operator, Ref: ref})
	return p
}

// Clone returns a deep copy so the engine's copy cannot be changed by the
// caller after registration.
func (r *Rule) Clone() *Rule {
	c := &Rule{
		Name:     r.Name,
		Priority: r.Priority,
		Action:   r.Action,
		Patterns: make([]Pattern, len(r.Patterns)),
	}
	for i, p := range r.Patterns {
		c.Patterns[i] = Pattern{
			Type:    p.Type,
			FactKey: p.FactKey,
			Extract: append([]Extract(nil), p.Extract...),
			Tests:   append([]Test(nil), p.Tests...),
		}
	}
	return c
}
