// internal/rete/node.go

package rete

import (
	"rgehrsitz/rex/internal/facts"
	"rgehrsitz/rex/internal/rules"
)

type alphaEntry struct {
	id   facts.ID
	fact facts.Fact
}

// node is the match node of one pattern in a rule's chain. Alpha tests only
// look at the fact; beta work (fact binding, extractions, reference tests)
// needs the partial context of the parent token.
type node struct {
	chain      *chain
	index      int
	pattern    rules.Pattern
	alphaTests []rules.Test
	betaTests  []rules.Test

	alpha  []alphaEntry
	tokens []*token
	byFact map[facts.ID][]*token
}

func newNode(c *chain, index int, pattern rules.Pattern) *node {
	n := &node{
		chain:   c,
		index:   index,
		pattern: pattern,
		byFact:  make(map[facts.ID][]*token),
	}
	for _, test := range pattern.Tests {
		if test.Ref == "" {
			n.alphaTests = append(n.alphaTests, test)
		} else {
			n.betaTests = append(n.betaTests, test)
		}
	}
	return n
}

func (n *node) last() bool {
	return n.index == len(n.chain.nodes)-1
}

// alphaMatch reports whether f passes the type filter and literal tests.
func (n *node) alphaMatch(f facts.Fact) bool {
	if f.Type() != n.pattern.Type {
		return false
	}
	for _, test := range n.alphaTests {
		v, ok := f.Attr(test.Attr)
		if !ok || !rules.Compare(test.Operator, v, test.Value) {
			return false
		}
	}
	return true
}

// extend joins f onto the parent context. It returns the extended bindings
// and whether every binding and test succeeded.
func (n *node) extend(parent rules.Bindings, id facts.ID, f facts.Fact) (rules.Bindings, bool) {
	b := parent.Copy()
	if n.pattern.FactKey != "" && !unify(b, n.pattern.FactKey, id) {
		return nil, false
	}
	for _, extract := range n.pattern.Extract {
		v, ok := f.Attr(extract.Attr)
		if !ok || !unify(b, extract.Key, v) {
			return nil, false
		}
	}
	for _, test := range n.betaTests {
		v, ok := f.Attr(test.Attr)
		if !ok {
			return nil, false
		}
		operand, ok := b[test.Ref]
		if !ok || !rules.Compare(test.Operator, v, operand) {
			return nil, false
		}
	}
	return b, true
}

// unify binds key to v, or checks v against the existing binding.
func unify(b rules.Bindings, key string, v any) bool {
	if existing, ok := b[key]; ok {
		return rules.Compare(rules.OperatorEqual, existing, v)
	}
	b[key] = v
	return true
}

// parents returns the tokens the node joins against.
func (n *node) parents() []*token {
	if n.index == 0 {
		return []*token{n.chain.root}
	}
	return n.chain.nodes[n.index-1].tokens
}

func (n *node) addAlpha(id facts.ID, f facts.Fact) {
	n.alpha = append(n.alpha, alphaEntry{id: id, fact: f})
}

func (n *node) removeAlpha(id facts.ID) bool {
	for i, e := range n.alpha {
		if e.id == id {
			n.alpha = append(n.alpha[:i], n.alpha[i+1:]...)
			return true
		}
	}
	return false
}

func (n *node) addToken(t *token) {
	n.tokens = append(n.tokens, t)
	n.byFact[t.fact] = append(n.byFact[t.fact], t)
}

func (n *node) dropToken(t *token) {
	n.tokens = removeToken(n.tokens, t)
	rest := removeToken(n.byFact[t.fact], t)
	if len(rest) == 0 {
		delete(n.byFact, t.fact)
	} else {
		n.byFact[t.fact] = rest
	}
}
