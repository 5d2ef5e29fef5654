// internal/rete/network.go

// Package rete implements the incremental pattern matcher. Each rule is
// compiled into a chain of match nodes, one per pattern, joined in
// declaration order. Fact changes propagate through the chains and complete
// matches are reported to a Sink as deltas.
package rete

import (
	"fmt"

	"rgehrsitz/rex/internal/facts"
	"rgehrsitz/rex/internal/rules"
)

// DeltaKind says whether a complete match appeared or disappeared.
type DeltaKind int

const (
	Matched DeltaKind = iota
	Unmatched
)

func (k DeltaKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case Unmatched:
		return "unmatched"
	default:
		return fmt.Sprintf("DeltaKind(%d)", int(k))
	}
}

// Delta reports a complete match of Rule entering or leaving the network.
// Order is the rule's registration order.
type Delta struct {
	Kind     DeltaKind
	Rule     *rules.Rule
	Order    int
	Token    TokenID
	Bindings rules.Bindings
}

// Sink receives deltas in the order the network produces them.
type Sink interface {
	Emit(d Delta)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(d Delta)

func (f SinkFunc) Emit(d Delta) { f(d) }

type chain struct {
	rule  *rules.Rule
	order int
	root  *token
	nodes []*node
}

// Network holds the compiled chains of every registered rule and their
// alpha and token memories.
type Network struct {
	sink      Sink
	chains    []*chain
	byName    map[string]*chain
	byType    map[string][]*node
	holding   map[facts.ID][]*node
	nextToken TokenID
}

// NewNetwork creates an empty network reporting to sink.
func NewNetwork(sink Sink) *Network {
	return &Network{
		sink:    sink,
		byName:  make(map[string]*chain),
		byType:  make(map[string][]*node),
		holding: make(map[facts.ID][]*node),
	}
}

// AddRule compiles rule into a new chain and primes it with the facts
// already in store, so a rule added late sees the same matches as one added
// before the facts. The rule must already be validated.
func (n *Network) AddRule(rule *rules.Rule, store *facts.Store) error {
	if _, exists := n.byName[rule.Name]; exists {
		return fmt.Errorf("rule '%s': %w", rule.Name, rules.ErrDuplicateRuleName)
	}

	c := &chain{
		rule:  rule,
		order: len(n.chains),
		root:  &token{bindings: rules.Bindings{}},
	}
	c.nodes = make([]*node, len(rule.Patterns))
	for i, p := range rule.Patterns {
		c.nodes[i] = newNode(c, i, p)
		n.byType[p.Type] = append(n.byType[p.Type], c.nodes[i])
	}
	n.chains = append(n.chains, c)
	n.byName[rule.Name] = c

	if store != nil {
		store.Each(func(id facts.ID, f facts.Fact) bool {
			n.activate(c.nodes, id, f)
			return true
		})
	}
	return nil
}

// Assert propagates a new fact.
func (n *Network) Assert(id facts.ID, f facts.Fact) {
	n.activate(n.byType[f.Type()], id, f)
}

// Retract removes every trace of the fact: alpha memory entries and every
// token, complete or partial, that includes it.
func (n *Network) Retract(id facts.ID) {
	for _, nd := range n.holding[id] {
		nd.removeAlpha(id)
		for _, t := range append([]*token(nil), nd.byFact[id]...) {
			n.drop(t)
		}
	}
	delete(n.holding, id)
}

// Modify is a retract of the old value followed by an assert of the new one
// under the same ID.
func (n *Network) Modify(id facts.ID, f facts.Fact) {
	n.Retract(id)
	n.Assert(id, f)
}

// activate right-activates nodes with the fact. nodes must be ordered by
// chain and index so that a fact matching several patterns of one rule
// produces every combination exactly once.
func (n *Network) activate(nodes []*node, id facts.ID, f facts.Fact) {
	for _, nd := range nodes {
		if !nd.alphaMatch(f) {
			continue
		}
		nd.addAlpha(id, f)
		n.holding[id] = append(n.holding[id], nd)
		for _, parent := range append([]*token(nil), nd.parents()...) {
			n.join(nd, parent, id, f)
		}
	}
}

// join tries to extend parent with the fact at nd and, on success, pushes
// the new token down the chain.
func (n *Network) join(nd *node, parent *token, id facts.ID, f facts.Fact) {
	b, ok := nd.extend(parent.bindings, id, f)
	if !ok {
		return
	}

	n.nextToken++
	t := &token{
		id:       n.nextToken,
		parent:   parent,
		node:     nd,
		fact:     id,
		bindings: b,
	}
	nd.addToken(t)
	parent.addChild(t)

	if nd.last() {
		n.sink.Emit(Delta{Kind: Matched, Rule: nd.chain.rule, Order: nd.chain.order, Token: t.id, Bindings: b})
		return
	}

	next := nd.chain.nodes[nd.index+1]
	for _, e := range append([]alphaEntry(nil), next.alpha...) {
		n.join(next, t, e.id, e.fact)
	}
}

// drop removes t and its descendants.
func (n *Network) drop(t *token) {
	if t.dead {
		return
	}
	t.dead = true
	for _, c := range append([]*token(nil), t.children...) {
		n.drop(c)
	}
	t.children = nil
	t.node.dropToken(t)
	if t.parent != nil && !t.parent.dead {
		t.parent.removeChild(t)
	}
	if t.node.last() {
		n.sink.Emit(Delta{Kind: Unmatched, Rule: t.node.chain.rule, Order: t.node.chain.order, Token: t.id, Bindings: t.bindings})
	}
}

// Match is a complete match currently held by the network.
type Match struct {
	Token    TokenID
	Facts    []facts.ID
	Bindings rules.Bindings
}

// Matches lists the complete matches of the named rule in creation order.
func (n *Network) Matches(ruleName string) []Match {
	c, ok := n.byName[ruleName]
	if !ok {
		return nil
	}
	last := c.nodes[len(c.nodes)-1]
	out := make([]Match, 0, len(last.tokens))
	for _, t := range last.tokens {
		out = append(out, Match{Token: t.id, Facts: t.Facts(), Bindings: t.bindings.Copy()})
	}
	return out
}

// Rules returns the registered rules in registration order.
func (n *Network) Rules() []*rules.Rule {
	out := make([]*rules.Rule, len(n.chains))
	for i, c := range n.chains {
		out[i] = c.rule
	}
	return out
}
