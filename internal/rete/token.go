// internal/rete/token.go

package rete

import (
	"rgehrsitz/rex/internal/facts"
	"rgehrsitz/rex/internal/rules"
)

// TokenID identifies a partial or complete match. Complete tokens are the
// support of agenda activations.
type TokenID uint64

// token is one link of the fact combination chain built while joining. The
// root token of each rule has no node and no fact.
type token struct {
	id       TokenID
	parent   *token
	node     *node
	fact     facts.ID
	bindings rules.Bindings
	children []*token
	dead     bool
}

func (t *token) addChild(c *token) {
	t.children = append(t.children, c)
}

func (t *token) removeChild(c *token) {
	t.children = removeToken(t.children, c)
}

// Facts returns the fact IDs of the chain in pattern order.
func (t *token) Facts() []facts.ID {
	var ids []facts.ID
	for cur := t; cur != nil && cur.node != nil; cur = cur.parent {
		ids = append(ids, cur.fact)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

func removeToken(list []*token, t *token) []*token {
	for i, cur := range list {
		if cur == t {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
