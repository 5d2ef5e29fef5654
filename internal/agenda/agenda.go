// internal/agenda/agenda.go

// Package agenda orders the activations waiting to fire.
//
// Conflict resolution: higher rule priority first; among equal priorities
// the activation produced by the most recent fact change first; then the
// rule registered first; then the activation scheduled first.
package agenda

import (
	"container/heap"
	"crypto/sha256"
	"fmt"
	"sort"

	"rgehrsitz/rex/internal/rules"
)

// Support identifies one derivation of an activation, normally the ID of the
// complete match token that produced it.
type Support uint64

// Activation is a rule matched for one binding context.
type Activation struct {
	Rule     *rules.Rule
	Bindings rules.Bindings
	// Order is the registration order of the rule.
	Order int
	// Stamp is the recency of the fact change that produced the activation.
	Stamp uint64

	Key string
	seq uint64

	support map[Support]struct{}
	index   int
}

// Key returns the identity of an activation: the rule name and the
// canonical form of its bindings, hashed.
func Key(ruleName string, b rules.Bindings) string {
	hash := sha256.Sum256([]byte(ruleName + "\x00" + b.Canonical()))
	return fmt.Sprintf("%x", hash)
}

// Agenda holds at most one activation per (rule, bindings).
type Agenda struct {
	queue activationQueue
	byKey map[string]*Activation
	seq   uint64
}

// New creates an empty agenda.
func New() *Agenda {
	return &Agenda{byKey: make(map[string]*Activation)}
}

// Schedule adds an activation derived by support. If an activation with the
// same rule and bindings is already pending the support is recorded on it
// and Schedule reports false.
func (a *Agenda) Schedule(act Activation, support Support) bool {
	key := Key(act.Rule.Name, act.Bindings)
	if existing, ok := a.byKey[key]; ok {
		existing.support[support] = struct{}{}
		return false
	}

	a.seq++
	pending := &Activation{
		Rule:     act.Rule,
		Bindings: act.Bindings,
		Order:    act.Order,
		Stamp:    act.Stamp,
		Key:      key,
		seq:      a.seq,
		support:  map[Support]struct{}{support: {}},
	}
	a.byKey[key] = pending
	heap.Push(&a.queue, pending)
	return true
}

// Unschedule withdraws support from the pending activation of rule with
// exactly these bindings. The activation is removed once nothing supports
// it; Unschedule reports whether that happened.
func (a *Agenda) Unschedule(ruleName string, b rules.Bindings, support Support) bool {
	key := Key(ruleName, b)
	existing, ok := a.byKey[key]
	if !ok {
		return false
	}
	delete(existing.support, support)
	if len(existing.support) > 0 {
		return false
	}
	delete(a.byKey, key)
	heap.Remove(&a.queue, existing.index)
	return true
}

// Next pops the activation to fire next.
func (a *Agenda) Next() (Activation, bool) {
	if a.queue.Len() == 0 {
		return Activation{}, false
	}
	act := heap.Pop(&a.queue).(*Activation)
	delete(a.byKey, act.Key)
	return act.public(), true
}

// Peek returns the activation Next would return without removing it.
func (a *Agenda) Peek() (Activation, bool) {
	if a.queue.Len() == 0 {
		return Activation{}, false
	}
	return a.queue[0].public(), true
}

// Len returns the number of pending activations.
func (a *Agenda) Len() int {
	return a.queue.Len()
}

// Pending returns the pending activations in firing order.
func (a *Agenda) Pending() []Activation {
	sorted := make([]*Activation, len(a.queue))
	copy(sorted, a.queue)
	sort.Slice(sorted, func(i, j int) bool { return before(sorted[i], sorted[j]) })

	out := make([]Activation, len(sorted))
	for i, act := range sorted {
		out[i] = act.public()
	}
	return out
}

// Supports returns how many derivations back the pending activation with
// this key, or 0 if none is pending.
func (a *Agenda) Supports(key string) int {
	if act, ok := a.byKey[key]; ok {
		return len(act.support)
	}
	return 0
}

func (act *Activation) public() Activation {
	return Activation{
		Rule:     act.Rule,
		Bindings: act.Bindings.Copy(),
		Order:    act.Order,
		Stamp:    act.Stamp,
		Key:      act.Key,
		seq:      act.seq,
		index:    -1,
	}
}

func before(x, y *Activation) bool {
	if x.Rule.Priority != y.Rule.Priority {
		return x.Rule.Priority > y.Rule.Priority
	}
	if x.Stamp != y.Stamp {
		return x.Stamp > y.Stamp
	}
	if x.Order != y.Order {
		return x.Order < y.Order
	}
	return x.seq < y.seq
}

type activationQueue []*Activation

func (q activationQueue) Len() int           { return len(q) }
func (q activationQueue) Less(i, j int) bool { return before(q[i], q[j]) }

func (q activationQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *activationQueue) Push(x any) {
	act := x.(*Activation)
	act.index = len(*q)
	*q = append(*q, act)
}

func (q *activationQueue) Pop() any {
	old := *q
	n := len(old)
	act := old[n-1]
	old[n-1] = nil
	act.index = -1
	*q = old[:n-1]
	return act
}
