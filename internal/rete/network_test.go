package rete

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"rgehrsitz/rex/internal/facts"
	"rgehrsitz/rex/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(rules.Bindings, rules.WorkingMemory) error { return nil }

type recorder struct {
	deltas []Delta
	live   map[TokenID]Delta
}

func newRecorder() *recorder {
	return &recorder{live: make(map[TokenID]Delta)}
}

func (r *recorder) Emit(d Delta) {
	r.deltas = append(r.deltas, d)
	switch d.Kind {
	case Matched:
		r.live[d.Token] = d
	case Unmatched:
		delete(r.live, d.Token)
	}
}

func (r *recorder) reset() { r.deltas = nil }

type fixture struct {
	t     *testing.T
	store *facts.Store
	net   *Network
	rec   *recorder
}

func newFixture(t *testing.T, rs ...*rules.Rule) *fixture {
	f := &fixture{t: t, store: facts.NewStore(), rec: newRecorder()}
	f.net = NewNetwork(f.rec)
	for _, r := range rs {
		require.NoError(t, rules.ValidateRule(r))
		require.NoError(t, f.net.AddRule(r, f.store))
	}
	return f
}

func (f *fixture) assert(fact facts.Fact) facts.ID {
	id, err := f.store.Assert(fact)
	require.NoError(f.t, err)
	f.net.Assert(id, fact)
	return id
}

func (f *fixture) retract(id facts.ID) {
	_, err := f.store.Retract(id)
	require.NoError(f.t, err)
	f.net.Retract(id)
}

func (f *fixture) modify(id facts.ID, changes facts.Changes) {
	cur, err := f.store.Get(id)
	require.NoError(f.t, err)
	next, err := cur.(facts.Updatable).Update(changes)
	require.NoError(f.t, err)
	_, err = f.store.Replace(id, next)
	require.NoError(f.t, err)
	f.net.Modify(id, next)
}

func button(name, status string) *facts.Record {
	return facts.NewRecord("Button", map[string]any{"name": name, "status": status})
}

var buttonPush = &rules.Rule{
	Name: "buttonPush",
	Patterns: []rules.Pattern{
		rules.Match("Button").As("button").Bind("name", "button_name").Where("status", rules.OperatorEqual, "pushed"),
	},
	Action: noop,
}

var buttonRelease = &rules.Rule{
	Name: "buttonRelease",
	Patterns: []rules.Pattern{
		rules.Match("Button").As("button").Where("status", rules.OperatorEqual, "released"),
	},
	Action: noop,
}

func TestNetwork_SinglePattern(t *testing.T) {
	f := newFixture(t, buttonPush, buttonRelease)

	id := f.assert(button("alarm", "pushed"))
	require.Len(t, f.rec.deltas, 1)
	d := f.rec.deltas[0]
	assert.Equal(t, Matched, d.Kind)
	assert.Equal(t, "buttonPush", d.Rule.Name)
	assert.Equal(t, rules.Bindings{"button": id, "button_name": "alarm"}, d.Bindings)

	f.rec.reset()
	f.modify(id, facts.Changes{"status": "released"})
	require.Len(t, f.rec.deltas, 2)
	assert.Equal(t, Unmatched, f.rec.deltas[0].Kind)
	assert.Equal(t, "buttonPush", f.rec.deltas[0].Rule.Name)
	assert.Equal(t, Matched, f.rec.deltas[1].Kind)
	assert.Equal(t, "buttonRelease", f.rec.deltas[1].Rule.Name)
	assert.Equal(t, rules.Bindings{"button": id}, f.rec.deltas[1].Bindings)

	f.rec.reset()
	f.retract(id)
	require.Len(t, f.rec.deltas, 1)
	assert.Equal(t, Unmatched, f.rec.deltas[0].Kind)
	assert.Empty(t, f.rec.live)
	assert.Empty(t, f.net.holding)
}

func TestNetwork_JoinOnEarlierBinding(t *testing.T) {
	wired := &rules.Rule{
		Name: "bellForButton",
		Patterns: []rules.Pattern{
			rules.Match("Button").As("button").Bind("name", "button_name").Where("status", rules.OperatorEqual, "pushed"),
			rules.Match("Bell").As("bell").WhereRef("button", rules.OperatorEqual, "button_name"),
		},
		Action: noop,
	}
	f := newFixture(t, wired)

	hall := f.assert(facts.NewRecord("Bell", map[string]any{"button": "hall"}))
	f.assert(facts.NewRecord("Bell", map[string]any{"button": "lab"}))
	assert.Empty(t, f.rec.deltas, "bells alone complete nothing")

	b := f.assert(button("hall", "pushed"))
	require.Len(t, f.rec.live, 1)
	for _, d := range f.rec.live {
		assert.Equal(t, rules.Bindings{"button": b, "button_name": "hall", "bell": hall}, d.Bindings)
	}

	f.retract(hall)
	assert.Empty(t, f.rec.live, "retracting the second fact drops the complete match")

	matches := f.net.Matches("bellForButton")
	assert.Empty(t, matches)
	assert.Len(t, f.net.byName["bellForButton"].nodes[0].tokens, 1, "partial match of the button survives")
}

func TestNetwork_UnificationOnRepeatedKey(t *testing.T) {
	sameName := &rules.Rule{
		Name: "pair",
		Patterns: []rules.Pattern{
			rules.Match("Button").As("a").Bind("name", "name"),
			rules.Match("Bell").As("b").Bind("button", "name"),
		},
		Action: noop,
	}
	f := newFixture(t, sameName)
	f.assert(button("hall", "pushed"))
	f.assert(facts.NewRecord("Bell", map[string]any{"button": "lab"}))
	assert.Empty(t, f.rec.live)

	f.assert(facts.NewRecord("Bell", map[string]any{"button": "hall"}))
	assert.Len(t, f.rec.live, 1)
}

func TestNetwork_SameFactInTwoPatterns(t *testing.T) {
	any2 := &rules.Rule{
		Name: "twoButtons",
		Patterns: []rules.Pattern{
			rules.Match("Button").As("first"),
			rules.Match("Button").As("second"),
		},
		Action: noop,
	}
	f := newFixture(t, any2)

	a := f.assert(button("a", "pushed"))
	assert.Len(t, f.rec.live, 1, "(a, a)")

	b := f.assert(button("b", "pushed"))
	assert.Len(t, f.rec.live, 4, "(a, a) (a, b) (b, a) (b, b)")

	seen := map[string]bool{}
	for _, m := range f.net.Matches("twoButtons") {
		seen[fmt.Sprint(m.Facts)] = true
	}
	assert.Equal(t, map[string]bool{
		fmt.Sprint([]facts.ID{a, a}): true,
		fmt.Sprint([]facts.ID{a, b}): true,
		fmt.Sprint([]facts.ID{b, a}): true,
		fmt.Sprint([]facts.ID{b, b}): true,
	}, seen)

	f.retract(a)
	assert.Len(t, f.rec.live, 1, "(b, b)")
}

func TestNetwork_LateRuleIsPrimed(t *testing.T) {
	f := newFixture(t)
	id := f.assert(button("alarm", "pushed"))
	f.assert(button("other", "released"))

	require.NoError(t, rules.ValidateRule(buttonPush))
	require.NoError(t, f.net.AddRule(buttonPush, f.store))

	require.Len(t, f.rec.live, 1)
	for _, d := range f.rec.live {
		assert.Equal(t, id, d.Bindings["button"])
	}

	err := f.net.AddRule(buttonPush, f.store)
	assert.ErrorIs(t, err, rules.ErrDuplicateRuleName)
}

func TestNetwork_MissingAttributeFailsPattern(t *testing.T) {
	f := newFixture(t, buttonPush)
	f.assert(facts.NewRecord("Button", map[string]any{"status": "pushed"}))
	assert.Empty(t, f.rec.live, "name extraction needs the attribute")
}

func TestNetwork_RulesInRegistrationOrder(t *testing.T) {
	f := newFixture(t, buttonRelease, buttonPush)
	got := f.net.Rules()
	require.Len(t, got, 2)
	assert.Equal(t, "buttonRelease", got[0].Name)
	assert.Equal(t, "buttonPush", got[1].Name)
	assert.Nil(t, f.net.Matches("nope"))
}

type naiveMatch struct {
	rule     string
	tuple    []facts.ID
	bindings rules.Bindings
}

// naiveScan enumerates every fact tuple for every rule, from scratch.
func naiveScan(store *facts.Store, rs []*rules.Rule) []naiveMatch {
	var out []naiveMatch
	ids := store.IDs()
	for _, r := range rs {
		var walk func(level int, b rules.Bindings, tuple []facts.ID)
		walk = func(level int, b rules.Bindings, tuple []facts.ID) {
			if level == len(r.Patterns) {
				out = append(out, naiveMatch{rule: r.Name, tuple: tuple, bindings: b})
				return
			}
			p := r.Patterns[level]
			for _, id := range ids {
				f, _ := store.Get(id)
				if next, ok := naiveExtend(p, b, id, f); ok {
					walk(level+1, next, append(append([]facts.ID(nil), tuple...), id))
				}
			}
		}
		walk(0, rules.Bindings{}, nil)
	}
	return out
}

func naiveExtend(p rules.Pattern, parent rules.Bindings, id facts.ID, f facts.Fact) (rules.Bindings, bool) {
	if f.Type() != p.Type {
		return nil, false
	}
	b := parent.Copy()
	bind := func(k string, v any) bool {
		if old, ok := b[k]; ok {
			return rules.Compare(rules.OperatorEqual, old, v)
		}
		b[k] = v
		return true
	}
	if p.FactKey != "" && !bind(p.FactKey, id) {
		return nil, false
	}
	for _, e := range p.Extract {
		v, ok := f.Attr(e.Attr)
		if !ok || !bind(e.Key, v) {
			return nil, false
		}
	}
	for _, test := range p.Tests {
		v, ok := f.Attr(test.Attr)
		if !ok {
			return nil, false
		}
		operand := test.Value
		if test.Ref != "" {
			operand = b[test.Ref]
		}
		if !rules.Compare(test.Operator, v, operand) {
			return nil, false
		}
	}
	return b, true
}

func matchKey(rule string, tuple []facts.ID, b rules.Bindings) string {
	return fmt.Sprintf("%s %v %s", rule, tuple, b.Canonical())
}

func naiveMatches(store *facts.Store, rs []*rules.Rule) []string {
	var out []string
	for _, m := range naiveScan(store, rs) {
		out = append(out, matchKey(m.rule, m.tuple, m.bindings))
	}
	sort.Strings(out)
	return out
}

func naiveDeltas(store *facts.Store, rs []*rules.Rule) []string {
	var out []string
	for _, m := range naiveScan(store, rs) {
		out = append(out, m.rule+" "+m.bindings.Canonical())
	}
	sort.Strings(out)
	return out
}

func liveMatches(net *Network) []string {
	var out []string
	for _, r := range net.Rules() {
		for _, m := range net.Matches(r.Name) {
			out = append(out, matchKey(r.Name, m.Facts, m.Bindings))
		}
	}
	sort.Strings(out)
	return out
}

func liveDeltas(rec *recorder) []string {
	var out []string
	for _, d := range rec.live {
		out = append(out, d.Rule.Name+" "+d.Bindings.Canonical())
	}
	sort.Strings(out)
	return out
}

func TestNetwork_IncrementalEqualsNaiveRescan(t *testing.T) {
	ruleSet := []*rules.Rule{
		buttonPush,
		buttonRelease,
		{
			Name: "wired",
			Patterns: []rules.Pattern{
				rules.Match("Button").As("button").Bind("name", "n"),
				rules.Match("Bell").As("bell").WhereRef("button", rules.OperatorEqual, "n"),
				rules.Match("Ring").Where("level", rules.OperatorGreaterThan, 2),
			},
			Action: noop,
		},
		{
			Name: "samePair",
			Patterns: []rules.Pattern{
				rules.Match("Button").Bind("status", "s"),
				rules.Match("Button").Bind("status", "s"),
			},
			Action: noop,
		},
	}
	f := newFixture(t, ruleSet...)

	names := []string{"hall", "lab", "door"}
	statuses := []string{"pushed", "released"}
	rnd := rand.New(rand.NewSource(7))

	var live []facts.ID
	for step := 0; step < 400; step++ {
		switch op := rnd.Intn(10); {
		case op < 4 || len(live) == 0:
			var fact facts.Fact
			switch rnd.Intn(3) {
			case 0:
				fact = button(names[rnd.Intn(3)], statuses[rnd.Intn(2)])
			case 1:
				fact = facts.NewRecord("Bell", map[string]any{"button": names[rnd.Intn(3)]})
			default:
				fact = facts.NewRecord("Ring", map[string]any{"level": rnd.Intn(5)})
			}
			live = append(live, f.assert(fact))
		case op < 7:
			i := rnd.Intn(len(live))
			f.retract(live[i])
			live = append(live[:i], live[i+1:]...)
		default:
			id := live[rnd.Intn(len(live))]
			cur, _ := f.store.Get(id)
			switch cur.Type() {
			case "Button":
				f.modify(id, facts.Changes{"status": statuses[rnd.Intn(2)], "name": names[rnd.Intn(3)]})
			case "Bell":
				f.modify(id, facts.Changes{"button": names[rnd.Intn(3)]})
			default:
				f.modify(id, facts.Changes{"level": rnd.Intn(5)})
			}
		}

		require.Equal(t, naiveMatches(f.store, ruleSet), liveMatches(f.net), "step %d", step)
		require.Equal(t, naiveDeltas(f.store, ruleSet), liveDeltas(f.rec), "step %d", step)
	}
}
