// internal/facts/store.go

package facts

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownFact   = errors.New("unknown fact")
	ErrMalformedFact = errors.New("malformed fact")
)

// Store holds the asserted facts keyed by ID. Facts implementing Cloner are
// copied on the way in and out, so callers never hold the stored value. It is
// not safe for concurrent use; the engine serializes access.
type Store struct {
	facts  map[ID]Fact
	nextID ID
}

// NewStore creates an empty fact store.
func NewStore() *Store {
	return &Store{
		facts: make(map[ID]Fact),
	}
}

// Assert adds f and returns its fresh ID.
func (s *Store) Assert(f Fact) (ID, error) {
	if err := validate(f); err != nil {
		return 0, err
	}
	s.nextID++
	s.facts[s.nextID] = own(f)
	return s.nextID, nil
}

// Retract removes the fact and returns the value it held.
func (s *Store) Retract(id ID) (Fact, error) {
	f, ok := s.facts[id]
	if !ok {
		return nil, fmt.Errorf("retract fact %d: %w", id, ErrUnknownFact)
	}
	delete(s.facts, id)
	return f, nil
}

// Replace swaps the value held under id, keeping the identity. It returns
// the previous value.
func (s *Store) Replace(id ID, f Fact) (Fact, error) {
	old, ok := s.facts[id]
	if !ok {
		return nil, fmt.Errorf("modify fact %d: %w", id, ErrUnknownFact)
	}
	if err := validate(f); err != nil {
		return nil, fmt.Errorf("modify fact %d: %w", id, err)
	}
	s.facts[id] = own(f)
	return old, nil
}

// Get returns the current value of the fact.
func (s *Store) Get(id ID) (Fact, error) {
	f, ok := s.facts[id]
	if !ok {
		return nil, fmt.Errorf("get fact %d: %w", id, ErrUnknownFact)
	}
	return own(f), nil
}

// Len returns the number of facts held.
func (s *Store) Len() int {
	return len(s.facts)
}

// IDs returns the IDs of all held facts in ascending order, which is also
// assertion order.
func (s *Store) IDs() []ID {
	ids := make([]ID, 0, len(s.facts))
	for id := range s.facts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Each calls fn for every fact in assertion order until fn returns false.
func (s *Store) Each(fn func(ID, Fact) bool) {
	for _, id := range s.IDs() {
		if !fn(id, own(s.facts[id])) {
			return
		}
	}
}
