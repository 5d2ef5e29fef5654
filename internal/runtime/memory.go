// internal/runtime/memory.go

package runtime

import (
	"rgehrsitz/rex/internal/facts"
	"rgehrsitz/rex/internal/rules"
)

// workingMemory is what an action sees of the engine. Its changes reach the
// store at once; the resulting agenda changes are flushed after the action.
type workingMemory struct {
	e *Engine
}

var _ rules.WorkingMemory = (*workingMemory)(nil)

func (wm *workingMemory) Assert(f facts.Fact) (facts.ID, error) {
	return wm.e.assert(f)
}

func (wm *workingMemory) Retract(id facts.ID) error {
	return wm.e.retract(id)
}

func (wm *workingMemory) Modify(id facts.ID, changes facts.Changes) error {
	return wm.e.modify(id, changes)
}

func (wm *workingMemory) ModifyFunc(id facts.ID, fn func(facts.Fact) (facts.Fact, error)) error {
	return wm.e.modifyFunc(id, fn)
}

func (wm *workingMemory) Get(id facts.ID) (facts.Fact, error) {
	return wm.e.store.Get(id)
}
