// internal/runtime/runtime.go

// Package runtime drives the fire loop: fact changes go to the store and the
// matcher, matcher deltas update the agenda, and the best activation on the
// agenda fires until none is left.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rgehrsitz/rex/internal/agenda"
	"rgehrsitz/rex/internal/config"
	"rgehrsitz/rex/internal/facts"
	"rgehrsitz/rex/internal/rete"
	"rgehrsitz/rex/internal/rules"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the fire loop state.
type State int

const (
	Idle State = iota
	Firing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Firing:
		return "firing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Fired is the outcome of one fired activation. Err holds the action
// failure, if any.
type Fired struct {
	Rule     string
	Bindings rules.Bindings
	Err      error
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the runtime settings.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger used for engine events and action failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRegisterer registers the engine metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registerer = reg }
}

type pendingDelta struct {
	rete.Delta
	stamp uint64
}

// Engine bundles the fact store, the compiled rules and the agenda.
//
// All public methods are serialized by one mutex covering the store and the
// agenda together. Actions receive a WorkingMemory that works under the lock
// already held by the fire loop; calling Engine methods from inside an
// action deadlocks.
type Engine struct {
	mu sync.Mutex

	cfg        config.Config
	logger     zerolog.Logger
	registerer prometheus.Registerer
	metrics    *engineMetrics

	store   *facts.Store
	network *rete.Network
	agenda  *agenda.Agenda

	pending  []pendingDelta
	stamp    uint64
	inAction bool
	state    atomic.Int32
}

// New creates an engine with no rules and no facts.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    config.Default(),
		logger: log.Logger,
		store:  facts.NewStore(),
		agenda: agenda.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	metrics, err := newEngineMetrics(e.registerer, e.cfg.Metrics.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	e.metrics = metrics
	e.network = rete.NewNetwork(rete.SinkFunc(e.collect))
	return e, nil
}

// DefineRule validates rule, compiles it into the network and primes it
// with the facts already asserted. The engine keeps its own copy.
func (e *Engine) DefineRule(rule *rules.Rule) error {
	if err := rules.ValidateRule(rule); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	compiled := rule.Clone()
	e.stamp++
	if err := e.network.AddRule(compiled, e.store); err != nil {
		return err
	}
	e.logger.Debug().Str("rule", compiled.Name).Int("priority", compiled.Priority).Int("patterns", len(compiled.Patterns)).Msg("Rule defined")
	e.flush()
	return nil
}

// Assert adds a fact and returns its ID.
func (e *Engine) Assert(f facts.Fact) (facts.ID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.assert(f)
	e.flush()
	return id, err
}

// Retract removes a fact and every activation that depended on it.
func (e *Engine) Retract(id facts.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.retract(id)
	e.flush()
	return err
}

// Modify applies attribute changes to a fact, keeping its ID. The fact must
// implement facts.Updatable.
func (e *Engine) Modify(id facts.ID, changes facts.Changes) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.modify(id, changes)
	e.flush()
	return err
}

// ModifyFunc replaces a fact with the value returned by fn, keeping its ID.
func (e *Engine) ModifyFunc(id facts.ID, fn func(facts.Fact) (facts.Fact, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.modifyFunc(id, fn)
	e.flush()
	return err
}

// Get returns the current value of a fact.
func (e *Engine) Get(id facts.ID) (facts.Fact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.Get(id)
}

// Facts returns a snapshot of the fact base.
func (e *Engine) Facts() map[facts.ID]facts.Fact {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[facts.ID]facts.Fact, e.store.Len())
	e.store.Each(func(id facts.ID, f facts.Fact) bool {
		out[id] = f
		return true
	})
	return out
}

// Agenda returns the pending activations in firing order.
func (e *Engine) Agenda() []agenda.Activation {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.agenda.Pending()
}

// State reports Firing while an action runs and Idle otherwise. It does not
// take the engine lock.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Step fires at most one activation. It returns nil when the agenda is
// empty. A failed action is reported in Fired.Err and, with HaltOnError,
// also returned as the error.
func (e *Engine) Step() (*Fired, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.step()
}

// Run fires activations until the agenda is empty and returns how many
// fired.
func (e *Engine) Run() (int, error) {
	return e.RunContext(context.Background())
}

// RunContext is Run with cancellation checked between firings.
func (e *Engine) RunContext(ctx context.Context) (int, error) {
	fired := 0
	for {
		if err := ctx.Err(); err != nil {
			return fired, err
		}

		e.mu.Lock()
		if e.cfg.MaxFirings > 0 && fired >= e.cfg.MaxFirings && e.agenda.Len() > 0 {
			e.mu.Unlock()
			e.logger.Warn().Int("fired", fired).Msg("Run stopped at the firing limit")
			return fired, fmt.Errorf("%w: %d", ErrMaxFirings, e.cfg.MaxFirings)
		}
		firing, err := e.step()
		e.mu.Unlock()

		if firing == nil {
			return fired, nil
		}
		fired++
		if err != nil {
			return fired, err
		}
	}
}

func (e *Engine) step() (*Fired, error) {
	act, ok := e.agenda.Next()
	if !ok {
		return nil, nil
	}

	e.state.Store(int32(Firing))
	err := e.fire(act)
	e.state.Store(int32(Idle))
	e.flush()

	firing := &Fired{Rule: act.Rule.Name, Bindings: act.Bindings, Err: err}
	if err != nil && e.cfg.HaltOnError {
		return firing, err
	}
	return firing, nil
}

// fire runs the action of act. Matcher deltas produced by the action stay
// pending until the caller flushes.
func (e *Engine) fire(act agenda.Activation) (err error) {
	name := act.Rule.Name
	e.logger.Info().Str("rule", name).Interface("bindings", act.Bindings).Msg("Firing rule")

	start := time.Now()
	e.inAction = true
	defer func() {
		e.inAction = false
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			err = &ActionError{Rule: name, Cause: cause, Panicked: true}
		}
		e.metrics.recordFiring(name, time.Since(start), err != nil)
		if err != nil {
			e.logger.Error().Err(err).Str("rule", name).Interface("bindings", act.Bindings).Msg("Rule action failed")
		}
	}()

	if actErr := act.Rule.Action(act.Bindings, &workingMemory{e: e}); actErr != nil {
		return &ActionError{Rule: name, Cause: actErr}
	}
	return nil
}

func (e *Engine) assert(f facts.Fact) (facts.ID, error) {
	id, err := e.store.Assert(f)
	if err != nil {
		return 0, err
	}
	// The network matches the store's copy, not the caller's value.
	owned, err := e.store.Get(id)
	if err != nil {
		return 0, err
	}
	e.stamp++
	e.network.Assert(id, owned)
	e.logger.Debug().Uint64("fact", uint64(id)).Str("type", owned.Type()).Msg("Fact asserted")
	return id, nil
}

func (e *Engine) retract(id facts.ID) error {
	if _, err := e.store.Retract(id); err != nil {
		return err
	}
	e.stamp++
	e.network.Retract(id)
	e.logger.Debug().Uint64("fact", uint64(id)).Msg("Fact retracted")
	return nil
}

func (e *Engine) modify(id facts.ID, changes facts.Changes) error {
	return e.modifyFunc(id, func(cur facts.Fact) (facts.Fact, error) {
		u, ok := cur.(facts.Updatable)
		if !ok {
			return nil, fmt.Errorf("modify fact %d of type %s: %w", id, cur.Type(), ErrNotUpdatable)
		}
		return u.Update(changes)
	})
}

func (e *Engine) modifyFunc(id facts.ID, fn func(facts.Fact) (facts.Fact, error)) error {
	cur, err := e.store.Get(id)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if _, err := e.store.Replace(id, next); err != nil {
		return err
	}
	owned, err := e.store.Get(id)
	if err != nil {
		return err
	}
	e.stamp++
	e.network.Modify(id, owned)
	e.logger.Debug().Uint64("fact", uint64(id)).Str("type", owned.Type()).Msg("Fact modified")
	return nil
}

// collect is the network sink. Deltas are stamped with the change that
// produced them and applied by flush.
func (e *Engine) collect(d rete.Delta) {
	e.pending = append(e.pending, pendingDelta{Delta: d, stamp: e.stamp})
}

// flush applies pending deltas to the agenda. Inside an action it does
// nothing, so the agenda only sees the action's changes once it returns.
func (e *Engine) flush() {
	if e.inAction {
		return
	}
	for _, d := range e.pending {
		switch d.Kind {
		case rete.Matched:
			act := agenda.Activation{Rule: d.Rule, Bindings: d.Bindings, Order: d.Order, Stamp: d.stamp}
			if e.agenda.Schedule(act, agenda.Support(d.Token)) {
				e.metrics.recordScheduled(d.Rule.Name)
				e.logger.Debug().Str("rule", d.Rule.Name).Interface("bindings", d.Bindings).Msg("Activation scheduled")
			}
		case rete.Unmatched:
			if e.agenda.Unschedule(d.Rule.Name, d.Bindings, agenda.Support(d.Token)) {
				e.logger.Debug().Str("rule", d.Rule.Name).Interface("bindings", d.Bindings).Msg("Activation removed")
			}
		}
	}
	e.pending = e.pending[:0]
	e.metrics.setSizes(e.store.Len(), e.agenda.Len())
}
