// internal/alarm/alarm.go

// Package alarm is the alarm-room rule set: a pushed button rings the bell,
// a released button silences it. The ring state lives in working memory as a
// Ring fact so rules can match on it.
package alarm

import (
	"errors"
	"fmt"
	"time"

	"rgehrsitz/rex/internal/facts"
	"rgehrsitz/rex/internal/rules"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Rule names.
const (
	ButtonPushRule    = "buttonPush"
	ButtonReleaseRule = "buttonRelease"
)

// Engine is the part of the rule engine the alarm needs.
type Engine interface {
	DefineRule(rule *rules.Rule) error
	Assert(f facts.Fact) (facts.ID, error)
	Modify(id facts.ID, changes facts.Changes) error
	Get(id facts.ID) (facts.Fact, error)
}

// Bell is the device driven by the rules.
type Bell interface {
	StartRinging(button string) error
	StopRinging(button string) error
}

type nopBell struct{}

func (nopBell) StartRinging(string) error { return nil }
func (nopBell) StopRinging(string) error  { return nil }

// Option configures a System.
type Option func(*System)

// WithBell sets the bell the rules drive.
func WithBell(b Bell) Option {
	return func(s *System) { s.bell = b }
}

// WithLogger sets the logger used by the rule actions.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *System) { s.logger = logger }
}

// WithClock sets the time source for the handled_at log field.
func WithClock(now func() time.Time) Option {
	return func(s *System) { s.now = now }
}

// System is an alarm rule set installed in an engine.
type System struct {
	engine Engine
	bell   Bell
	logger zerolog.Logger
	now    func() time.Time
	ring   facts.ID
}

// Install defines the alarm rules in e and asserts a silent Ring.
func Install(e Engine, opts ...Option) (*System, error) {
	s := &System{
		engine: e,
		bell:   nopBell{},
		logger: log.Logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, rule := range s.Rules() {
		if err := e.DefineRule(rule); err != nil {
			return nil, fmt.Errorf("failed to define rule %s: %w", rule.Name, err)
		}
	}

	id, err := e.Assert(Ring{})
	if err != nil {
		return nil, fmt.Errorf("failed to assert ring state: %w", err)
	}
	s.ring = id
	return s, nil
}

// Rules returns the alarm rules bound to this system's bell and logger.
func (s *System) Rules() []*rules.Rule {
	return []*rules.Rule{
		{
			Name: ButtonPushRule,
			Patterns: []rules.Pattern{
				rules.Match(ButtonType).As("button").Bind("name", "button_name").Where("status", rules.OperatorEqual, Pushed),
				rules.Match(RingType).As("ring").Where("ringing", rules.OperatorEqual, false),
			},
			Action: s.buttonPush,
		},
		{
			Name: ButtonReleaseRule,
			Patterns: []rules.Pattern{
				rules.Match(ButtonType).As("button").Where("status", rules.OperatorEqual, Released),
				rules.Match(RingType).As("ring").Where("ringing", rules.OperatorEqual, true),
			},
			Action: s.buttonRelease,
		},
	}
}

// RingID is the handle of the Ring fact.
func (s *System) RingID() facts.ID {
	return s.ring
}

// Ringing reports the current ring state.
func (s *System) Ringing() (bool, error) {
	f, err := s.engine.Get(s.ring)
	if err != nil {
		return false, err
	}
	ring, ok := f.(Ring)
	if !ok {
		return false, fmt.Errorf("fact %d is a %s, not a ring", s.ring, f.Type())
	}
	return ring.Ringing, nil
}

func (s *System) buttonPush(b rules.Bindings, wm rules.WorkingMemory) error {
	name, _ := b.String("button_name")
	s.logger.Info().Str("button", name).Time("handled_at", s.now()).Msg("Button push handled")

	if err := s.bell.StartRinging(name); err != nil {
		return err
	}
	return setRinging(b, wm, true)
}

func (s *System) buttonRelease(b rules.Bindings, wm rules.WorkingMemory) error {
	id, _ := b.FactID("button")
	f, err := wm.Get(id)
	if err != nil {
		return err
	}
	name, _ := f.Attr("name")
	s.logger.Info().Interface("button", name).Time("handled_at", s.now()).Msg("Button release handled")

	if err := s.bell.StopRinging(fmt.Sprint(name)); err != nil {
		return err
	}
	return setRinging(b, wm, false)
}

func setRinging(b rules.Bindings, wm rules.WorkingMemory, ringing bool) error {
	ring, ok := b.FactID("ring")
	if !ok {
		return errors.New("ring handle missing from bindings")
	}
	return wm.Modify(ring, facts.Changes{"ringing": ringing})
}
