// internal/alarm/facts.go

package alarm

import (
	"fmt"

	"rgehrsitz/rex/internal/facts"
)

// Fact types used by the alarm rules.
const (
	ButtonType = "Button"
	RingType   = "Ring"
)

// Status is the position of a button.
type Status string

const (
	Pushed   Status = "pushed"
	Released Status = "released"
)

// ParseStatus accepts "push"/"pushed" and "release"/"released".
func ParseStatus(s string) (Status, error) {
	switch s {
	case "push", string(Pushed):
		return Pushed, nil
	case "release", string(Released):
		return Released, nil
	default:
		return "", fmt.Errorf("unknown button event '%s'", s)
	}
}

// Button is the state of a named alarm button.
type Button struct {
	Name   string
	Status Status
}

func (b Button) Type() string { return ButtonType }

func (b Button) Attr(name string) (any, bool) {
	switch name {
	case "name":
		return b.Name, true
	case "status":
		return b.Status, true
	default:
		return nil, false
	}
}

// Update accepts "name" and "status" changes. Status may be given as a
// Status or a plain string.
func (b Button) Update(changes facts.Changes) (facts.Fact, error) {
	for k, v := range changes {
		switch k {
		case "name":
			name, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: button name must be a string, got %T", facts.ErrMalformedFact, v)
			}
			b.Name = name
		case "status":
			switch s := v.(type) {
			case Status:
				b.Status = s
			case string:
				status, err := ParseStatus(s)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", facts.ErrMalformedFact, err)
				}
				b.Status = status
			default:
				return nil, fmt.Errorf("%w: button status must be a string, got %T", facts.ErrMalformedFact, v)
			}
		default:
			return nil, fmt.Errorf("%w: button has no attribute '%s'", facts.ErrMalformedFact, k)
		}
	}
	return b, nil
}

func (b Button) String() string {
	return fmt.Sprintf("Button{name: %s, status: %s}", b.Name, b.Status)
}

// Ring is the bell state. There is one Ring fact per installed rule set.
type Ring struct {
	Ringing bool
}

func (r Ring) Type() string { return RingType }

func (r Ring) Attr(name string) (any, bool) {
	if name == "ringing" {
		return r.Ringing, true
	}
	return nil, false
}

func (r Ring) Update(changes facts.Changes) (facts.Fact, error) {
	for k, v := range changes {
		if k != "ringing" {
			return nil, fmt.Errorf("%w: ring has no attribute '%s'", facts.ErrMalformedFact, k)
		}
		ringing, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: ringing must be a bool, got %T", facts.ErrMalformedFact, v)
		}
		r.Ringing = ringing
	}
	return r, nil
}

func (r Ring) String() string {
	return fmt.Sprintf("Ring{ringing: %t}", r.Ringing)
}
