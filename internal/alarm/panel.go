// internal/alarm/panel.go

package alarm

import (
	"fmt"

	"rgehrsitz/rex/internal/facts"
)

// Panel owns the Button fact of one physical button and tells the engine
// about every transition.
type Panel struct {
	engine Engine
	id     facts.ID
	button Button
}

// NewPanel asserts a released button called name.
func NewPanel(e Engine, name string) (*Panel, error) {
	button := Button{Name: name, Status: Released}
	id, err := e.Assert(button)
	if err != nil {
		return nil, fmt.Errorf("failed to assert button %s: %w", name, err)
	}
	return &Panel{engine: e, id: id, button: button}, nil
}

// ID is the handle of the panel's Button fact.
func (p *Panel) ID() facts.ID { return p.id }

// Status is the last status reported to the engine.
func (p *Panel) Status() Status { return p.button.Status }

func (p *Panel) Push() error { return p.Set(Pushed) }

func (p *Panel) Release() error { return p.Set(Released) }

// Set reports a new button status.
func (p *Panel) Set(status Status) error {
	if err := p.engine.Modify(p.id, facts.Changes{"status": status}); err != nil {
		return fmt.Errorf("failed to update button %s: %w", p.button.Name, err)
	}
	p.button.Status = status
	return nil
}
