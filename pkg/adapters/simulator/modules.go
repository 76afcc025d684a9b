package simulator

import (
	"context"
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
)

// ModuleState is a snapshot of a simulated module.
type ModuleState struct {
	Kind           domain.ModuleKind
	Temperature    float64
	LidTemperature float64
	MagnetHeight   float64
	LidOpen        bool
}

// Module returns the state of a connected module.
func (s *Simulator) Module(id string) (ModuleState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[id]
	if !ok {
		return ModuleState{}, false
	}
	return ModuleState{
		Kind:           m.kind,
		Temperature:    m.temperature,
		LidTemperature: m.lidTemperature,
		MagnetHeight:   m.magnetHeight,
		LidOpen:        m.lidOpen,
	}, true
}

func (s *Simulator) module(id string) (*moduleState, error) {
	m, ok := s.modules[id]
	if !ok {
		return nil, fmt.Errorf("%w: module %q is not connected", domain.ErrHardwareFault, id)
	}
	return m, nil
}

func (s *Simulator) ConnectModule(ctx context.Context, id string, kind domain.ModuleKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("connect_module", "", id, kind); err != nil {
		return err
	}
	s.modules[id] = &moduleState{kind: kind}
	return nil
}

func (s *Simulator) SetTemperature(ctx context.Context, id string, celsius float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("set_temperature", "", id, celsius); err != nil {
		return err
	}
	m, err := s.module(id)
	if err != nil {
		return err
	}
	m.temperature = celsius
	return nil
}

func (s *Simulator) SetLidTemperature(ctx context.Context, id string, celsius float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("set_lid_temperature", "", id, celsius); err != nil {
		return err
	}
	m, err := s.module(id)
	if err != nil {
		return err
	}
	m.lidTemperature = celsius
	return nil
}

func (s *Simulator) DeactivateModule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("deactivate_module", "", id); err != nil {
		return err
	}
	m, err := s.module(id)
	if err != nil {
		return err
	}
	m.temperature, m.lidTemperature, m.magnetHeight = 0, 0, 0
	return nil
}

func (s *Simulator) EngageMagnet(ctx context.Context, id string, height float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("engage_magnet", "", id, height); err != nil {
		return err
	}
	m, err := s.module(id)
	if err != nil {
		return err
	}
	m.magnetHeight = height
	return nil
}

func (s *Simulator) DisengageMagnet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("disengage_magnet", "", id); err != nil {
		return err
	}
	m, err := s.module(id)
	if err != nil {
		return err
	}
	m.magnetHeight = 0
	return nil
}

func (s *Simulator) OpenLid(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("open_lid", "", id); err != nil {
		return err
	}
	m, err := s.module(id)
	if err != nil {
		return err
	}
	m.lidOpen = true
	return nil
}

func (s *Simulator) CloseLid(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("close_lid", "", id); err != nil {
		return err
	}
	m, err := s.module(id)
	if err != nil {
		return err
	}
	m.lidOpen = false
	return nil
}
