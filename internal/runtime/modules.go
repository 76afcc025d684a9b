package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/aliquot/pkg/deck"
	"github.com/aretw0/aliquot/pkg/domain"
)

// Module is a temperature, magnetic or thermocycler module on the deck.
type Module struct {
	session *Session
	id      string
	slot    string
	kind    domain.ModuleKind
}

func (m *Module) ID() string { return m.id }
func (m *Module) Slot() string { return m.slot }
func (m *Module) Kind() domain.ModuleKind { return m.kind }

// LoadModule connects a module in slot. An empty id defaults to "<kind>-<slot>".
func (s *Session) LoadModule(ctx context.Context, kind domain.ModuleKind, slot, id string) (*Module, error) {
	if s.modules == nil {
		return nil, fmt.Errorf("%w: session has no module controller", domain.ErrInvalidArgument)
	}
	if _, err := deck.SlotOrigin(slot); err != nil {
		return nil, err
	}
	if id == "" {
		id = fmt.Sprintf("%s-%s", kind, slot)
	}
	if _, dup := s.loaded[id]; dup {
		return nil, fmt.Errorf("%w: module id %q is already loaded", domain.ErrInvalidArgument, id)
	}
	for _, m := range s.loaded {
		if m.slot == slot {
			return nil, fmt.Errorf("%w: slot %s already holds module %s", domain.ErrInvalidArgument, slot, m.id)
		}
	}

	m := &Module{session: s, id: id, slot: slot, kind: kind}
	if !m.supports("connect") {
		return nil, fmt.Errorf("%w: unknown module kind %s", domain.ErrInvalidArgument, kind)
	}
	err := s.run(ctx, "load_module", "", map[string]any{"id": id, "kind": kind.String(), "slot": slot}, func() error {
		return s.modules.ConnectModule(ctx, id, kind)
	})
	if err != nil {
		return nil, err
	}
	s.loaded[id] = m
	s.logger.Debug("module loaded", "id", id, "kind", kind.String(), "slot", slot)
	return m, nil
}

// Module returns a loaded module by ID.
func (s *Session) Module(id string) (*Module, error) {
	m, ok := s.loaded[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrModuleNotFound, id)
	}
	return m, nil
}

// Modules returns every loaded module ordered by ID.
func (s *Session) Modules() []*Module {
	out := make([]*Module, 0, len(s.loaded))
	for _, m := range s.loaded {
		out = append(out, m)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

// supports reports whether the module kind implements op.
func (m *Module) supports(op string) bool {
	switch m.kind {
	case domain.ModuleTemperature:
		switch op {
		case "connect", "set_temperature", "deactivate":
			return true
		}
	case domain.ModuleMagnetic:
		switch op {
		case "connect", "engage", "disengage", "deactivate":
			return true
		}
	case domain.ModuleThermocycler:
		switch op {
		case "connect", "set_temperature", "set_lid_temperature", "open_lid", "close_lid", "deactivate":
			return true
		}
	}
	return false
}

func (m *Module) run(ctx context.Context, op string, args map[string]any, fn func() error) error {
	if !m.supports(op) {
		return fmt.Errorf("%w: %s module %s does not support %s", domain.ErrInvalidArgument, m.kind, m.id, op)
	}
	if args == nil {
		args = map[string]any{}
	}
	args["module"] = m.id
	return m.session.run(ctx, op, "", args, fn)
}

// SetTemperature sets the block temperature of a temperature module or thermocycler.
func (m *Module) SetTemperature(ctx context.Context, celsius float64) error {
	return m.run(ctx, "set_temperature", map[string]any{"celsius": celsius}, func() error {
		return m.session.modules.SetTemperature(ctx, m.id, celsius)
	})
}

// SetLidTemperature sets the heated lid of a thermocycler.
func (m *Module) SetLidTemperature(ctx context.Context, celsius float64) error {
	return m.run(ctx, "set_lid_temperature", map[string]any{"celsius": celsius}, func() error {
		return m.session.modules.SetLidTemperature(ctx, m.id, celsius)
	})
}

// Deactivate turns off heating, cooling and magnets.
func (m *Module) Deactivate(ctx context.Context) error {
	return m.run(ctx, "deactivate", nil, func() error {
		return m.session.modules.DeactivateModule(ctx, m.id)
	})
}

// Engage raises the magnets of a magnetic module to height mm.
func (m *Module) Engage(ctx context.Context, height float64) error {
	if height < 0 {
		return fmt.Errorf("%w: negative magnet height %v", domain.ErrInvalidArgument, height)
	}
	return m.run(ctx, "engage", map[string]any{"height": height}, func() error {
		return m.session.modules.EngageMagnet(ctx, m.id, height)
	})
}

// Disengage lowers the magnets of a magnetic module.
func (m *Module) Disengage(ctx context.Context) error {
	return m.run(ctx, "disengage", nil, func() error {
		return m.session.modules.DisengageMagnet(ctx, m.id)
	})
}

// OpenLid opens a thermocycler lid.
func (m *Module) OpenLid(ctx context.Context) error {
	return m.run(ctx, "open_lid", nil, func() error {
		return m.session.modules.OpenLid(ctx, m.id)
	})
}

// CloseLid closes a thermocycler lid.
func (m *Module) CloseLid(ctx context.Context) error {
	return m.run(ctx, "close_lid", nil, func() error {
		return m.session.modules.CloseLid(ctx, m.id)
	})
}
