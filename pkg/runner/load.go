package runner

import (
	"context"
	"fmt"

	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/labware"
	"github.com/aretw0/aliquot/pkg/ports"
)

// Load places the protocol's labware and modules and loads its instruments.
// Labware is loaded under the protocol IDs, so command references like
// "plate/A1" resolve against the session directly.
func Load(ctx context.Context, s *runtime.Session, p *domain.Protocol) error {
	for _, spec := range p.Labware {
		opts := []labware.Option{labware.WithID(spec.ID)}
		if spec.Label != "" {
			opts = append(opts, labware.WithLabel(spec.Label))
		}
		if _, err := s.LoadLabware(spec.LoadName, spec.Slot, opts...); err != nil {
			return fmt.Errorf("labware %q: %w", spec.ID, err)
		}
	}
	for _, spec := range p.Modules {
		kind, err := domain.ParseModuleKind(spec.Kind)
		if err != nil {
			return fmt.Errorf("module %q: %w", spec.ID, err)
		}
		if _, err := s.LoadModule(ctx, kind, spec.Slot, spec.ID); err != nil {
			return fmt.Errorf("module %q: %w", spec.ID, err)
		}
	}
	for _, spec := range p.Instruments {
		if err := loadInstrument(ctx, s, spec); err != nil {
			return fmt.Errorf("instrument %q: %w", spec.Mount, err)
		}
	}
	return nil
}

func loadInstrument(ctx context.Context, s *runtime.Session, spec domain.InstrumentSpec) error {
	mount, err := domain.ParseMount(spec.Mount)
	if err != nil {
		return err
	}

	var opts []runtime.InstrumentOption
	racks := make([]ports.TipRack, 0, len(spec.TipRacks))
	for _, id := range spec.TipRacks {
		lw, err := s.Labware(id)
		if err != nil {
			return err
		}
		if !lw.IsTipRack() {
			return fmt.Errorf("%w: %q is not a tip rack", domain.ErrInvalidArgument, id)
		}
		racks = append(racks, lw)
	}
	if len(racks) > 0 {
		opts = append(opts, runtime.WithTipRacks(racks...))
	}
	if spec.Trash != "" {
		lw, err := s.Labware(spec.Trash)
		if err != nil {
			return err
		}
		opts = append(opts, runtime.WithTrash(lw))
	}
	if spec.StartingTip != "" {
		w, err := lookupWell(s, spec.StartingTip)
		if err != nil {
			return err
		}
		opts = append(opts, runtime.WithStartingTip(w))
	}
	if spec.FlowRates != nil {
		opts = append(opts, runtime.WithFlowRates(*spec.FlowRates))
	}

	inst, err := s.LoadInstrument(ctx, mount, opts...)
	if err != nil {
		return err
	}
	if spec.Name != "" && spec.Name != inst.Name() {
		return fmt.Errorf("%w: protocol expects %s on the %s mount, found %s",
			domain.ErrInvalidArgument, spec.Name, mount, inst.Name())
	}
	if spec.DefaultSpeed > 0 {
		if err := inst.SetDefaultSpeed(spec.DefaultSpeed); err != nil {
			return err
		}
	}
	return nil
}

// lookupWell resolves a "<labware id>/<well>" reference.
func lookupWell(s *runtime.Session, ref string) (*labware.Well, error) {
	id, name, err := domain.ParseWellRef(ref)
	if err != nil {
		return nil, err
	}
	lw, err := s.Labware(id)
	if err != nil {
		return nil, err
	}
	return lw.Well(name)
}
