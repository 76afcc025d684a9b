package dsl

import "github.com/aretw0/aliquot/pkg/domain"

// InstrumentBuilder configures one mount.
type InstrumentBuilder struct {
	spec domain.InstrumentSpec
}

// TipRacks lists the racks the pipette draws tips from, in order.
func (i *InstrumentBuilder) TipRacks(ids ...string) *InstrumentBuilder {
	i.spec.TipRacks = append(i.spec.TipRacks, ids...)
	return i
}

// Trash sets where used tips are dropped.
func (i *InstrumentBuilder) Trash(id string) *InstrumentBuilder {
	i.spec.Trash = id
	return i
}

// StartingTip skips the rack wells before well.
func (i *InstrumentBuilder) StartingTip(well string) *InstrumentBuilder {
	i.spec.StartingTip = well
	return i
}

// DefaultSpeed sets the gantry speed in mm/s.
func (i *InstrumentBuilder) DefaultSpeed(mmPerSec float64) *InstrumentBuilder {
	i.spec.DefaultSpeed = mmPerSec
	return i
}

// FlowRates sets the plunger flow rates in µL/s.
func (i *InstrumentBuilder) FlowRates(rates domain.FlowRates) *InstrumentBuilder {
	i.spec.FlowRates = &rates
	return i
}

// StepBuilder refines the params of one command.
type StepBuilder struct {
	spec domain.CommandSpec
}

// With sets an arbitrary param.
func (s *StepBuilder) With(key string, value any) *StepBuilder {
	s.spec.Params[key] = value
	return s
}

func (s *StepBuilder) Mount(mount string) *StepBuilder { return s.With("mount", mount) }

// Rate scales the flow rate of a liquid step.
func (s *StepBuilder) Rate(rate float64) *StepBuilder { return s.With("rate", rate) }

// Position picks the well reference point: top, bottom or center.
func (s *StepBuilder) Position(position string) *StepBuilder { return s.With("position", position) }

// Offset shifts the position along z, in mm.
func (s *StepBuilder) Offset(mm float64) *StepBuilder { return s.With("offset", mm) }

// NewTip sets the tip policy of a transfer: always, once or never.
func (s *StepBuilder) NewTip(policy string) *StepBuilder { return s.With("new_tip", policy) }

func (s *StepBuilder) MixBefore(repetitions int, volume float64) *StepBuilder {
	return s.With("mix_before", map[string]any{"repetitions": repetitions, "volume": volume})
}

func (s *StepBuilder) MixAfter(repetitions int, volume float64) *StepBuilder {
	return s.With("mix_after", map[string]any{"repetitions": repetitions, "volume": volume})
}

func (s *StepBuilder) AirGap(volume float64) *StepBuilder { return s.With("air_gap", volume) }

func (s *StepBuilder) DisposalVolume(volume float64) *StepBuilder {
	return s.With("disposal_volume", volume)
}

func (s *StepBuilder) BlowOut() *StepBuilder  { return s.With("blow_out", true) }
func (s *StepBuilder) TouchTip() *StepBuilder { return s.With("touch_tip", true) }
