package dsl

import (
	"fmt"
	"time"

	"github.com/aretw0/aliquot/internal/compiler"
	"github.com/aretw0/aliquot/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Builder assembles a protocol step by step.
type Builder struct {
	proto       domain.Protocol
	instruments []*InstrumentBuilder
	steps       []*StepBuilder
}

// New creates a builder for a protocol with the given name.
func New(name string) *Builder {
	return &Builder{proto: domain.Protocol{Metadata: domain.Metadata{Name: name}}}
}

// Author sets the protocol author.
func (b *Builder) Author(author string) *Builder {
	b.proto.Metadata.Author = author
	return b
}

// Description sets the protocol description.
func (b *Builder) Description(text string) *Builder {
	b.proto.Metadata.Description = text
	return b
}

// Labware places a labware definition in a slot under id.
func (b *Builder) Labware(id, loadName, slot string) *Builder {
	b.proto.Labware = append(b.proto.Labware, domain.LabwareSpec{ID: id, LoadName: loadName, Slot: slot})
	return b
}

// LabeledLabware is Labware with a display label.
func (b *Builder) LabeledLabware(id, loadName, slot, label string) *Builder {
	b.proto.Labware = append(b.proto.Labware, domain.LabwareSpec{ID: id, LoadName: loadName, Slot: slot, Label: label})
	return b
}

// Module places a hardware module in a slot.
func (b *Builder) Module(id, kind, slot string) *Builder {
	b.proto.Modules = append(b.proto.Modules, domain.ModuleSpec{ID: id, Kind: kind, Slot: slot})
	return b
}

// Pipette declares the pipette expected on a mount. An empty name accepts
// whatever is attached.
func (b *Builder) Pipette(mount, name string) *InstrumentBuilder {
	ib := &InstrumentBuilder{spec: domain.InstrumentSpec{Mount: mount, Name: name}}
	b.instruments = append(b.instruments, ib)
	return ib
}

// Command appends a step by name. The helpers below cover the builtin
// commands; Command reaches custom registry entries.
func (b *Builder) Command(name string, params map[string]any) *StepBuilder {
	sb := &StepBuilder{spec: domain.CommandSpec{Command: name, Params: map[string]any{}}}
	for k, v := range params {
		sb.spec.Params[k] = v
	}
	b.steps = append(b.steps, sb)
	return sb
}

func (b *Builder) PickUpTip() *StepBuilder { return b.Command("pick_up_tip", nil) }

// PickUpTipAt picks up the tip in a specific rack well.
func (b *Builder) PickUpTipAt(well string) *StepBuilder {
	return b.Command("pick_up_tip", map[string]any{"well": well})
}

func (b *Builder) DropTip() *StepBuilder   { return b.Command("drop_tip", nil) }
func (b *Builder) ReturnTip() *StepBuilder { return b.Command("return_tip", nil) }

func (b *Builder) Aspirate(volume float64, well string) *StepBuilder {
	return b.Command("aspirate", map[string]any{"volume": volume, "well": well})
}

func (b *Builder) Dispense(volume float64, well string) *StepBuilder {
	return b.Command("dispense", map[string]any{"volume": volume, "well": well})
}

func (b *Builder) Mix(repetitions int, volume float64, well string) *StepBuilder {
	return b.Command("mix", map[string]any{"repetitions": repetitions, "volume": volume, "well": well})
}

func (b *Builder) BlowOut(well string) *StepBuilder {
	return b.Command("blow_out", map[string]any{"well": well})
}

func (b *Builder) TouchTip(well string) *StepBuilder {
	return b.Command("touch_tip", map[string]any{"well": well})
}

func (b *Builder) AirGap(volume float64) *StepBuilder {
	return b.Command("air_gap", map[string]any{"volume": volume})
}

// MoveTo moves to the top of a well.
func (b *Builder) MoveTo(well string) *StepBuilder {
	return b.Command("move_to", map[string]any{"well": well})
}

func (b *Builder) Home() *StepBuilder { return b.Command("home", nil) }

func (b *Builder) Transfer(volume float64, source, dest string) *StepBuilder {
	return b.Command("transfer", map[string]any{"volume": volume, "source": source, "dest": dest})
}

// TransferGradient transfers volumes spaced linearly from start to end
// across the well pairs.
func (b *Builder) TransferGradient(start, end float64, sources, dests []string) *StepBuilder {
	return b.Command("transfer", map[string]any{
		"volume":  map[string]any{"start": start, "end": end},
		"sources": sources,
		"dests":   dests,
	})
}

func (b *Builder) Distribute(volume float64, source string, dests ...string) *StepBuilder {
	return b.Command("distribute", map[string]any{"volume": volume, "source": source, "dests": dests})
}

func (b *Builder) Consolidate(volume float64, dest string, sources ...string) *StepBuilder {
	return b.Command("consolidate", map[string]any{"volume": volume, "sources": sources, "dest": dest})
}

func (b *Builder) Delay(d time.Duration) *StepBuilder {
	return b.Command("delay", map[string]any{"seconds": d.Seconds()})
}

func (b *Builder) Pause(message string) *StepBuilder {
	params := map[string]any{}
	if message != "" {
		params["message"] = message
	}
	return b.Command("pause", params)
}

func (b *Builder) Resume() *StepBuilder { return b.Command("resume", nil) }

func (b *Builder) Comment(text string) *StepBuilder {
	return b.Command("comment", map[string]any{"text": text})
}

func (b *Builder) SetTemperature(module string, celsius float64) *StepBuilder {
	return b.Command("set_temperature", map[string]any{"module": module, "celsius": celsius})
}

func (b *Builder) Engage(module string, height float64) *StepBuilder {
	return b.Command("engage", map[string]any{"module": module, "height": height})
}

func (b *Builder) Deactivate(module string) *StepBuilder {
	return b.Command("deactivate", map[string]any{"module": module})
}

// Build assembles the protocol and checks its structure.
func (b *Builder) Build() (*domain.Protocol, error) {
	proto := b.proto
	proto.Labware = append([]domain.LabwareSpec(nil), b.proto.Labware...)
	proto.Modules = append([]domain.ModuleSpec(nil), b.proto.Modules...)
	proto.Instruments = make([]domain.InstrumentSpec, 0, len(b.instruments))
	for _, ib := range b.instruments {
		proto.Instruments = append(proto.Instruments, ib.spec)
	}
	proto.Commands = make([]domain.CommandSpec, 0, len(b.steps))
	for _, sb := range b.steps {
		spec := sb.spec
		if len(spec.Params) == 0 {
			spec.Params = nil
		}
		proto.Commands = append(proto.Commands, spec)
	}

	if err := compiler.Check(&proto); err != nil {
		return nil, fmt.Errorf("failed to build protocol: %w", err)
	}
	return &proto, nil
}

// YAML builds the protocol and renders it as a YAML document.
func (b *Builder) YAML() ([]byte, error) {
	proto, err := b.Build()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(proto)
}
