package domain

import (
	"fmt"
	"strings"
)

// Protocol is a declarative protocol document: what is on the deck and the
// commands to run against it, in order.
type Protocol struct {
	Metadata    Metadata         `json:"metadata" yaml:"metadata" mapstructure:"metadata"`
	Labware     []LabwareSpec    `json:"labware" yaml:"labware" mapstructure:"labware"`
	Instruments []InstrumentSpec `json:"instruments" yaml:"instruments" mapstructure:"instruments"`
	Modules     []ModuleSpec     `json:"modules,omitempty" yaml:"modules,omitempty" mapstructure:"modules"`
	Commands    []CommandSpec    `json:"commands" yaml:"commands" mapstructure:"commands"`
}

// Metadata describes a protocol.
type Metadata struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty" mapstructure:"author"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// LabwareSpec places a labware definition in a slot under a protocol-local ID.
type LabwareSpec struct {
	ID       string `json:"id" yaml:"id" mapstructure:"id"`
	LoadName string `json:"load_name" yaml:"load_name" mapstructure:"load_name"`
	Slot     string `json:"slot" yaml:"slot" mapstructure:"slot"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty" mapstructure:"label"`
}

// InstrumentSpec configures the pipette on a mount.
type InstrumentSpec struct {
	Mount        string     `json:"mount" yaml:"mount" mapstructure:"mount"`
	Name         string     `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	TipRacks     []string   `json:"tip_racks,omitempty" yaml:"tip_racks,omitempty" mapstructure:"tip_racks"`
	Trash        string     `json:"trash,omitempty" yaml:"trash,omitempty" mapstructure:"trash"`
	StartingTip  string     `json:"starting_tip,omitempty" yaml:"starting_tip,omitempty" mapstructure:"starting_tip"`
	DefaultSpeed float64    `json:"default_speed,omitempty" yaml:"default_speed,omitempty" mapstructure:"default_speed"`
	FlowRates    *FlowRates `json:"flow_rates,omitempty" yaml:"flow_rates,omitempty" mapstructure:"flow_rates"`
}

// ModuleSpec places a hardware module in a slot.
type ModuleSpec struct {
	ID   string `json:"id" yaml:"id" mapstructure:"id"`
	Kind string `json:"kind" yaml:"kind" mapstructure:"kind"`
	Slot string `json:"slot" yaml:"slot" mapstructure:"slot"`
}

// CommandSpec is one step of a protocol.
type CommandSpec struct {
	Command string         `json:"command" yaml:"command" mapstructure:"command"`
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
}

// ParseWellRef splits a "<labware id>/<well name>" reference.
func ParseWellRef(ref string) (labwareID, well string, err error) {
	labwareID, well, ok := strings.Cut(strings.TrimSpace(ref), "/")
	if !ok || labwareID == "" || well == "" {
		return "", "", fmt.Errorf("%w: well reference %q is not <labware>/<well>", ErrInvalidArgument, ref)
	}
	return labwareID, well, nil
}

// ModuleKind is the closed set of supported hardware modules.
type ModuleKind int

const (
	ModuleTemperature ModuleKind = iota + 1
	ModuleMagnetic
	ModuleThermocycler
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleTemperature:
		return "temperature"
	case ModuleMagnetic:
		return "magnetic"
	case ModuleThermocycler:
		return "thermocycler"
	}
	return fmt.Sprintf("ModuleKind(%d)", int(k))
}

// ParseModuleKind accepts the kind names and a few common aliases.
func ParseModuleKind(s string) (ModuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "temperature", "tempdeck", "temperature module":
		return ModuleTemperature, nil
	case "magnetic", "magdeck", "magnetic module":
		return ModuleMagnetic, nil
	case "thermocycler", "thermocycler module":
		return ModuleThermocycler, nil
	}
	return 0, fmt.Errorf("%w: unknown module kind %q", ErrInvalidArgument, s)
}
