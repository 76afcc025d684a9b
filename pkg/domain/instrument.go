package domain

import "fmt"

// FlowRates are plunger flow rates in µL/s.
type FlowRates struct {
	Aspirate float64 `json:"aspirate" yaml:"aspirate" mapstructure:"aspirate"`
	Dispense float64 `json:"dispense" yaml:"dispense" mapstructure:"dispense"`
	BlowOut  float64 `json:"blow_out" yaml:"blow_out" mapstructure:"blow_out"`
}

// Validate rejects non-positive rates.
func (f FlowRates) Validate() error {
	return positive("flow rate", f.Aspirate, f.Dispense, f.BlowOut)
}

// PlungerSpeeds are plunger speeds in mm/s.
type PlungerSpeeds struct {
	Aspirate float64 `json:"aspirate" yaml:"aspirate" mapstructure:"aspirate"`
	Dispense float64 `json:"dispense" yaml:"dispense" mapstructure:"dispense"`
	BlowOut  float64 `json:"blow_out" yaml:"blow_out" mapstructure:"blow_out"`
}

// Validate rejects non-positive speeds.
func (s PlungerSpeeds) Validate() error {
	return positive("plunger speed", s.Aspirate, s.Dispense, s.BlowOut)
}

func positive(what string, values ...float64) error {
	names := []string{"aspirate", "dispense", "blow_out"}
	for i, v := range values {
		if v <= 0 {
			return fmt.Errorf("%w: %s %s must be > 0, got %v", ErrInvalidArgument, names[i], what, v)
		}
	}
	return nil
}

// Clearances are heights above a well bottom used when a well is the target.
type Clearances struct {
	Aspirate float64 `json:"aspirate" yaml:"aspirate" mapstructure:"aspirate"`
	Dispense float64 `json:"dispense" yaml:"dispense" mapstructure:"dispense"`
}

// DefaultClearances are 1 mm above the bottom for both directions.
var DefaultClearances = Clearances{Aspirate: 1.0, Dispense: 1.0}

// InstrumentInfo holds the facts a hardware driver reports about an attached pipette.
type InstrumentInfo struct {
	Name          string        `json:"name"`
	Model         string        `json:"model"`
	DisplayName   string        `json:"display_name"`
	MinVolume     float64       `json:"min_volume"`
	MaxVolume     float64       `json:"max_volume"`
	CurrentVolume float64       `json:"current_volume"`
	WorkingVolume float64       `json:"working_volume"`
	Channels      int           `json:"channels"`
	HasTip        bool          `json:"has_tip"`
	FlowRates     FlowRates     `json:"flow_rates"`
	PlungerSpeeds PlungerSpeeds `json:"plunger_speeds"`
}

// InstrumentSnapshot is a read-only copy of the software state of one mount.
type InstrumentSnapshot struct {
	Mount         Mount         `json:"mount"`
	Name          string        `json:"name"`
	Channels      int           `json:"channels"`
	MinVolume     float64       `json:"min_volume"`
	MaxVolume     float64       `json:"max_volume"`
	HasTip        bool          `json:"has_tip"`
	AttachedTip   string        `json:"attached_tip,omitempty"`
	LastTip       string        `json:"last_tip,omitempty"`
	CurrentVolume float64       `json:"current_volume"`
	WorkingVolume float64       `json:"working_volume"`
	DefaultSpeed  float64       `json:"default_speed"`
	FlowRates     FlowRates     `json:"flow_rates"`
	PlungerSpeeds PlungerSpeeds `json:"plunger_speeds"`
	Clearances    Clearances    `json:"clearances"`
	TipRacks      []string      `json:"tip_racks,omitempty"`
	Trash         string        `json:"trash,omitempty"`
}

// WellID renders a well as "<labware id>/<well name>".
func WellID(w Well) string {
	if w == nil {
		return ""
	}
	if w.Parent() == nil {
		return w.Name()
	}
	return w.Parent().ID() + "/" + w.Name()
}
