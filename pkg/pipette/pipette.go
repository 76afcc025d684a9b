// Package pipette holds the table of supported pipette models.
package pipette

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/aliquot/pkg/domain"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// PlungerPositions are plunger axis positions in mm.
type PlungerPositions struct {
	Top     float64 `yaml:"top"`
	Bottom  float64 `yaml:"bottom"`
	BlowOut float64 `yaml:"blow_out"`
	DropTip float64 `yaml:"drop_tip"`
}

// Model describes a pipette model.
type Model struct {
	Name        string           `yaml:"name"`
	DisplayName string           `yaml:"display_name"`
	Channels    int              `yaml:"channels"`
	MinVolume   float64          `yaml:"min_volume"`
	MaxVolume   float64          `yaml:"max_volume"`
	ULPerMM     float64          `yaml:"ul_per_mm"`
	FlowRates   domain.FlowRates `yaml:"flow_rates"`
	Plunger     PlungerPositions `yaml:"plunger"`
}

// PlungerSpeeds converts the default flow rates to plunger speeds.
func (m Model) PlungerSpeeds() domain.PlungerSpeeds {
	return domain.PlungerSpeeds{
		Aspirate: m.FlowRates.Aspirate / m.ULPerMM,
		Dispense: m.FlowRates.Dispense / m.ULPerMM,
		BlowOut:  m.FlowRates.BlowOut / m.ULPerMM,
	}
}

// Info returns the facts a driver reports for a freshly attached pipette.
func (m Model) Info() domain.InstrumentInfo {
	return domain.InstrumentInfo{
		Name:          m.Name,
		Model:         m.Name,
		DisplayName:   m.DisplayName,
		MinVolume:     m.MinVolume,
		MaxVolume:     m.MaxVolume,
		WorkingVolume: m.MaxVolume,
		Channels:      m.Channels,
		FlowRates:     m.FlowRates,
		PlungerSpeeds: m.PlungerSpeeds(),
	}
}

var (
	loadOnce sync.Once
	models   map[string]Model
	loadErr  error
)

func load() (map[string]Model, error) {
	loadOnce.Do(func() {
		var list []Model
		if err := yaml.Unmarshal(modelsYAML, &list); err != nil {
			loadErr = fmt.Errorf("failed to parse pipette models: %w", err)
			return
		}
		models = make(map[string]Model, len(list))
		for _, m := range list {
			models[m.Name] = m
		}
	})
	return models, loadErr
}

// Lookup returns the model with the given name.
func Lookup(name string) (Model, error) {
	all, err := load()
	if err != nil {
		return Model{}, err
	}
	m, ok := all[name]
	if !ok {
		return Model{}, fmt.Errorf("%w: unknown pipette model %q", domain.ErrInvalidArgument, name)
	}
	return m, nil
}

// Names lists every known model, sorted.
func Names() []string {
	all, _ := load()
	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
