package labware

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"

	"github.com/aretw0/aliquot/pkg/domain"
	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var bundled embed.FS

// Shape of a well's cross-section.
type Shape string

const (
	ShapeCircular    Shape = "circular"
	ShapeRectangular Shape = "rectangular"
)

// WellDefinition is the geometry shared by every well of a labware.
type WellDefinition struct {
	Shape      Shape   `yaml:"shape" json:"shape"`
	Depth      float64 `yaml:"depth" json:"depth"`
	Diameter   float64 `yaml:"diameter,omitempty" json:"diameter,omitempty"`
	XDimension float64 `yaml:"x_dimension,omitempty" json:"x_dimension,omitempty"`
	YDimension float64 `yaml:"y_dimension,omitempty" json:"y_dimension,omitempty"`
	MaxVolume  float64 `yaml:"max_volume" json:"max_volume"`
}

// Spacing is the center-to-center distance between columns (X) and rows (Y).
type Spacing struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Definition describes a regular grid labware. Offset is the center of the
// top of well A1 relative to the slot origin.
type Definition struct {
	LoadName    string         `yaml:"load_name" json:"load_name"`
	DisplayName string         `yaml:"display_name" json:"display_name"`
	Rows        int            `yaml:"rows" json:"rows"`
	Columns     int            `yaml:"columns" json:"columns"`
	Spacing     Spacing        `yaml:"spacing" json:"spacing"`
	Offset      domain.Point   `yaml:"offset" json:"offset"`
	IsTipRack   bool           `yaml:"is_tiprack,omitempty" json:"is_tiprack,omitempty"`
	TipLength   float64        `yaml:"tip_length,omitempty" json:"tip_length,omitempty"`
	Quirks      []string       `yaml:"quirks,omitempty" json:"quirks,omitempty"`
	Well        WellDefinition `yaml:"well" json:"well"`
}

// HasWell reports whether name, like "H12", is a well of this grid.
func (d Definition) HasWell(name string) bool {
	if len(name) < 2 {
		return false
	}
	row := int(name[0] - 'A')
	col, err := strconv.Atoi(name[1:])
	if err != nil || name[1] == '0' || name[1] == '+' {
		return false
	}
	return row >= 0 && row < d.Rows && col >= 1 && col <= d.Columns
}

// Validate checks the definition for values the geometry can't work with.
func (d Definition) Validate() error {
	switch {
	case d.LoadName == "":
		return fmt.Errorf("%w: definition has no load_name", domain.ErrInvalidArgument)
	case d.Rows < 1 || d.Rows > 26 || d.Columns < 1:
		return fmt.Errorf("%w: %s: bad grid %dx%d", domain.ErrInvalidArgument, d.LoadName, d.Rows, d.Columns)
	case d.Well.MaxVolume <= 0:
		return fmt.Errorf("%w: %s: well max_volume must be > 0", domain.ErrInvalidArgument, d.LoadName)
	case d.IsTipRack && d.TipLength <= 0:
		return fmt.Errorf("%w: %s: tip rack needs a tip_length", domain.ErrInvalidArgument, d.LoadName)
	}
	switch d.Well.Shape {
	case ShapeCircular:
		if d.Well.Diameter <= 0 {
			return fmt.Errorf("%w: %s: circular wells need a diameter", domain.ErrInvalidArgument, d.LoadName)
		}
	case ShapeRectangular:
		if d.Well.XDimension <= 0 || d.Well.YDimension <= 0 {
			return fmt.Errorf("%w: %s: rectangular wells need x/y dimensions", domain.ErrInvalidArgument, d.LoadName)
		}
	default:
		return fmt.Errorf("%w: %s: unknown well shape %q", domain.ErrInvalidArgument, d.LoadName, d.Well.Shape)
	}
	return nil
}

// ParseDefinition decodes and validates a YAML (or JSON) definition.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("failed to parse labware definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

var (
	mu          sync.RWMutex
	definitions map[string]Definition
	loadOnce    sync.Once
	loadErr     error
)

func loadBundled() error {
	loadOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		definitions = make(map[string]Definition)

		entries, err := bundled.ReadDir("definitions")
		if err != nil {
			loadErr = err
			return
		}
		for _, e := range entries {
			data, err := bundled.ReadFile(path.Join("definitions", e.Name()))
			if err != nil {
				loadErr = err
				return
			}
			def, err := ParseDefinition(data)
			if err != nil {
				loadErr = fmt.Errorf("%s: %w", e.Name(), err)
				return
			}
			definitions[def.LoadName] = def
		}
	})
	return loadErr
}

// Register adds a custom definition. An existing load name is overwritten.
func Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if err := loadBundled(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	definitions[def.LoadName] = def
	return nil
}

// Lookup returns the definition registered under loadName.
func Lookup(loadName string) (Definition, error) {
	if err := loadBundled(); err != nil {
		return Definition{}, err
	}
	mu.RLock()
	defer mu.RUnlock()
	def, ok := definitions[loadName]
	if !ok {
		return Definition{}, fmt.Errorf("%w: no definition for %q", domain.ErrLabwareNotFound, loadName)
	}
	return def, nil
}

// LoadNames lists every registered definition, sorted.
func LoadNames() []string {
	_ = loadBundled()
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(definitions))
	for n := range definitions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
