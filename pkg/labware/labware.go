// Package labware provides concrete labware and wells built from definitions,
// including tip racks whose availability is kept in a ports.TipStore.
package labware

import (
	"fmt"
	"slices"

	"github.com/aretw0/aliquot/pkg/adapters/memory"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/ports"
)

// Labware is a definition placed at a deck origin.
type Labware struct {
	id     string
	label  string
	def    Definition
	origin domain.Point

	wells   []*Well // column-major: A1, B1, ... H1, A2, ...
	byName  map[string]*Well
	columns [][]*Well

	store ports.TipStore
}

// Option configures a Labware.
type Option func(*Labware)

// WithID sets the instance ID used as the tip-tracking key.
func WithID(id string) Option {
	return func(l *Labware) {
		l.id = id
	}
}

// WithLabel sets a human readable label.
func WithLabel(label string) Option {
	return func(l *Labware) {
		l.label = label
	}
}

// WithTipStore configures where tip availability is kept.
func WithTipStore(store ports.TipStore) Option {
	return func(l *Labware) {
		l.store = store
	}
}

// New lays out the wells of def relative to origin (the slot corner).
func New(def Definition, origin domain.Point, opts ...Option) *Labware {
	l := &Labware{
		id:     def.LoadName,
		def:    def,
		origin: origin,
		byName: make(map[string]*Well, def.Rows*def.Columns),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = memory.NewTipStore()
	}

	l.columns = make([][]*Well, def.Columns)
	for c := 0; c < def.Columns; c++ {
		for r := 0; r < def.Rows; r++ {
			w := &Well{
				name:   fmt.Sprintf("%c%d", 'A'+r, c+1),
				parent: l,
				row:    r,
				col:    c,
				top: domain.Point{
					X: origin.X + def.Offset.X + float64(c)*def.Spacing.X,
					Y: origin.Y + def.Offset.Y - float64(r)*def.Spacing.Y,
					Z: origin.Z + def.Offset.Z,
				},
			}
			l.wells = append(l.wells, w)
			l.columns[c] = append(l.columns[c], w)
			l.byName[w.name] = w
		}
	}
	return l
}

// Load looks up a registered definition and places it.
func Load(loadName string, origin domain.Point, opts ...Option) (*Labware, error) {
	def, err := Lookup(loadName)
	if err != nil {
		return nil, err
	}
	return New(def, origin, opts...), nil
}

func (l *Labware) ID() string { return l.id }
func (l *Labware) Name() string { return l.def.LoadName }
func (l *Labware) Label() string { return l.label }
func (l *Labware) Definition() Definition { return l.def }
func (l *Labware) IsTipRack() bool { return l.def.IsTipRack }
func (l *Labware) TipLength() float64 { return l.def.TipLength }
func (l *Labware) HasQuirk(quirk string) bool { return slices.Contains(l.def.Quirks, quirk) }
func (l *Labware) HighestZ() float64 { return l.origin.Z + l.def.Offset.Z }
func (l *Labware) Origin() domain.Point { return l.origin }

// Wells returns every well in column-major order.
func (l *Labware) Wells() []domain.Well {
	out := make([]domain.Well, len(l.wells))
	for i, w := range l.wells {
		out[i] = w
	}
	return out
}

// Well returns the well with the given name, like "A1".
func (l *Labware) Well(name string) (*Well, error) {
	w, ok := l.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no well %q", domain.ErrLabwareNotFound, l.id, name)
	}
	return w, nil
}

// Columns returns the wells grouped by column, A to H within each.
func (l *Labware) Columns() [][]*Well {
	return l.columns
}

func (l *Labware) String() string {
	if l.label != "" {
		return fmt.Sprintf("%s (%s)", l.label, l.def.LoadName)
	}
	return l.def.LoadName
}

// Well is one position of a Labware.
type Well struct {
	name   string
	parent *Labware
	row    int
	col    int
	top    domain.Point // center of the well's top plane
}

func (w *Well) Name() string { return w.name }
func (w *Well) Parent() domain.Labware { return w.parent }
func (w *Well) MaxVolume() float64 { return w.parent.def.Well.MaxVolume }
func (w *Well) Depth() float64 { return w.parent.def.Well.Depth }

// Diameter is the circular diameter, or the X dimension of a rectangular well.
func (w *Well) Diameter() float64 {
	if w.parent.def.Well.Shape == ShapeRectangular {
		return w.parent.def.Well.XDimension
	}
	return w.parent.def.Well.Diameter
}

func (w *Well) halfDimensions() (float64, float64) {
	wd := w.parent.def.Well
	if wd.Shape == ShapeRectangular {
		return wd.XDimension / 2, wd.YDimension / 2
	}
	return wd.Diameter / 2, wd.Diameter / 2
}

// Top returns a location z mm above the top center of the well.
func (w *Well) Top(z float64) domain.Location {
	return domain.Location{Point: w.top.Add(domain.Point{Z: z}), Well: w}
}

// Bottom returns a location z mm above the bottom center of the well.
func (w *Well) Bottom(z float64) domain.Location {
	return domain.Location{Point: w.top.Add(domain.Point{Z: z - w.Depth()}), Well: w}
}

// Center returns the volumetric center of the well.
func (w *Well) Center() domain.Location {
	return domain.Location{Point: w.top.Add(domain.Point{Z: -w.Depth() / 2}), Well: w}
}

// FromCenterCartesian scales x, y, z in [-1, 1] by the well's half-dimensions
// and half-depth around its center. z = 1 is the top plane.
func (w *Well) FromCenterCartesian(x, y, z float64) domain.Point {
	hx, hy := w.halfDimensions()
	c := w.Center().Point
	return domain.Point{
		X: c.X + x*hx,
		Y: c.Y + y*hy,
		Z: c.Z + z*w.Depth()/2,
	}
}

func (w *Well) String() string {
	return w.name + " of " + w.parent.String()
}
