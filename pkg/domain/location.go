package domain

import (
	"fmt"
	"strings"
)

// Mount is an attachment point on the gantry.
type Mount string

const (
	MountLeft  Mount = "left"
	MountRight Mount = "right"
)

// ParseMount converts a case-insensitive name into a Mount.
func ParseMount(s string) (Mount, error) {
	switch Mount(strings.ToLower(strings.TrimSpace(s))) {
	case MountLeft:
		return MountLeft, nil
	case MountRight:
		return MountRight, nil
	}
	return "", fmt.Errorf("%w: unknown mount %q", ErrInvalidArgument, s)
}

// CriticalPoint selects which part of the instrument a move positions.
type CriticalPoint string

const (
	CriticalPointDefault  CriticalPoint = ""
	CriticalPointNozzle   CriticalPoint = "nozzle"
	CriticalPointTip      CriticalPoint = "tip"
	CriticalPointXYCenter CriticalPoint = "xy_center"
)

// Labware quirks understood by the core.
const (
	QuirkFixedTrash               = "fixedTrash"
	QuirkCenterMultichannelOnWell = "centerMultichannelOnWells"
)

// Point is a deck coordinate in millimeters.
type Point struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
	Z float64 `json:"z" yaml:"z" mapstructure:"z"`
}

// Add returns the component-wise sum of p and o.
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Z)
}

// Labware is a physical item occupying a deck slot.
type Labware interface {
	// ID identifies this labware instance (used as the tip-tracking key).
	ID() string
	// Name is the definition load name.
	Name() string
	Wells() []Well
	IsTipRack() bool
	TipLength() float64
	HasQuirk(quirk string) bool
	HighestZ() float64
}

// Well is a liquid-holding position inside a Labware.
type Well interface {
	Name() string
	Parent() Labware
	Top(z float64) Location
	Bottom(z float64) Location
	Center() Location
	// FromCenterCartesian maps x, y, z in [-1, 1] relative to the well's
	// center and half-dimensions to an absolute point.
	FromCenterCartesian(x, y, z float64) Point
	Diameter() float64
	MaxVolume() float64
}

// Location is a point, optionally anchored to a Well or to a whole Labware.
// A location with neither anchor is an unanchored point.
type Location struct {
	Point   Point
	Well    Well
	Labware Labware
}

// PointAt returns an unanchored location.
func PointAt(x, y, z float64) Location {
	return Location{Point: Point{X: x, Y: y, Z: z}}
}

// Move returns a copy of l offset by d, keeping its anchor.
func (l Location) Move(d Point) Location {
	l.Point = l.Point.Add(d)
	return l
}

// ParentLabware returns the labware this location is relative to, if any.
func (l Location) ParentLabware() Labware {
	if l.Well != nil {
		return l.Well.Parent()
	}
	return l.Labware
}

// Equal reports whether both locations share the same point and anchor.
func (l Location) Equal(o Location) bool {
	return l.Point == o.Point && l.Well == o.Well && l.Labware == o.Labware
}

func (l Location) String() string {
	switch {
	case l.Well != nil:
		return fmt.Sprintf("%s of %s %s", l.Well.Name(), l.Well.Parent().Name(), l.Point)
	case l.Labware != nil:
		return fmt.Sprintf("%s %s", l.Labware.Name(), l.Point)
	default:
		return l.Point.String()
	}
}

// HasQuirk reports whether the labware behind w carries the quirk.
func HasQuirk(w Well, quirk string) bool {
	if w == nil || w.Parent() == nil {
		return false
	}
	return w.Parent().HasQuirk(quirk)
}

// Target is the optional location argument of a primitive operation.
// The zero value means "wherever the instrument already is".
type Target struct {
	Location *Location
	Well     Well
}

// At targets an explicit location.
func At(loc Location) Target {
	return Target{Location: &loc}
}

// AtWell targets a well, resolved per operation.
func AtWell(w Well) Target {
	return Target{Well: w}
}

// IsZero reports whether the target defers to the location cache.
func (t Target) IsZero() bool {
	return t.Location == nil && t.Well == nil
}

func (t Target) String() string {
	switch {
	case t.Location != nil:
		return t.Location.String()
	case t.Well != nil:
		return fmt.Sprintf("%s of %s", t.Well.Name(), t.Well.Parent().Name())
	default:
		return "current location"
	}
}

// Waypoint is one leg of a planned move.
type Waypoint struct {
	Point         Point
	CriticalPoint CriticalPoint
}
