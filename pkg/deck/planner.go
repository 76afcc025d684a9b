package deck

import (
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
)

const (
	defaultArcClearance  = 10.0
	defaultWellClearance = 5.0
	defaultMaxZ          = 220.0
)

// Planner implements ports.Geometry with arc moves: lift, traverse, descend.
type Planner struct {
	deck          *Deck
	arcClearance  float64
	wellClearance float64
	maxZ          float64
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithArcClearance sets the margin above the tallest labware for moves between labware.
func WithArcClearance(mm float64) PlannerOption {
	return func(p *Planner) {
		p.arcClearance = mm
	}
}

// WithMaxZ sets the highest reachable Z.
func WithMaxZ(mm float64) PlannerOption {
	return func(p *Planner) {
		p.maxZ = mm
	}
}

// NewPlanner creates a planner over the deck.
func NewPlanner(d *Deck, opts ...PlannerOption) *Planner {
	p := &Planner{
		deck:          d,
		arcClearance:  defaultArcClearance,
		wellClearance: defaultWellClearance,
		maxZ:          defaultMaxZ,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PositionFor returns the location's absolute point.
func (p *Planner) PositionFor(loc domain.Location) domain.Point {
	return loc.Point
}

// PlanMoves returns waypoints ending at to. Moves within one well, or forced
// moves, go straight. Moves within one labware travel just above it; moves
// between labware travel above everything on the deck.
func (p *Planner) PlanMoves(from, to domain.Location, forceDirect bool, minimumZ float64) ([]domain.Waypoint, error) {
	cp := domain.CriticalPointDefault
	if lw := to.ParentLabware(); lw != nil && lw.HasQuirk(domain.QuirkCenterMultichannelOnWell) {
		cp = domain.CriticalPointXYCenter
	}
	dest := domain.Waypoint{Point: to.Point, CriticalPoint: cp}

	if forceDirect || (from.Well != nil && from.Well == to.Well) {
		return []domain.Waypoint{dest}, nil
	}

	fromLw, toLw := from.ParentLabware(), to.ParentLabware()
	var travel float64
	if fromLw != nil && fromLw == toLw {
		travel = toLw.HighestZ() + p.wellClearance
	} else {
		travel = p.deck.HighestZ() + p.arcClearance
	}
	travel = max(travel, from.Point.Z, to.Point.Z, minimumZ)
	if travel > p.maxZ {
		return nil, fmt.Errorf("%w: arc height %.2f exceeds max z %.2f", domain.ErrInvalidArgument, travel, p.maxZ)
	}

	return []domain.Waypoint{
		{Point: domain.Point{X: from.Point.X, Y: from.Point.Y, Z: travel}, CriticalPoint: cp},
		{Point: domain.Point{X: to.Point.X, Y: to.Point.Y, Z: travel}, CriticalPoint: cp},
		dest,
	}, nil
}
