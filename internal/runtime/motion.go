package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
)

type moveConfig struct {
	forceDirect bool
	minimumZ    float64
	speed       float64
}

// MoveOption adjusts a single MoveTo.
type MoveOption func(*moveConfig)

// ForceDirect skips the arc and moves straight to the target.
func ForceDirect() MoveOption {
	return func(c *moveConfig) {
		c.forceDirect = true
	}
}

// MinimumZ sets the lowest traverse height of an arc.
func MinimumZ(mm float64) MoveOption {
	return func(c *moveConfig) {
		c.minimumZ = mm
	}
}

// Speed overrides the instrument's default speed for this move.
func Speed(mmPerSec float64) MoveOption {
	return func(c *moveConfig) {
		c.speed = mmPerSec
	}
}

// MoveTo moves the instrument to loc and records it in the location cache.
func (i *Instrument) MoveTo(ctx context.Context, loc domain.Location, opts ...MoveOption) error {
	cfg := moveConfig{speed: i.defaultSpeed}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.speed <= 0 {
		return fmt.Errorf("%w: speed must be > 0, got %v", domain.ErrInvalidArgument, cfg.speed)
	}
	args := map[string]any{"location": loc.String(), "force_direct": cfg.forceDirect}
	if cfg.minimumZ > 0 {
		args["minimum_z_height"] = cfg.minimumZ
	}
	return i.run(ctx, "move_to", args, func() error {
		return i.move(ctx, loc, cfg.forceDirect, cfg.minimumZ, cfg.speed)
	})
}

// moveTo moves at the default speed without publishing events.
func (i *Instrument) moveTo(ctx context.Context, loc domain.Location) error {
	return i.move(ctx, loc, false, 0, i.defaultSpeed)
}

// move plans from the current gantry position and walks every waypoint.
// Any failure leaves the cache empty since the head may have stopped
// anywhere along the path.
func (i *Instrument) move(ctx context.Context, loc domain.Location, forceDirect bool, minimumZ, speed float64) error {
	s := i.session
	from := domain.Location{}
	cp := domain.CriticalPointDefault
	if cached, ok := s.LocationCache(); ok {
		from.Well, from.Labware = cached.Well, cached.Labware
		if lw := cached.ParentLabware(); lw != nil && lw.HasQuirk(domain.QuirkCenterMultichannelOnWell) {
			cp = domain.CriticalPointXYCenter
		}
	}

	pos, err := s.hw.GantryPosition(ctx, i.mount, cp)
	if err != nil {
		s.ClearLocationCache()
		return fmt.Errorf("failed to read gantry position: %w", err)
	}
	from.Point = pos

	waypoints, err := s.geometry.PlanMoves(from, loc, forceDirect, minimumZ)
	if err != nil {
		s.ClearLocationCache()
		return fmt.Errorf("failed to plan move to %s: %w", loc, err)
	}
	for _, wp := range waypoints {
		if err := s.hw.MoveTo(ctx, i.mount, wp.Point, wp.CriticalPoint, speed); err != nil {
			s.ClearLocationCache()
			return err
		}
	}
	s.setCache(loc)
	i.logger.DebugContext(ctx, "moved", "location", loc.String(), "waypoints", len(waypoints))
	return nil
}

// Home clears the location cache, then homes this mount's Z axis and plunger.
func (i *Instrument) Home(ctx context.Context) error {
	return i.run(ctx, "home", nil, func() error {
		i.session.ClearLocationCache()
		if err := i.session.hw.HomeZ(ctx, i.mount); err != nil {
			return err
		}
		return i.session.hw.HomePlunger(ctx, i.mount)
	})
}

// HomePlunger homes the plunger only.
func (i *Instrument) HomePlunger(ctx context.Context) error {
	return i.run(ctx, "home_plunger", nil, func() error {
		return i.session.hw.HomePlunger(ctx, i.mount)
	})
}
