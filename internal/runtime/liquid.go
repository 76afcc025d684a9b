package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
)

const (
	// DefaultAirGapHeight is how far above the well top air gaps are taken.
	DefaultAirGapHeight = 5.0

	defaultTouchRadius = 1.0
	defaultTouchOffset = -1.0
	defaultTouchSpeed  = 60.0
	minTouchSpeed      = 20.0
	maxTouchSpeed      = 80.0
)

// Aspirate draws volume µL at target. A zero volume fills the tip to its
// working volume. The plunger is prepared above the well whenever the tip
// is empty so no air is pushed into the liquid.
func (i *Instrument) Aspirate(ctx context.Context, volume float64, target domain.Target, rate float64) error {
	if err := i.requireTip("aspirate"); err != nil {
		return err
	}
	if err := requireRate(rate); err != nil {
		return err
	}
	if volume < 0 {
		return fmt.Errorf("%w: negative aspirate volume %v", domain.ErrInvalidArgument, volume)
	}
	if volume == 0 {
		volume = i.workingVolume - i.currentVolume
	}
	if i.currentVolume+volume > i.workingVolume+volumeTolerance {
		return fmt.Errorf("%w: aspirating %v µL would exceed working volume %v µL (holding %v µL)",
			domain.ErrInvalidArgument, volume, i.workingVolume, i.currentVolume)
	}
	loc, _, err := i.resolveLiquid("aspirate", target, i.clearances.Aspirate)
	if err != nil {
		return err
	}

	args := map[string]any{"volume": volume, "location": loc.String(), "rate": rate}
	return i.run(ctx, "aspirate", args, func() error {
		if i.currentVolume == 0 {
			if loc.Well != nil {
				if err := i.moveTo(ctx, loc.Well.Top(0)); err != nil {
					return err
				}
			} else {
				i.logger.WarnContext(ctx, "aspirate location is not in a well, plunger may push air into the liquid", "location", loc.String())
			}
			if err := i.session.hw.PrepareForAspirate(ctx, i.mount); err != nil {
				return err
			}
			if err := i.moveTo(ctx, loc); err != nil {
				return err
			}
		} else if cached, ok := i.session.LocationCache(); !ok || !cached.Equal(loc) {
			if err := i.moveTo(ctx, loc); err != nil {
				return err
			}
		}
		if err := i.session.hw.Aspirate(ctx, i.mount, volume, rate); err != nil {
			return err
		}
		i.currentVolume += volume
		return nil
	})
}

// Dispense pushes out volume µL at target. A zero volume empties the tip.
func (i *Instrument) Dispense(ctx context.Context, volume float64, target domain.Target, rate float64) error {
	if err := i.requireTip("dispense"); err != nil {
		return err
	}
	if err := requireRate(rate); err != nil {
		return err
	}
	if volume < 0 {
		return fmt.Errorf("%w: negative dispense volume %v", domain.ErrInvalidArgument, volume)
	}
	if volume == 0 {
		volume = i.currentVolume
	}
	if volume > i.currentVolume+volumeTolerance {
		return fmt.Errorf("%w: dispensing %v µL but only %v µL held", domain.ErrInvalidArgument, volume, i.currentVolume)
	}
	loc, explicit, err := i.resolveLiquid("dispense", target, i.clearances.Dispense)
	if err != nil {
		return err
	}

	args := map[string]any{"volume": volume, "location": loc.String(), "rate": rate}
	return i.run(ctx, "dispense", args, func() error {
		if explicit {
			if err := i.moveTo(ctx, loc); err != nil {
				return err
			}
		}
		if err := i.session.hw.Dispense(ctx, i.mount, volume, rate); err != nil {
			return err
		}
		i.currentVolume = max(0, i.currentVolume-volume)
		return nil
	})
}

// Mix aspirates and dispenses volume µL at target repetitions times.
func (i *Instrument) Mix(ctx context.Context, repetitions int, volume float64, target domain.Target, rate float64) error {
	if err := i.requireTip("mix"); err != nil {
		return err
	}
	if repetitions < 1 {
		return fmt.Errorf("%w: mix repetitions must be >= 1, got %d", domain.ErrInvalidArgument, repetitions)
	}
	if err := requireRate(rate); err != nil {
		return err
	}
	loc, _, err := i.resolveLiquid("mix", target, i.clearances.Aspirate)
	if err != nil {
		return err
	}

	args := map[string]any{"repetitions": repetitions, "volume": volume, "location": loc.String(), "rate": rate}
	return i.run(ctx, "mix", args, func() error {
		if err := i.Aspirate(ctx, volume, target, rate); err != nil {
			return err
		}
		for n := 0; n < repetitions-1; n++ {
			if err := i.Dispense(ctx, volume, domain.Target{}, rate); err != nil {
				return err
			}
			if err := i.Aspirate(ctx, volume, domain.Target{}, rate); err != nil {
				return err
			}
		}
		return i.Dispense(ctx, volume, domain.Target{}, rate)
	})
}

// BlowOut expels everything left in the tip, at target when one is given.
func (i *Instrument) BlowOut(ctx context.Context, target domain.Target) error {
	if err := i.requireTip("blow out"); err != nil {
		return err
	}
	loc, explicit, err := i.resolveBlowOut(target)
	if err != nil {
		return err
	}

	return i.run(ctx, "blow_out", map[string]any{"location": loc.String()}, func() error {
		if explicit {
			if err := i.moveTo(ctx, loc); err != nil {
				return err
			}
		}
		if err := i.session.hw.BlowOut(ctx, i.mount); err != nil {
			return err
		}
		i.currentVolume = 0
		return nil
	})
}

type touchConfig struct {
	radius  float64
	vOffset float64
	speed   float64
}

// TouchTipOption adjusts a single TouchTip.
type TouchTipOption func(*touchConfig)

// TouchRadius sets the fraction of the well radius the tip travels to.
func TouchRadius(r float64) TouchTipOption {
	return func(c *touchConfig) {
		c.radius = r
	}
}

// TouchOffset sets the height of the touches relative to the well top.
func TouchOffset(mm float64) TouchTipOption {
	return func(c *touchConfig) {
		c.vOffset = mm
	}
}

// TouchSpeed sets the speed of the touches, clamped to [20, 80] mm/s.
func TouchSpeed(mmPerSec float64) TouchTipOption {
	return func(c *touchConfig) {
		c.speed = mmPerSec
	}
}

// TouchTip touches the tip against the right, left, back and front walls
// of the well to knock off hanging droplets.
func (i *Instrument) TouchTip(ctx context.Context, target domain.Target, opts ...TouchTipOption) error {
	if err := i.requireTip("touch tip"); err != nil {
		return err
	}
	cfg := touchConfig{radius: defaultTouchRadius, vOffset: defaultTouchOffset, speed: defaultTouchSpeed}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.radius <= 0 {
		return fmt.Errorf("%w: touch tip radius must be > 0, got %v", domain.ErrInvalidArgument, cfg.radius)
	}
	if clamped := min(max(cfg.speed, minTouchSpeed), maxTouchSpeed); clamped != cfg.speed {
		i.logger.WarnContext(ctx, "touch tip speed out of range, clamping", "speed", cfg.speed, "clamped", clamped)
		cfg.speed = clamped
	}
	well, err := i.resolveWell("touch tip", target)
	if err != nil {
		return err
	}

	args := map[string]any{"well": domain.WellID(well), "radius": cfg.radius, "v_offset": cfg.vOffset, "speed": cfg.speed}
	return i.run(ctx, "touch_tip", args, func() error {
		if err := i.moveTo(ctx, well.Top(0)); err != nil {
			return err
		}
		edges := [][2]float64{{cfg.radius, 0}, {-cfg.radius, 0}, {0, cfg.radius}, {0, -cfg.radius}}
		for _, e := range edges {
			p := well.FromCenterCartesian(e[0], e[1], 1).Add(domain.Point{Z: cfg.vOffset})
			if err := i.move(ctx, domain.Location{Point: p, Well: well}, false, 0, cfg.speed); err != nil {
				return err
			}
		}
		return nil
	})
}

// AirGap draws volume µL of air height mm above the top of the well the
// instrument is in. A zero volume fills the tip to its working volume.
func (i *Instrument) AirGap(ctx context.Context, volume, height float64) error {
	if err := i.requireTip("air gap"); err != nil {
		return err
	}
	if volume < 0 {
		return fmt.Errorf("%w: negative air gap volume %v", domain.ErrInvalidArgument, volume)
	}
	if volume == 0 {
		volume = i.workingVolume - i.currentVolume
	}
	if i.currentVolume+volume > i.workingVolume+volumeTolerance {
		return fmt.Errorf("%w: air gap of %v µL would exceed working volume %v µL (holding %v µL)",
			domain.ErrInvalidArgument, volume, i.workingVolume, i.currentVolume)
	}
	well, err := i.resolveWell("air gap", domain.Target{})
	if err != nil {
		return err
	}

	args := map[string]any{"volume": volume, "height": height, "well": domain.WellID(well)}
	return i.run(ctx, "air_gap", args, func() error {
		if err := i.moveTo(ctx, well.Top(height)); err != nil {
			return err
		}
		if err := i.session.hw.Aspirate(ctx, i.mount, volume, 1.0); err != nil {
			return err
		}
		i.currentVolume += volume
		return nil
	})
}
