package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/ports"
)

const (
	defaultPresses   = 3
	defaultIncrement = 1.0
)

type pickUpConfig struct {
	presses   int
	increment float64
}

// PickUpOption adjusts a single PickUpTip.
type PickUpOption func(*pickUpConfig)

// Presses sets how many times the nozzle is pressed into the tip.
func Presses(n int) PickUpOption {
	return func(c *pickUpConfig) {
		c.presses = n
	}
}

// Increment sets how much deeper each successive press goes, in mm.
func Increment(mm float64) PickUpOption {
	return func(c *pickUpConfig) {
		c.increment = mm
	}
}

// PickUpTip attaches a tip. The target may be a tip-rack well, a location
// in one, a location anchored to a whole rack (its next tip), or empty for
// the next available tip across the assigned racks.
func (i *Instrument) PickUpTip(ctx context.Context, target domain.Target, opts ...PickUpOption) error {
	if i.hasTip {
		return fmt.Errorf("%w: %s mount already has a tip", domain.ErrInvalidArgument, i.mount)
	}
	cfg := pickUpConfig{presses: defaultPresses, increment: defaultIncrement}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.presses < 1 {
		return fmt.Errorf("%w: presses must be >= 1, got %d", domain.ErrInvalidArgument, cfg.presses)
	}

	rack, well, err := i.resolveTip(ctx, target)
	if err != nil {
		return err
	}

	args := map[string]any{"well": domain.WellID(well), "presses": cfg.presses, "increment": cfg.increment}
	return i.run(ctx, "pick_up_tip", args, func() error {
		hw := i.session.hw
		if err := i.moveTo(ctx, well.Top(0)); err != nil {
			return err
		}
		if err := hw.SetCurrentTipRackDiameter(ctx, i.mount, well.Diameter()); err != nil {
			return err
		}
		if err := hw.PickUpTip(ctx, i.mount, rack.TipLength(), cfg.presses, cfg.increment); err != nil {
			return err
		}
		i.hasTip = true
		i.currentVolume = 0

		working := i.maxVolume
		if tipMax := well.MaxVolume(); tipMax > 0 {
			working = min(working, tipMax)
		}
		if err := hw.SetWorkingVolume(ctx, i.mount, working); err != nil {
			return err
		}
		i.workingVolume = working
		i.attachedTip = well
		i.lastTip = well

		if err := rack.UseTips(ctx, well, i.channels); err != nil {
			if !errors.Is(err, domain.ErrTipUnavailable) {
				return fmt.Errorf("failed to mark %s used: %w", domain.WellID(well), err)
			}
			i.logger.WarnContext(ctx, "picked up a tip the tracker lists as used", "well", domain.WellID(well))
		}
		return nil
	})
}

// resolveTip turns a pick-up target into a rack and the well to pick from.
func (i *Instrument) resolveTip(ctx context.Context, t domain.Target) (ports.TipRack, domain.Well, error) {
	var w domain.Well
	switch {
	case t.Well != nil:
		w = t.Well
	case t.Location != nil && t.Location.Well != nil:
		w = t.Location.Well
	case t.Location != nil && t.Location.Labware != nil:
		rack, err := asTipRack(t.Location.Labware)
		if err != nil {
			return nil, nil, err
		}
		next, ok, err := rack.NextTip(ctx, i.channels, nil)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s is empty", domain.ErrOutOfTips, rack.ID())
		}
		return rack, next, nil
	case t.Location != nil:
		return nil, nil, fmt.Errorf("%w: pick up location %s is not in a tip rack", domain.ErrInvalidArgument, t.Location)
	default:
		return i.nextAvailableTip(ctx)
	}
	rack, err := asTipRack(w.Parent())
	if err != nil {
		return nil, nil, err
	}
	return rack, w, nil
}

func asTipRack(lw domain.Labware) (ports.TipRack, error) {
	rack, ok := lw.(ports.TipRack)
	if !ok || lw == nil || !lw.IsTipRack() {
		return nil, fmt.Errorf("%w: %v is not a tip rack", domain.ErrInvalidArgument, lw)
	}
	return rack, nil
}

// nextAvailableTip walks the assigned racks in order, starting at the
// starting tip's rack when one is set.
func (i *Instrument) nextAvailableTip(ctx context.Context) (ports.TipRack, domain.Well, error) {
	racks := i.tipRacks
	start := i.startingTip
	if start != nil {
		if idx := i.rackIndex(start.Parent()); idx >= 0 {
			racks = racks[idx:]
		}
	}
	for n, rack := range racks {
		var from domain.Well
		if n == 0 {
			from = start
		}
		w, ok, err := rack.NextTip(ctx, i.channels, from)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return rack, w, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %d rack(s) on %s mount", domain.ErrOutOfTips, len(i.tipRacks), i.mount)
}

// NextTipCapacity reports the volume of the tip the allocator would hand
// out next. ok is false when every rack is exhausted.
func (i *Instrument) NextTipCapacity(ctx context.Context) (capacity float64, ok bool, err error) {
	_, w, err := i.nextAvailableTip(ctx)
	if errors.Is(err, domain.ErrOutOfTips) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if v := w.MaxVolume(); v > 0 {
		return v, true, nil
	}
	return i.maxVolume, true, nil
}

// DropTip releases the tip into the trash, or into target when given.
func (i *Instrument) DropTip(ctx context.Context, target domain.Target) error {
	if err := i.requireTip("drop tip"); err != nil {
		return err
	}
	loc, well, err := i.resolveDropTip(target)
	if err != nil {
		return err
	}
	return i.run(ctx, "drop_tip", map[string]any{"location": loc.String()}, func() error {
		return i.dropAt(ctx, loc, well)
	})
}

// ReturnTip puts the tip back where it was picked up from. The drop into
// the rack publishes its own drop_tip events inside return_tip.
func (i *Instrument) ReturnTip(ctx context.Context) error {
	if i.lastTip == nil {
		return fmt.Errorf("%w: no tip was picked up on %s mount", domain.ErrUnresolvedLocation, i.mount)
	}
	if err := i.requireTip("return tip"); err != nil {
		return err
	}
	well := i.lastTip
	loc := well.Bottom(dropTipHeight)
	return i.run(ctx, "return_tip", map[string]any{"well": domain.WellID(well)}, func() error {
		return i.run(ctx, "drop_tip", map[string]any{"location": loc.String()}, func() error {
			return i.dropAt(ctx, loc, well)
		})
	})
}

// dropAt moves to loc and ejects the tip. Landing in a tip rack puts the
// tip back into tracking when the tracker agrees the well is empty.
func (i *Instrument) dropAt(ctx context.Context, loc domain.Location, well domain.Well) error {
	if err := i.moveTo(ctx, loc); err != nil {
		return err
	}
	if err := i.session.hw.DropTip(ctx, i.mount); err != nil {
		return err
	}
	i.hasTip = false
	i.attachedTip = nil
	i.currentVolume = 0
	i.workingVolume = i.maxVolume
	i.lastTip = nil

	if lw := well.Parent(); lw != nil && lw.IsTipRack() {
		rack, err := asTipRack(lw)
		if err == nil {
			err = rack.ReturnTips(ctx, well, i.channels)
		}
		if err != nil {
			i.logger.WarnContext(ctx, "failed to restore returned tip", "well", domain.WellID(well), "err", err)
		}
	}
	return nil
}
