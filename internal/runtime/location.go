package runtime

import (
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
)

// dropTipHeight is how far above a tip-rack well bottom tips are released.
const dropTipHeight = 10.0

// fromCache returns the cached location or ErrUnresolvedLocation.
func (i *Instrument) fromCache(op string) (domain.Location, error) {
	loc, ok := i.session.LocationCache()
	if !ok {
		return domain.Location{}, fmt.Errorf("%w: %s needs a location and none is cached", domain.ErrUnresolvedLocation, op)
	}
	return loc, nil
}

// resolveLiquid resolves an aspirate or dispense target. A well resolves to
// clearance above its bottom, or to its top for a fixed trash. explicit is
// false when the location came from the cache.
func (i *Instrument) resolveLiquid(op string, t domain.Target, clearance float64) (loc domain.Location, explicit bool, err error) {
	switch {
	case t.Well != nil:
		if domain.HasQuirk(t.Well, domain.QuirkFixedTrash) {
			return t.Well.Top(0), true, nil
		}
		return t.Well.Bottom(clearance), true, nil
	case t.Location != nil:
		return *t.Location, true, nil
	}
	loc, err = i.fromCache(op)
	return loc, false, err
}

// resolveBlowOut resolves a well to its top.
func (i *Instrument) resolveBlowOut(t domain.Target) (domain.Location, bool, error) {
	switch {
	case t.Well != nil:
		if lw := t.Well.Parent(); lw != nil && lw.IsTipRack() {
			i.logger.Warn("blowing out into a tip rack", "well", domain.WellID(t.Well))
		}
		return t.Well.Top(0), true, nil
	case t.Location != nil:
		return *t.Location, true, nil
	}
	loc, err := i.fromCache("blow out")
	return loc, false, err
}

// resolveWell returns the well a touch-tip works on: the given one, the
// well of the given location, or the cached well.
func (i *Instrument) resolveWell(op string, t domain.Target) (domain.Well, error) {
	switch {
	case t.Well != nil:
		return t.Well, nil
	case t.Location != nil:
		if t.Location.Well == nil {
			return nil, fmt.Errorf("%w: %s needs a well, got %s", domain.ErrInvalidArgument, op, t.Location)
		}
		return t.Location.Well, nil
	}
	loc, err := i.fromCache(op)
	if err != nil {
		return nil, err
	}
	if loc.Well == nil {
		return nil, fmt.Errorf("%w: %s needs a well but the cached location %s has none", domain.ErrUnresolvedLocation, op, loc)
	}
	return loc.Well, nil
}

// resolveDropTip returns where to release a tip and the well it lands in.
// Without a target the tip goes to the top of the instrument's trash.
func (i *Instrument) resolveDropTip(t domain.Target) (domain.Location, domain.Well, error) {
	var w domain.Well
	switch {
	case t.Well != nil:
		w = t.Well
	case t.Location != nil:
		if t.Location.Well == nil {
			return domain.Location{}, nil, fmt.Errorf("%w: drop tip location %s is not in a well", domain.ErrInvalidArgument, t.Location)
		}
		return *t.Location, t.Location.Well, nil
	default:
		if i.trash == nil || len(i.trash.Wells()) == 0 {
			return domain.Location{}, nil, fmt.Errorf("%w: no trash container for %s mount", domain.ErrUnresolvedLocation, i.mount)
		}
		w = i.trash.Wells()[0]
		return w.Top(0), w, nil
	}
	if domain.HasQuirk(w, domain.QuirkFixedTrash) {
		return w.Top(0), w, nil
	}
	return w.Bottom(dropTipHeight), w, nil
}
