package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
)

// Execute runs the plan's calls in order and stops at the first failure.
// Calls already made are not undone.
func (i *Instrument) Execute(ctx context.Context, plan domain.Plan) error {
	for idx, c := range plan {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("transfer step %d (%s): %w", idx+1, c.Method, err)
		}
		if err := i.call(ctx, c); err != nil {
			return fmt.Errorf("transfer step %d (%s): %w", idx+1, c.Method, err)
		}
	}
	return nil
}

func (i *Instrument) call(ctx context.Context, c domain.Call) error {
	rate := c.Rate
	if rate == 0 {
		rate = 1.0
	}
	switch c.Method {
	case domain.MethodPickUpTip:
		return i.PickUpTip(ctx, c.Target)
	case domain.MethodDropTip:
		return i.DropTip(ctx, c.Target)
	case domain.MethodReturnTip:
		return i.ReturnTip(ctx)
	case domain.MethodAspirate:
		return i.Aspirate(ctx, c.Volume, c.Target, rate)
	case domain.MethodDispense:
		return i.Dispense(ctx, c.Volume, c.Target, rate)
	case domain.MethodMix:
		return i.Mix(ctx, c.Repetitions, c.Volume, c.Target, rate)
	case domain.MethodBlowOut:
		return i.BlowOut(ctx, c.Target)
	case domain.MethodTouchTip:
		return i.TouchTip(ctx, c.Target)
	case domain.MethodAirGap:
		height := c.Height
		if height == 0 {
			height = DefaultAirGapHeight
		}
		return i.AirGap(ctx, c.Volume, height)
	}
	return fmt.Errorf("%w: unknown method %q", domain.ErrInvalidArgument, c.Method)
}
