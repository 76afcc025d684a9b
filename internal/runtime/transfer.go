package runtime

import (
	"context"

	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/transfer"
)

// TransferOption adjusts the options of a compound transfer.
type TransferOption func(*domain.TransferOptions)

// WithNewTip sets when tips are changed.
func WithNewTip(p domain.TipPolicy) TransferOption {
	return func(o *domain.TransferOptions) {
		o.NewTip = p
	}
}

// WithAirGap takes an air gap of v µL after every dispense.
func WithAirGap(v float64) TransferOption {
	return func(o *domain.TransferOptions) {
		o.AirGap = v
	}
}

// WithCarryover allows or forbids splitting volumes larger than the tip.
func WithCarryover(enabled bool) TransferOption {
	return func(o *domain.TransferOptions) {
		o.Carryover = enabled
	}
}

// WithCurve shapes gradient volumes. f maps [0, 1] onto [0, 1].
func WithCurve(f func(float64) float64) TransferOption {
	return func(o *domain.TransferOptions) {
		o.Curve = f
	}
}

// WithDisposalVolume overrides the extra volume a distribute aspirates.
func WithDisposalVolume(v float64) TransferOption {
	return func(o *domain.TransferOptions) {
		o.DisposalVolume = &v
	}
}

// WithMixBefore mixes the source before each aspirate.
func WithMixBefore(repetitions int, volume float64) TransferOption {
	return func(o *domain.TransferOptions) {
		o.MixBefore = &domain.MixSpec{Repetitions: repetitions, Volume: volume}
	}
}

// WithMixAfter mixes the destination after each dispense.
func WithMixAfter(repetitions int, volume float64) TransferOption {
	return func(o *domain.TransferOptions) {
		o.MixAfter = &domain.MixSpec{Repetitions: repetitions, Volume: volume}
	}
}

// WithDropTip sets where used tips go.
func WithDropTip(s domain.DropTipStrategy) TransferOption {
	return func(o *domain.TransferOptions) {
		o.DropTip = s
	}
}

// WithBlowOut sets whether leftover liquid is blown into the trash after each cycle.
func WithBlowOut(s domain.BlowOutStrategy) TransferOption {
	return func(o *domain.TransferOptions) {
		o.BlowOut = s
	}
}

// WithTouchTip sets whether the tip touches the walls after each liquid move.
func WithTouchTip(s domain.TouchTipStrategy) TransferOption {
	return func(o *domain.TransferOptions) {
		o.TouchTip = s
	}
}

// Transfer moves volume from each source to its paired destination.
func (i *Instrument) Transfer(ctx context.Context, volume domain.Volume, sources, dests []domain.Well, opts ...TransferOption) error {
	return i.RunTransfer(ctx, newRequest(domain.ModeTransfer, volume, sources, dests, opts))
}

// Distribute moves volume from one source into every destination.
func (i *Instrument) Distribute(ctx context.Context, volume domain.Volume, source domain.Well, dests []domain.Well, opts ...TransferOption) error {
	return i.RunTransfer(ctx, newRequest(domain.ModeDistribute, volume, []domain.Well{source}, dests, opts))
}

// Consolidate moves volume from every source into one destination.
func (i *Instrument) Consolidate(ctx context.Context, volume domain.Volume, sources []domain.Well, dest domain.Well, opts ...TransferOption) error {
	return i.RunTransfer(ctx, newRequest(domain.ModeConsolidate, volume, sources, []domain.Well{dest}, opts))
}

func newRequest(mode domain.TransferMode, volume domain.Volume, sources, dests []domain.Well, opts []TransferOption) domain.TransferRequest {
	req := domain.TransferRequest{
		Mode:    mode,
		Volume:  volume,
		Sources: sources,
		Dests:   dests,
		Options: domain.DefaultTransferOptions(),
	}
	for _, opt := range opts {
		opt(&req.Options)
	}
	return req
}

// PlanTransfer compiles req against the instrument's current state without
// touching the hardware.
func (i *Instrument) PlanTransfer(ctx context.Context, req domain.TransferRequest) (domain.Plan, error) {
	st := transfer.State{
		MaxVolume:     i.maxVolume,
		MinVolume:     i.minVolume,
		WorkingVolume: i.workingVolume,
		HasTip:        i.hasTip,
	}
	capacity, ok, err := i.NextTipCapacity(ctx)
	if err != nil {
		return nil, err
	}
	st.NextTipMaxVolume, st.HasNextTip = capacity, ok
	if i.trash != nil {
		if wells := i.trash.Wells(); len(wells) > 0 {
			st.Trash = wells[0]
		}
	}
	return transfer.Plan(req, st)
}

// RunTransfer plans req and executes it. The whole transfer is published as
// one command around the events of its primitives.
func (i *Instrument) RunTransfer(ctx context.Context, req domain.TransferRequest) error {
	plan, err := i.PlanTransfer(ctx, req)
	if err != nil {
		return err
	}
	args := map[string]any{
		"sources":      len(req.Sources),
		"destinations": len(req.Dests),
		"new_tip":      req.Options.NewTip.String(),
		"mix":          domain.DeriveMixStrategy(req.Options.MixBefore, req.Options.MixAfter).String(),
		"steps":        len(plan),
	}
	return i.run(ctx, req.Mode.String(), args, func() error {
		i.logger.DebugContext(ctx, "executing transfer plan", "mode", req.Mode.String(), "steps", len(plan))
		return i.Execute(ctx, plan)
	})
}
