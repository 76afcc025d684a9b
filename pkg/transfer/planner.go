// Package transfer compiles transfer, distribute and consolidate requests
// into an ordered plan of primitive instrument calls. Planning performs no
// hardware I/O; the plan is executed by the caller, in order.
package transfer

import (
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
)

// AirGapHeight is how far above the well top air gaps are taken.
const AirGapHeight = 5.0

// State is the instrument snapshot the planner sizes its passes from.
type State struct {
	MaxVolume     float64
	MinVolume     float64
	WorkingVolume float64
	HasTip        bool

	// NextTipMaxVolume is the capacity of the tip the allocator would hand
	// out next. HasNextTip is false when the racks are exhausted.
	NextTipMaxVolume float64
	HasNextTip       bool

	// Trash receives blown-out residue. It may be nil when the plan never
	// blows out.
	Trash domain.Well
}

// Plan compiles req into primitive calls.
func Plan(req domain.TransferRequest, st State) (domain.Plan, error) {
	opts, disposal := applyModeOverrides(req.Mode, req.Options, st)
	if opts.AirGap < 0 || disposal < 0 {
		return nil, fmt.Errorf("%w: air gap and disposal volume must not be negative", domain.ErrInvalidArgument)
	}

	capacity, err := operatingCapacity(opts.NewTip, st)
	if err != nil {
		return nil, err
	}
	if err := checkMix("mix before", opts.MixBefore, capacity); err != nil {
		return nil, err
	}
	if err := checkMix("mix after", opts.MixAfter, capacity); err != nil {
		return nil, err
	}

	pairs, err := expandPairs(req.Mode, req.Sources, req.Dests)
	if err != nil {
		return nil, err
	}
	volumes, err := resolveVolumes(req.Volume, len(pairs), opts.Curve)
	if err != nil {
		return nil, err
	}

	b := &builder{opts: opts, hasTip: st.HasTip, trash: st.Trash}
	switch req.Mode {
	case domain.ModeDistribute:
		err = b.distribute(pairs, volumes, capacity, disposal)
	case domain.ModeConsolidate:
		err = b.consolidate(pairs, volumes, capacity)
	default:
		err = b.transfer(pairs, volumes, capacity)
	}
	if err != nil {
		return nil, err
	}
	return b.plan, nil
}

// applyModeOverrides returns the options the mode actually runs with and
// the disposal volume.
func applyModeOverrides(mode domain.TransferMode, opts domain.TransferOptions, st State) (domain.TransferOptions, float64) {
	if opts.Curve == nil {
		opts.Curve = func(x float64) float64 { return x }
	}
	var disposal float64
	switch mode {
	case domain.ModeDistribute:
		opts.MixAfter = nil
		disposal = st.MinVolume
		if opts.DisposalVolume != nil {
			disposal = *opts.DisposalVolume
		}
	case domain.ModeConsolidate:
		opts.MixBefore = nil
	}
	return opts, disposal
}

// checkMix rejects a requested mix the instrument would refuse mid-plan.
func checkMix(what string, spec *domain.MixSpec, capacity float64) error {
	if !spec.Requested() {
		return nil
	}
	switch {
	case spec.Repetitions < 1:
		return fmt.Errorf("%w: %s repetitions must be >= 1, got %d", domain.ErrInvalidArgument, what, spec.Repetitions)
	case spec.Volume < 0:
		return fmt.Errorf("%w: %s volume must not be negative, got %g", domain.ErrInvalidArgument, what, spec.Volume)
	case spec.Volume > capacity+epsilon:
		return fmt.Errorf("%w: %s volume %g exceeds capacity %g", domain.ErrInvalidArgument, what, spec.Volume, capacity)
	}
	return nil
}

// operatingCapacity is the largest volume one pass may hold.
func operatingCapacity(policy domain.TipPolicy, st State) (float64, error) {
	if policy == domain.TipNever {
		if !st.HasTip {
			return 0, fmt.Errorf("%w: tip policy is never", domain.ErrNoTipAttached)
		}
		return st.WorkingVolume, nil
	}
	if st.HasNextTip {
		return min(st.NextTipMaxVolume, st.MaxVolume), nil
	}
	if policy == domain.TipOnce && st.HasTip {
		return st.WorkingVolume, nil
	}
	return 0, domain.ErrOutOfTips
}

type builder struct {
	plan   domain.Plan
	opts   domain.TransferOptions
	hasTip bool
	trash  domain.Well

	// airInTip is an air gap taken after a dispense, pushed out by the next one.
	airInTip float64
}

func (b *builder) add(c domain.Call) {
	b.plan = append(b.plan, c)
}

func (b *builder) acquireTip() {
	if b.hasTip || b.opts.NewTip == domain.TipNever {
		return
	}
	b.add(domain.Call{Method: domain.MethodPickUpTip})
	b.hasTip = true
}

func (b *builder) disposeTip() error {
	if !b.hasTip || b.opts.NewTip == domain.TipNever {
		return nil
	}
	if b.opts.DropTip == domain.DropTipReturn {
		b.add(domain.Call{Method: domain.MethodReturnTip})
	} else {
		b.add(domain.Call{Method: domain.MethodDropTip})
	}
	b.hasTip = false
	b.airInTip = 0
	return nil
}

func (b *builder) aspirate(v float64, w domain.Well) {
	b.add(domain.Call{Method: domain.MethodAspirate, Volume: v, Target: domain.AtWell(w), Rate: 1.0})
}

func (b *builder) dispense(v float64, w domain.Well) {
	b.add(domain.Call{Method: domain.MethodDispense, Volume: v + b.airInTip, Target: domain.AtWell(w), Rate: 1.0})
	b.airInTip = 0
}

func (b *builder) mix(spec *domain.MixSpec, w domain.Well) {
	if !spec.Requested() {
		return
	}
	b.add(domain.Call{
		Method:      domain.MethodMix,
		Repetitions: spec.Repetitions,
		Volume:      spec.Volume,
		Target:      domain.AtWell(w),
		Rate:        1.0,
	})
}

func (b *builder) touchTip(w domain.Well) {
	if b.opts.TouchTip == domain.TouchTipAlways {
		b.add(domain.Call{Method: domain.MethodTouchTip, Target: domain.AtWell(w)})
	}
}

func (b *builder) airGap() {
	if b.opts.AirGap <= 0 {
		return
	}
	b.add(domain.Call{Method: domain.MethodAirGap, Volume: b.opts.AirGap, Height: AirGapHeight})
	b.airInTip = b.opts.AirGap
}

func (b *builder) blowOut() error {
	if b.trash == nil {
		return fmt.Errorf("%w: blow-out needs a trash container", domain.ErrUnresolvedLocation)
	}
	b.add(domain.Call{Method: domain.MethodBlowOut, Target: domain.AtWell(b.trash)})
	b.airInTip = 0
	return nil
}

// finishCycle applies the blow-out strategy and, for ALWAYS, drops the tip.
func (b *builder) finishCycle() error {
	if b.opts.BlowOut == domain.BlowOutTrash {
		if err := b.blowOut(); err != nil {
			return err
		}
	}
	if b.opts.NewTip == domain.TipAlways {
		return b.disposeTip()
	}
	return nil
}

// finish releases the tip a ONCE plan still holds.
func (b *builder) finish() error {
	if b.opts.NewTip == domain.TipOnce {
		return b.disposeTip()
	}
	return nil
}

func (b *builder) startCycle() {
	if b.opts.NewTip == domain.TipAlways {
		b.acquireTip()
	}
}

// transfer moves each pair's volume in one or more capacity-sized passes.
func (b *builder) transfer(pairs []pair, volumes []float64, capacity float64) error {
	type pass struct {
		pair
		volume float64
	}
	var passes []pass
	for i, p := range pairs {
		if volumes[i] == 0 {
			continue
		}
		chunks, err := split(volumes[i], capacity-b.opts.AirGap, b.opts.Carryover)
		if err != nil {
			return err
		}
		for _, v := range chunks {
			passes = append(passes, pass{pair: p, volume: v})
		}
	}
	if len(passes) == 0 {
		return nil
	}

	if b.opts.NewTip == domain.TipOnce {
		b.acquireTip()
	}
	for _, p := range passes {
		b.startCycle()
		b.mix(b.opts.MixBefore, p.source)
		b.aspirate(p.volume, p.source)
		b.touchTip(p.source)
		b.dispense(p.volume, p.dest)
		b.touchTip(p.dest)
		b.mix(b.opts.MixAfter, p.dest)
		b.airGap()
		if err := b.finishCycle(); err != nil {
			return err
		}
	}
	return b.finish()
}

// distribute fills as many destinations per aspirate as the tip holds.
// Every run aspirates the disposal volume on top of its doses and blows it
// into the trash after the last dispense, so each run starts empty.
func (b *builder) distribute(pairs []pair, volumes []float64, capacity, disposal float64) error {
	type dose struct {
		dest   domain.Well
		volume float64
	}
	limit := capacity - disposal - b.opts.AirGap
	var doses []dose
	for i, p := range pairs {
		if volumes[i] == 0 {
			continue
		}
		chunks, err := split(volumes[i], limit, b.opts.Carryover)
		if err != nil {
			return err
		}
		for _, v := range chunks {
			doses = append(doses, dose{dest: p.dest, volume: v})
		}
	}
	if len(doses) == 0 {
		return nil
	}
	source := pairs[0].source

	if b.opts.NewTip == domain.TipOnce {
		b.acquireTip()
	}
	for i := 0; i < len(doses); {
		b.startCycle()
		sum := 0.0
		j := i
		for j < len(doses) && sum+doses[j].volume+disposal+b.opts.AirGap <= capacity+epsilon {
			sum += doses[j].volume
			j++
		}

		b.mix(b.opts.MixBefore, source)
		b.aspirate(sum+disposal, source)
		b.touchTip(source)
		for _, d := range doses[i:j] {
			b.dispense(d.volume, d.dest)
			b.touchTip(d.dest)
		}
		b.airGap()
		if disposal > 0 && b.opts.BlowOut != domain.BlowOutTrash {
			if err := b.blowOut(); err != nil {
				return err
			}
		}
		if err := b.finishCycle(); err != nil {
			return err
		}
		i = j
	}
	return b.finish()
}

// consolidate collects several sources per trip and empties them into the
// single destination.
func (b *builder) consolidate(pairs []pair, volumes []float64, capacity float64) error {
	type draw struct {
		source domain.Well
		volume float64
	}
	var draws []draw
	for i, p := range pairs {
		if volumes[i] == 0 {
			continue
		}
		chunks, err := split(volumes[i], capacity-b.opts.AirGap, b.opts.Carryover)
		if err != nil {
			return err
		}
		for _, v := range chunks {
			draws = append(draws, draw{source: p.source, volume: v})
		}
	}
	if len(draws) == 0 {
		return nil
	}
	dest := pairs[0].dest

	if b.opts.NewTip == domain.TipOnce {
		b.acquireTip()
	}
	for i := 0; i < len(draws); {
		b.startCycle()
		sum := 0.0
		j := i
		for j < len(draws) && sum+draws[j].volume+b.opts.AirGap <= capacity+epsilon {
			sum += draws[j].volume
			j++
		}

		for _, d := range draws[i:j] {
			b.aspirate(d.volume, d.source)
			b.touchTip(d.source)
		}
		b.dispense(sum, dest)
		b.touchTip(dest)
		b.mix(b.opts.MixAfter, dest)
		b.airGap()
		if err := b.finishCycle(); err != nil {
			return err
		}
		i = j
	}
	return b.finish()
}
