package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/ports"
)

const volumeTolerance = 1e-9

// Instrument is the software state of the pipette on one mount. The
// hardware cannot report tips, volumes or positions back, so they are
// tracked here and updated only after the hardware call succeeds.
type Instrument struct {
	session *Session
	mount   domain.Mount
	logger  *slog.Logger

	name      string
	channels  int
	minVolume float64
	maxVolume float64

	hasTip        bool
	attachedTip   domain.Well
	lastTip       domain.Well
	currentVolume float64
	workingVolume float64

	defaultSpeed  float64
	flowRates     domain.FlowRates
	plungerSpeeds domain.PlungerSpeeds
	clearances    domain.Clearances

	tipRacks    []ports.TipRack
	startingTip domain.Well
	trash       domain.Labware
}

// InstrumentOption configures an instrument at load time.
type InstrumentOption func(*Instrument)

// WithTipRacks assigns the racks tips are allocated from, in order.
func WithTipRacks(racks ...ports.TipRack) InstrumentOption {
	return func(i *Instrument) {
		i.tipRacks = append(i.tipRacks, racks...)
	}
}

// WithTrash overrides the session's fixed trash as the drop target.
func WithTrash(trash domain.Labware) InstrumentOption {
	return func(i *Instrument) {
		i.trash = trash
	}
}

// WithStartingTip makes allocation start at the given tip.
func WithStartingTip(w domain.Well) InstrumentOption {
	return func(i *Instrument) {
		i.startingTip = w
	}
}

// WithFlowRates overrides the model's default flow rates.
func WithFlowRates(rates domain.FlowRates) InstrumentOption {
	return func(i *Instrument) {
		i.flowRates = rates
	}
}

// LoadInstrument reads the pipette attached to mount and starts tracking it.
func (s *Session) LoadInstrument(ctx context.Context, mount domain.Mount, opts ...InstrumentOption) (*Instrument, error) {
	info, err := s.hw.AttachedInstrument(ctx, mount)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s mount: %w", mount, err)
	}
	inst := &Instrument{
		session:       s,
		mount:         mount,
		logger:        s.logger.With("mount", string(mount)),
		name:          info.Name,
		channels:      max(info.Channels, 1),
		minVolume:     info.MinVolume,
		maxVolume:     info.MaxVolume,
		hasTip:        info.HasTip,
		currentVolume: info.CurrentVolume,
		workingVolume: info.WorkingVolume,
		defaultSpeed:  s.speed,
		flowRates:     info.FlowRates,
		plungerSpeeds: info.PlungerSpeeds,
		clearances:    domain.DefaultClearances,
		trash:         s.trash,
	}
	if inst.workingVolume <= 0 {
		inst.workingVolume = inst.maxVolume
	}
	for _, opt := range opts {
		opt(inst)
	}
	if inst.startingTip != nil {
		if err := inst.SetStartingTip(inst.startingTip); err != nil {
			return nil, err
		}
	}
	if inst.flowRates != info.FlowRates {
		if err := inst.SetFlowRates(ctx, inst.flowRates); err != nil {
			return nil, err
		}
	}
	s.instruments[mount] = inst
	s.logger.Debug("instrument loaded", "mount", mount, "name", inst.name, "tip_racks", len(inst.tipRacks))
	return inst, nil
}

func (i *Instrument) Mount() domain.Mount { return i.mount }
func (i *Instrument) Name() string { return i.name }
func (i *Instrument) Channels() int { return i.channels }
func (i *Instrument) MinVolume() float64 { return i.minVolume }
func (i *Instrument) MaxVolume() float64 { return i.maxVolume }
func (i *Instrument) HasTip() bool { return i.hasTip }
func (i *Instrument) AttachedTip() domain.Well { return i.attachedTip }
func (i *Instrument) LastTip() domain.Well { return i.lastTip }
func (i *Instrument) CurrentVolume() float64 { return i.currentVolume }
func (i *Instrument) WorkingVolume() float64 { return i.workingVolume }
func (i *Instrument) DefaultSpeed() float64 { return i.defaultSpeed }
func (i *Instrument) FlowRates() domain.FlowRates { return i.flowRates }
func (i *Instrument) Clearances() domain.Clearances { return i.clearances }
func (i *Instrument) Trash() domain.Labware { return i.trash }

// TipRacks returns the assigned racks in allocation order.
func (i *Instrument) TipRacks() []ports.TipRack {
	return append([]ports.TipRack(nil), i.tipRacks...)
}

// SetFlowRates validates and forwards new flow rates.
func (i *Instrument) SetFlowRates(ctx context.Context, rates domain.FlowRates) error {
	if err := rates.Validate(); err != nil {
		return err
	}
	if err := i.session.hw.SetFlowRates(ctx, i.mount, rates); err != nil {
		return err
	}
	i.flowRates = rates
	return nil
}

// SetPlungerSpeeds validates and forwards new plunger speeds.
func (i *Instrument) SetPlungerSpeeds(ctx context.Context, speeds domain.PlungerSpeeds) error {
	if err := speeds.Validate(); err != nil {
		return err
	}
	if err := i.session.hw.SetPlungerSpeeds(ctx, i.mount, speeds); err != nil {
		return err
	}
	i.plungerSpeeds = speeds
	return nil
}

// SetDefaultSpeed sets the gantry speed for moves without an explicit speed.
func (i *Instrument) SetDefaultSpeed(mmPerSec float64) error {
	if mmPerSec <= 0 {
		return fmt.Errorf("%w: speed must be > 0, got %v", domain.ErrInvalidArgument, mmPerSec)
	}
	i.defaultSpeed = mmPerSec
	return nil
}

// SetClearances sets the heights above a well bottom used for aspirate and dispense.
func (i *Instrument) SetClearances(c domain.Clearances) error {
	if c.Aspirate < 0 || c.Dispense < 0 {
		return fmt.Errorf("%w: clearances must not be negative", domain.ErrInvalidArgument)
	}
	i.clearances = c
	return nil
}

// SetStartingTip restricts allocation to begin at w, which must be in an
// assigned rack. A nil well clears it.
func (i *Instrument) SetStartingTip(w domain.Well) error {
	if w == nil {
		i.startingTip = nil
		return nil
	}
	if i.rackIndex(w.Parent()) < 0 {
		return fmt.Errorf("%w: starting tip %s is not in an assigned tip rack", domain.ErrInvalidArgument, domain.WellID(w))
	}
	i.startingTip = w
	return nil
}

// ResetTipTracking marks every tip of every assigned rack available again.
func (i *Instrument) ResetTipTracking(ctx context.Context) error {
	for _, rack := range i.tipRacks {
		if err := rack.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset %s: %w", rack.ID(), err)
		}
	}
	return nil
}

// Snapshot returns a copy of the instrument state.
func (i *Instrument) Snapshot() domain.InstrumentSnapshot {
	snap := domain.InstrumentSnapshot{
		Mount:         i.mount,
		Name:          i.name,
		Channels:      i.channels,
		MinVolume:     i.minVolume,
		MaxVolume:     i.maxVolume,
		HasTip:        i.hasTip,
		AttachedTip:   domain.WellID(i.attachedTip),
		LastTip:       domain.WellID(i.lastTip),
		CurrentVolume: i.currentVolume,
		WorkingVolume: i.workingVolume,
		DefaultSpeed:  i.defaultSpeed,
		FlowRates:     i.flowRates,
		PlungerSpeeds: i.plungerSpeeds,
		Clearances:    i.clearances,
	}
	for _, r := range i.tipRacks {
		snap.TipRacks = append(snap.TipRacks, r.ID())
	}
	if i.trash != nil {
		snap.Trash = i.trash.ID()
	}
	return snap
}

func (i *Instrument) rackIndex(lw domain.Labware) int {
	if lw == nil {
		return -1
	}
	for idx, r := range i.tipRacks {
		if r.ID() == lw.ID() {
			return idx
		}
	}
	return -1
}

func (i *Instrument) requireTip(op string) error {
	if !i.hasTip {
		return fmt.Errorf("%w: cannot %s on %s mount", domain.ErrNoTipAttached, op, i.mount)
	}
	return nil
}

func requireRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: rate must be > 0, got %v", domain.ErrInvalidArgument, rate)
	}
	return nil
}

func (i *Instrument) run(ctx context.Context, command string, args map[string]any, fn func() error) error {
	return i.session.run(ctx, command, i.mount, args, fn)
}
