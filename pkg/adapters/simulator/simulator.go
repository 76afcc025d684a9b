// Package simulator provides in-memory robot hardware. It keeps just enough
// physical state to reject impossible requests, records every call it
// receives, and can be told to fail on demand.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/pipette"
)

// HomePosition is where the gantry rests after homing.
var HomePosition = domain.Point{X: 418, Y: 353, Z: 218}

// Call is one recorded hardware request.
type Call struct {
	Method string
	Mount  domain.Mount
	Args   []any
}

type pipetteState struct {
	model           pipette.Model
	hasTip          bool
	tipLength       float64
	tiprackDiameter float64
	current         float64
	working         float64
	flowRates       domain.FlowRates
	speeds          domain.PlungerSpeeds
}

type moduleState struct {
	kind           domain.ModuleKind
	temperature    float64
	lidTemperature float64
	magnetHeight   float64
	lidOpen        bool
}

type fault struct {
	skip int
	err  error
}

// Simulator implements ports.Hardware and ports.ModuleController.
// Safe for concurrent use.
type Simulator struct {
	mu        sync.Mutex
	pipettes  map[domain.Mount]*pipetteState
	positions map[domain.Mount]domain.Point
	modules   map[string]*moduleState
	calls     []Call
	faults    map[string]*fault
	paused    bool
	logger    *slog.Logger

	instruments map[domain.Mount]string
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithInstrument attaches a pipette model to a mount.
func WithInstrument(mount domain.Mount, model string) Option {
	return func(s *Simulator) {
		s.instruments[mount] = model
	}
}

// WithLogger configures a logger for simulated hardware activity.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// New creates a simulator with the configured pipettes attached.
func New(opts ...Option) (*Simulator, error) {
	s := &Simulator{
		pipettes:    make(map[domain.Mount]*pipetteState),
		positions:   make(map[domain.Mount]domain.Point),
		modules:     make(map[string]*moduleState),
		faults:      make(map[string]*fault),
		logger:      logging.NewNop(),
		instruments: make(map[domain.Mount]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	for mount, name := range s.instruments {
		m, err := pipette.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("mount %s: %w", mount, err)
		}
		s.pipettes[mount] = &pipetteState{
			model:     m,
			working:   m.MaxVolume,
			flowRates: m.FlowRates,
			speeds:    m.PlungerSpeeds(),
		}
		s.positions[mount] = HomePosition
	}
	return s, nil
}

// FailOn makes the next call of method fail with err.
func (s *Simulator) FailOn(method string, err error) {
	s.FailOnNth(method, 1, err)
}

// FailOnNth makes the n-th upcoming call of method fail with err.
func (s *Simulator) FailOnNth(method string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = &fault{skip: n - 1, err: err}
}

// Calls returns a copy of every recorded call.
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Methods returns the method names of every recorded call, in order.
func (s *Simulator) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Method
	}
	return out
}

// CallCount counts recorded calls of a method.
func (s *Simulator) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// ClearCalls forgets recorded calls.
func (s *Simulator) ClearCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Paused reports whether Pause was called without a matching Resume.
func (s *Simulator) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// record logs a call and returns an injected fault, if one is due.
// The caller must hold s.mu.
func (s *Simulator) record(method string, mount domain.Mount, args ...any) error {
	s.calls = append(s.calls, Call{Method: method, Mount: mount, Args: args})
	s.logger.Debug("Simulated hardware call", "method", method, "mount", mount, "args", args)

	f, ok := s.faults[method]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(s.faults, method)
	return fmt.Errorf("%w: %s: %w", domain.ErrHardwareFault, method, f.err)
}

func (s *Simulator) pipette(mount domain.Mount) (*pipetteState, error) {
	p, ok := s.pipettes[mount]
	if !ok {
		return nil, fmt.Errorf("%w: no pipette on %s mount", domain.ErrHardwareFault, mount)
	}
	return p, nil
}

func faultf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrHardwareFault}, args...)...)
}

func (s *Simulator) MoveTo(ctx context.Context, mount domain.Mount, p domain.Point, cp domain.CriticalPoint, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("move_to", mount, p, cp, speed); err != nil {
		return err
	}
	if _, err := s.pipette(mount); err != nil {
		return err
	}
	s.positions[mount] = p
	return nil
}

func (s *Simulator) GantryPosition(ctx context.Context, mount domain.Mount, cp domain.CriticalPoint) (domain.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("gantry_position", mount, cp); err != nil {
		return domain.Point{}, err
	}
	pos, ok := s.positions[mount]
	if !ok {
		return HomePosition, nil
	}
	return pos, nil
}

func (s *Simulator) Aspirate(ctx context.Context, mount domain.Mount, volume, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("aspirate", mount, volume, rate); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	if !p.hasTip {
		return faultf("cannot aspirate without a tip")
	}
	if p.current+volume > p.working+1e-9 {
		return faultf("aspirating %.2f would exceed working volume %.2f", volume, p.working)
	}
	p.current += volume
	return nil
}

func (s *Simulator) Dispense(ctx context.Context, mount domain.Mount, volume, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("dispense", mount, volume, rate); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	if volume > p.current+1e-9 {
		return faultf("dispensing %.2f but only %.2f held", volume, p.current)
	}
	p.current = max(0, p.current-volume)
	return nil
}

func (s *Simulator) BlowOut(ctx context.Context, mount domain.Mount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("blow_out", mount); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	p.current = 0
	return nil
}

func (s *Simulator) PrepareForAspirate(ctx context.Context, mount domain.Mount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("prepare_for_aspirate", mount); err != nil {
		return err
	}
	_, err := s.pipette(mount)
	return err
}

func (s *Simulator) PickUpTip(ctx context.Context, mount domain.Mount, tipLength float64, presses int, increment float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("pick_up_tip", mount, tipLength, presses, increment); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	if p.hasTip {
		return faultf("%s already has a tip", mount)
	}
	p.hasTip = true
	p.tipLength = tipLength
	p.current = 0
	return nil
}

func (s *Simulator) DropTip(ctx context.Context, mount domain.Mount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("drop_tip", mount); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	p.hasTip = false
	p.tipLength = 0
	p.current = 0
	p.working = p.model.MaxVolume
	return nil
}

func (s *Simulator) SetCurrentTipRackDiameter(ctx context.Context, mount domain.Mount, diameter float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("set_current_tiprack_diameter", mount, diameter); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	p.tiprackDiameter = diameter
	return nil
}

func (s *Simulator) SetWorkingVolume(ctx context.Context, mount domain.Mount, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("set_working_volume", mount, volume); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	p.working = min(volume, p.model.MaxVolume)
	return nil
}

func (s *Simulator) HomeZ(ctx context.Context, mount domain.Mount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("home_z", mount); err != nil {
		return err
	}
	pos, ok := s.positions[mount]
	if !ok {
		pos = HomePosition
	}
	pos.Z = HomePosition.Z
	s.positions[mount] = pos
	return nil
}

func (s *Simulator) HomePlunger(ctx context.Context, mount domain.Mount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("home_plunger", mount); err != nil {
		return err
	}
	_, err := s.pipette(mount)
	return err
}

func (s *Simulator) Home(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("home", ""); err != nil {
		return err
	}
	for mount := range s.positions {
		s.positions[mount] = HomePosition
	}
	return nil
}

func (s *Simulator) AttachedInstrument(ctx context.Context, mount domain.Mount) (domain.InstrumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("attached_instrument", mount); err != nil {
		return domain.InstrumentInfo{}, err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return domain.InstrumentInfo{}, err
	}
	info := p.model.Info()
	info.HasTip = p.hasTip
	info.CurrentVolume = p.current
	info.WorkingVolume = p.working
	info.FlowRates = p.flowRates
	info.PlungerSpeeds = p.speeds
	return info, nil
}

func (s *Simulator) SetFlowRates(ctx context.Context, mount domain.Mount, rates domain.FlowRates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("set_flow_rates", mount, rates); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	p.flowRates = rates
	return nil
}

func (s *Simulator) SetPlungerSpeeds(ctx context.Context, mount domain.Mount, speeds domain.PlungerSpeeds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("set_plunger_speeds", mount, speeds); err != nil {
		return err
	}
	p, err := s.pipette(mount)
	if err != nil {
		return err
	}
	p.speeds = speeds
	return nil
}

func (s *Simulator) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("pause", ""); err != nil {
		return err
	}
	s.paused = true
	return nil
}

func (s *Simulator) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("resume", ""); err != nil {
		return err
	}
	s.paused = false
	return nil
}

// Delay records the request without sleeping. It still honors cancellation.
func (s *Simulator) Delay(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	err := s.record("delay", "", d)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return ctx.Err()
}
