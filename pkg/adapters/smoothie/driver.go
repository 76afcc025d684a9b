// Package smoothie drives a Smoothieware motion controller over a serial
// port. It translates the mount-level hardware port into G-code on the six
// gantry axes: X and Y, the Z (left) and A (right) mount axes, and the B
// (left) and C (right) plunger axes.
package smoothie

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/pipette"
)

const axes = "XYZABC"

var homedPosition = map[byte]float64{
	'X': 418, 'Y': 353, 'Z': 218, 'A': 218, 'B': 19, 'C': 19,
}

const (
	pickUpDistance = 10.0
	pickUpSpeed    = 30.0
	dropTipSpeed   = 5.0
	activeCurrent  = 0.5
	dwellCurrent   = 0.05
	currentDelay   = 0.005
)

type instrument struct {
	model           pipette.Model
	hasTip          bool
	tipLength       float64
	tiprackDiameter float64
	current         float64
	working         float64
	flowRates       domain.FlowRates
	speeds          domain.PlungerSpeeds
}

// Driver implements ports.Hardware on a Smoothieware controller.
// Commands are serialized; Pause blocks new commands until Resume.
type Driver struct {
	mu          sync.Mutex
	port        Port
	position    map[byte]float64
	instruments map[domain.Mount]*instrument
	logger      *slog.Logger

	gateMu  sync.Mutex
	running chan struct{}

	models map[domain.Mount]string
}

// Option configures a Driver.
type Option func(*Driver)

// WithInstrument declares the pipette model attached to a mount.
func WithInstrument(mount domain.Mount, model string) Option {
	return func(d *Driver) {
		d.models[mount] = model
	}
}

// WithLogger configures a logger for G-code traffic.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// New creates a driver on an open port. Call Connect before use.
func New(port Port, opts ...Option) (*Driver, error) {
	d := &Driver{
		port:        port,
		position:    make(map[byte]float64, len(axes)),
		instruments: make(map[domain.Mount]*instrument),
		logger:      logging.NewNop(),
		running:     make(chan struct{}),
		models:      make(map[domain.Mount]string),
	}
	close(d.running)
	for _, opt := range opts {
		opt(d)
	}
	for k, v := range homedPosition {
		d.position[k] = v
	}
	for mount, name := range d.models {
		m, err := pipette.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("mount %s: %w", mount, err)
		}
		d.instruments[mount] = &instrument{
			model:     m,
			working:   m.MaxVolume,
			flowRates: m.FlowRates,
			speeds:    m.PlungerSpeeds(),
		}
	}
	return d, nil
}

// Open opens the serial port described by cfg and connects to the controller.
func Open(ctx context.Context, cfg SerialConfig, opts ...Option) (*Driver, error) {
	port, err := OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	d, err := New(port, opts...)
	if err != nil {
		port.Close()
		return nil, err
	}
	if err := d.Connect(ctx); err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

// Connect flushes boot output, clears any halt, selects absolute
// coordinates and reads the current position.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.exchange(""); err != nil {
		return fmt.Errorf("controller not ready: %w", err)
	}
	if _, err := d.exchange(gcodeResetFromError); err != nil {
		return err
	}
	if _, err := d.send(ctx, gcodeAbsoluteCoords); err != nil {
		return err
	}
	return d.updatePosition(ctx)
}

// Close closes the serial port.
func (d *Driver) Close() error {
	return d.port.Close()
}

func (d *Driver) waitRunning(ctx context.Context) error {
	d.gateMu.Lock()
	gate := d.running
	d.gateMu.Unlock()
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) updatePosition(ctx context.Context) error {
	resp, err := d.send(ctx, gcodeCurrentPosition)
	if err != nil {
		return err
	}
	pos, err := parsePosition(resp)
	if err != nil {
		return err
	}
	d.position = pos
	return nil
}

func (d *Driver) instrument(mount domain.Mount) (*instrument, error) {
	inst, ok := d.instruments[mount]
	if !ok {
		return nil, fmt.Errorf("%w: no pipette on %s mount", domain.ErrHardwareFault, mount)
	}
	return inst, nil
}

func mountAxis(mount domain.Mount) byte {
	if mount == domain.MountRight {
		return 'A'
	}
	return 'Z'
}

func plungerAxis(mount domain.Mount) byte {
	if mount == domain.MountRight {
		return 'C'
	}
	return 'B'
}

// move sends a G0 to the given targets at speed mm/s.
func (d *Driver) move(ctx context.Context, targets map[byte]float64, speed float64) error {
	cmd := fmt.Sprintf("%sF%d %s", gcodeMove, int(speed*60), formatAxes(axes, targets))
	if _, err := d.send(ctx, cmd); err != nil {
		return err
	}
	for ax, v := range targets {
		d.position[ax] = v
	}
	return nil
}

// movePlunger raises the plunger current for the move and drops it afterwards.
func (d *Driver) movePlunger(ctx context.Context, mount domain.Mount, pos, speed float64) error {
	ax := plungerAxis(mount)
	if _, err := d.send(ctx, fmt.Sprintf("%s %c%.3f %sP%.3f", gcodeSetCurrent, ax, activeCurrent, gcodeDwell, currentDelay)); err != nil {
		return err
	}
	if err := d.move(ctx, map[byte]float64{ax: pos}, speed); err != nil {
		return err
	}
	_, err := d.send(ctx, fmt.Sprintf("%s %c%.3f %sP%.3f", gcodeSetCurrent, ax, dwellCurrent, gcodeDwell, currentDelay))
	return err
}

// plungerPosition is where the plunger sits while the tip holds volume µL.
func (inst *instrument) plungerPosition(volume float64) float64 {
	return inst.model.Plunger.Bottom + volume/inst.model.ULPerMM
}

// tipOffset is the distance between the nozzle and the critical point.
func (inst *instrument) tipOffset(cp domain.CriticalPoint) float64 {
	if inst.hasTip && cp != domain.CriticalPointNozzle {
		return inst.tipLength
	}
	return 0
}
