package smoothie

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/aliquot/pkg/domain"
)

func (d *Driver) MoveTo(ctx context.Context, mount domain.Mount, p domain.Point, cp domain.CriticalPoint, speed float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	targets := map[byte]float64{'X': p.X, 'Y': p.Y}
	targets[mountAxis(mount)] = p.Z + inst.tipOffset(cp)
	return d.move(ctx, targets, speed)
}

func (d *Driver) GantryPosition(ctx context.Context, mount domain.Mount, cp domain.CriticalPoint) (domain.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.updatePosition(ctx); err != nil {
		return domain.Point{}, err
	}
	p := domain.Point{X: d.position['X'], Y: d.position['Y'], Z: d.position[mountAxis(mount)]}
	if inst, ok := d.instruments[mount]; ok {
		p.Z -= inst.tipOffset(cp)
	}
	return p, nil
}

func (d *Driver) Aspirate(ctx context.Context, mount domain.Mount, volume, rate float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	if !inst.hasTip {
		return fmt.Errorf("%w: cannot aspirate without a tip", domain.ErrHardwareFault)
	}
	if inst.current+volume > inst.working+1e-9 {
		return fmt.Errorf("%w: aspirating %.2f would exceed working volume %.2f", domain.ErrHardwareFault, volume, inst.working)
	}
	target := inst.current + volume
	if err := d.movePlunger(ctx, mount, inst.plungerPosition(target), inst.speeds.Aspirate*rate); err != nil {
		return err
	}
	inst.current = target
	return nil
}

func (d *Driver) Dispense(ctx context.Context, mount domain.Mount, volume, rate float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	if volume > inst.current+1e-9 {
		return fmt.Errorf("%w: dispensing %.2f but only %.2f held", domain.ErrHardwareFault, volume, inst.current)
	}
	target := max(0, inst.current-volume)
	if err := d.movePlunger(ctx, mount, inst.plungerPosition(target), inst.speeds.Dispense*rate); err != nil {
		return err
	}
	inst.current = target
	return nil
}

func (d *Driver) BlowOut(ctx context.Context, mount domain.Mount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	if err := d.movePlunger(ctx, mount, inst.model.Plunger.BlowOut, inst.speeds.BlowOut); err != nil {
		return err
	}
	inst.current = 0
	return nil
}

func (d *Driver) PrepareForAspirate(ctx context.Context, mount domain.Mount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	return d.movePlunger(ctx, mount, inst.model.Plunger.Bottom, inst.speeds.Dispense)
}

func (d *Driver) PickUpTip(ctx context.Context, mount domain.Mount, tipLength float64, presses int, increment float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	if inst.hasTip {
		return fmt.Errorf("%w: %s already has a tip", domain.ErrHardwareFault, mount)
	}
	if err := d.movePlunger(ctx, mount, inst.model.Plunger.Bottom, inst.speeds.Dispense); err != nil {
		return err
	}
	ax := mountAxis(mount)
	start := d.position[ax]
	for i, end := 0, max(presses, 1); i < end; i++ {
		dist := pickUpDistance + float64(i)*increment
		if err := d.move(ctx, map[byte]float64{ax: start - dist}, pickUpSpeed); err != nil {
			return err
		}
		if err := d.move(ctx, map[byte]float64{ax: start}, pickUpSpeed); err != nil {
			return err
		}
	}
	inst.hasTip = true
	inst.tipLength = tipLength
	inst.current = 0
	return nil
}

func (d *Driver) DropTip(ctx context.Context, mount domain.Mount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	if err := d.movePlunger(ctx, mount, inst.model.Plunger.Bottom, inst.speeds.Dispense); err != nil {
		return err
	}
	if err := d.movePlunger(ctx, mount, inst.model.Plunger.DropTip, dropTipSpeed); err != nil {
		return err
	}
	if err := d.movePlunger(ctx, mount, inst.model.Plunger.Bottom, inst.speeds.Dispense); err != nil {
		return err
	}
	inst.hasTip = false
	inst.tipLength = 0
	inst.current = 0
	inst.working = inst.model.MaxVolume
	return nil
}

func (d *Driver) SetCurrentTipRackDiameter(ctx context.Context, mount domain.Mount, diameter float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	inst.tiprackDiameter = diameter
	return nil
}

func (d *Driver) SetWorkingVolume(ctx context.Context, mount domain.Mount, volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	inst.working = min(volume, inst.model.MaxVolume)
	return nil
}

func (d *Driver) HomeZ(ctx context.Context, mount domain.Mount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ax := mountAxis(mount)
	if _, err := d.send(ctx, fmt.Sprintf("%s %c", gcodeHome, ax)); err != nil {
		return err
	}
	d.position[ax] = homedPosition[ax]
	return nil
}

func (d *Driver) HomePlunger(ctx context.Context, mount domain.Mount) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	ax := plungerAxis(mount)
	if _, err := d.send(ctx, fmt.Sprintf("%s %c", gcodeHome, ax)); err != nil {
		return err
	}
	d.position[ax] = homedPosition[ax]
	return d.movePlunger(ctx, mount, inst.model.Plunger.Bottom, inst.speeds.Dispense)
}

// Home lifts both mounts before homing the gantry and plungers.
func (d *Driver) Home(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.send(ctx, gcodeHome+" ZA"); err != nil {
		return err
	}
	if _, err := d.send(ctx, gcodeHome+" XYBC"); err != nil {
		return err
	}
	for k, v := range homedPosition {
		d.position[k] = v
	}
	return nil
}

func (d *Driver) AttachedInstrument(ctx context.Context, mount domain.Mount) (domain.InstrumentInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return domain.InstrumentInfo{}, err
	}
	info := inst.model.Info()
	info.HasTip = inst.hasTip
	info.CurrentVolume = inst.current
	info.WorkingVolume = inst.working
	info.FlowRates = inst.flowRates
	info.PlungerSpeeds = inst.speeds
	return info, nil
}

// SetFlowRates stores the rates and derives plunger speeds from them.
func (d *Driver) SetFlowRates(ctx context.Context, mount domain.Mount, rates domain.FlowRates) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	inst.flowRates = rates
	inst.speeds = domain.PlungerSpeeds{
		Aspirate: rates.Aspirate / inst.model.ULPerMM,
		Dispense: rates.Dispense / inst.model.ULPerMM,
		BlowOut:  rates.BlowOut / inst.model.ULPerMM,
	}
	return nil
}

func (d *Driver) SetPlungerSpeeds(ctx context.Context, mount domain.Mount, speeds domain.PlungerSpeeds) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, err := d.instrument(mount)
	if err != nil {
		return err
	}
	inst.speeds = speeds
	inst.flowRates = domain.FlowRates{
		Aspirate: speeds.Aspirate * inst.model.ULPerMM,
		Dispense: speeds.Dispense * inst.model.ULPerMM,
		BlowOut:  speeds.BlowOut * inst.model.ULPerMM,
	}
	return nil
}

// Pause holds every command issued after it until Resume.
func (d *Driver) Pause(ctx context.Context) error {
	d.gateMu.Lock()
	defer d.gateMu.Unlock()
	select {
	case <-d.running:
		d.running = make(chan struct{})
	default:
	}
	return nil
}

func (d *Driver) Resume(ctx context.Context) error {
	d.gateMu.Lock()
	defer d.gateMu.Unlock()
	select {
	case <-d.running:
	default:
		close(d.running)
	}
	return nil
}

// Delay dwells on the controller.
func (d *Driver) Delay(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.send(ctx, fmt.Sprintf("%sP%.3f", gcodeDwell, dur.Seconds()))
	return err
}
