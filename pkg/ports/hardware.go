package ports

import (
	"context"
	"time"

	"github.com/aretw0/aliquot/pkg/domain"
)

// Hardware is the robot driver consumed by the core. Every call blocks until
// the robot has finished or failed; failures wrap domain.ErrHardwareFault.
type Hardware interface {
	MoveTo(ctx context.Context, mount domain.Mount, p domain.Point, cp domain.CriticalPoint, speed float64) error
	GantryPosition(ctx context.Context, mount domain.Mount, cp domain.CriticalPoint) (domain.Point, error)

	Aspirate(ctx context.Context, mount domain.Mount, volume, rate float64) error
	Dispense(ctx context.Context, mount domain.Mount, volume, rate float64) error
	BlowOut(ctx context.Context, mount domain.Mount) error
	PrepareForAspirate(ctx context.Context, mount domain.Mount) error

	PickUpTip(ctx context.Context, mount domain.Mount, tipLength float64, presses int, increment float64) error
	DropTip(ctx context.Context, mount domain.Mount) error
	SetCurrentTipRackDiameter(ctx context.Context, mount domain.Mount, diameter float64) error
	SetWorkingVolume(ctx context.Context, mount domain.Mount, volume float64) error

	HomeZ(ctx context.Context, mount domain.Mount) error
	HomePlunger(ctx context.Context, mount domain.Mount) error
	Home(ctx context.Context) error

	AttachedInstrument(ctx context.Context, mount domain.Mount) (domain.InstrumentInfo, error)
	SetFlowRates(ctx context.Context, mount domain.Mount, rates domain.FlowRates) error
	SetPlungerSpeeds(ctx context.Context, mount domain.Mount, speeds domain.PlungerSpeeds) error

	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Delay(ctx context.Context, d time.Duration) error
}

// ModuleController drives deck modules, addressed by module ID.
type ModuleController interface {
	ConnectModule(ctx context.Context, id string, kind domain.ModuleKind) error
	SetTemperature(ctx context.Context, id string, celsius float64) error
	SetLidTemperature(ctx context.Context, id string, celsius float64) error
	DeactivateModule(ctx context.Context, id string) error
	EngageMagnet(ctx context.Context, id string, height float64) error
	DisengageMagnet(ctx context.Context, id string) error
	OpenLid(ctx context.Context, id string) error
	CloseLid(ctx context.Context, id string) error
}

// Geometry turns a pair of locations into collision-free waypoints.
type Geometry interface {
	// PositionFor returns the absolute origin of a location.
	PositionFor(loc domain.Location) domain.Point
	// PlanMoves returns the ordered waypoints from one location to another.
	// The last waypoint is always the target.
	PlanMoves(from, to domain.Location, forceDirect bool, minimumZ float64) ([]domain.Waypoint, error)
}
