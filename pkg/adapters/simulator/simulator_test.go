package simulator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/aliquot/pkg/adapters/simulator"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.Hardware         = (*simulator.Simulator)(nil)
	_ ports.ModuleController = (*simulator.Simulator)(nil)
)

func newSim(t *testing.T) *simulator.Simulator {
	t.Helper()
	sim, err := simulator.New(simulator.WithInstrument(domain.MountLeft, "p300_single_v1"))
	require.NoError(t, err)
	return sim
}

func TestSimulator_UnknownModel(t *testing.T) {
	_, err := simulator.New(simulator.WithInstrument(domain.MountLeft, "nope"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSimulator_LiquidHandling(t *testing.T) {
	ctx := context.Background()
	sim := newSim(t)

	err := sim.Aspirate(ctx, domain.MountLeft, 10, 1)
	assert.ErrorIs(t, err, domain.ErrHardwareFault, "no tip")

	require.NoError(t, sim.PickUpTip(ctx, domain.MountLeft, 51.83, 3, 1))
	assert.ErrorIs(t, sim.PickUpTip(ctx, domain.MountLeft, 51.83, 3, 1), domain.ErrHardwareFault)

	require.NoError(t, sim.Aspirate(ctx, domain.MountLeft, 200, 1))
	assert.ErrorIs(t, sim.Aspirate(ctx, domain.MountLeft, 200, 1), domain.ErrHardwareFault, "over working volume")
	assert.ErrorIs(t, sim.Dispense(ctx, domain.MountLeft, 250, 1), domain.ErrHardwareFault, "more than held")
	require.NoError(t, sim.Dispense(ctx, domain.MountLeft, 150, 1))

	info, err := sim.AttachedInstrument(ctx, domain.MountLeft)
	require.NoError(t, err)
	assert.True(t, info.HasTip)
	assert.InDelta(t, 50, info.CurrentVolume, 1e-9)

	require.NoError(t, sim.DropTip(ctx, domain.MountLeft))
	info, err = sim.AttachedInstrument(ctx, domain.MountLeft)
	require.NoError(t, err)
	assert.False(t, info.HasTip)
	assert.Zero(t, info.CurrentVolume)
}

func TestSimulator_FaultInjection(t *testing.T) {
	ctx := context.Background()
	sim := newSim(t)
	boom := errors.New("stall")

	sim.FailOnNth("move_to", 2, boom)

	require.NoError(t, sim.MoveTo(ctx, domain.MountLeft, domain.Point{X: 1}, "", 400))
	err := sim.MoveTo(ctx, domain.MountLeft, domain.Point{X: 2}, "", 400)
	assert.ErrorIs(t, err, domain.ErrHardwareFault)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, sim.MoveTo(ctx, domain.MountLeft, domain.Point{X: 3}, "", 400), "faults are one-shot")

	assert.Equal(t, 3, sim.CallCount("move_to"), "failed calls are recorded too")

	pos, err := sim.GantryPosition(ctx, domain.MountLeft, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Point{X: 3}, pos)
}

func TestSimulator_Modules(t *testing.T) {
	ctx := context.Background()
	sim := newSim(t)

	assert.ErrorIs(t, sim.SetTemperature(ctx, "temp", 4), domain.ErrHardwareFault)

	require.NoError(t, sim.ConnectModule(ctx, "tc", domain.ModuleThermocycler))
	require.NoError(t, sim.OpenLid(ctx, "tc"))
	require.NoError(t, sim.SetTemperature(ctx, "tc", 95))
	require.NoError(t, sim.SetLidTemperature(ctx, "tc", 105))

	state, ok := sim.Module("tc")
	require.True(t, ok)
	assert.True(t, state.LidOpen)
	assert.Equal(t, 95.0, state.Temperature)
	assert.Equal(t, 105.0, state.LidTemperature)

	require.NoError(t, sim.DeactivateModule(ctx, "tc"))
	state, _ = sim.Module("tc")
	assert.Zero(t, state.Temperature)
}

func TestSimulator_PauseAndDelay(t *testing.T) {
	sim := newSim(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, sim.Pause(ctx))
	assert.True(t, sim.Paused())
	require.NoError(t, sim.Resume(ctx))
	assert.False(t, sim.Paused())

	cancel()
	assert.ErrorIs(t, sim.Delay(ctx, 0), context.Canceled)
	assert.Equal(t, []string{"pause", "resume", "delay"}, sim.Methods())
}
