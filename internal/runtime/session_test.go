package runtime_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/adapters/simulator"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/labware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_FixedTrash(t *testing.T) {
	f := newFixture(t)

	trash := f.session.FixedTrash()
	require.NotNil(t, trash)
	assert.Equal(t, runtime.TrashID, trash.ID())
	assert.True(t, trash.HasQuirk(domain.QuirkFixedTrash))

	lw, ok := f.session.Deck().At("12")
	require.True(t, ok)
	assert.Equal(t, trash.ID(), lw.ID())
	assert.Equal(t, []string{"plate", "tips", "trash"}, f.session.LabwareIDs())
}

func TestSession_LoadLabware(t *testing.T) {
	f := newFixture(t)

	lw, err := f.session.LoadLabware("usascientific_12_reservoir_22ml", "5")
	require.NoError(t, err)
	assert.Equal(t, "usascientific_12_reservoir_22ml-5", lw.ID())

	got, err := f.session.Labware(lw.ID())
	require.NoError(t, err)
	assert.Same(t, lw, got)

	_, err = f.session.LoadLabware("corning_96_wellplate_360ul_flat", "6", labware.WithID("plate"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "duplicate id")

	_, err = f.session.LoadLabware("corning_96_wellplate_360ul_flat", "5")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "occupied slot")

	_, err = f.session.LoadLabware("corning_96_wellplate_360ul_flat", "13")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "unknown slot")

	_, err = f.session.Labware("missing")
	assert.ErrorIs(t, err, domain.ErrLabwareNotFound)
}

func TestSession_LocationCache(t *testing.T) {
	f := newFixture(t)
	a1 := well(t, f.plate, "A1")

	_, ok := f.session.LocationCache()
	assert.False(t, ok, "empty after load")

	require.NoError(t, f.pip.MoveTo(f.ctx, a1.Top(0)))
	cached, ok := f.session.LocationCache()
	require.True(t, ok)
	assert.True(t, cached.Equal(a1.Top(0)))

	t.Run("home clears it", func(t *testing.T) {
		require.NoError(t, f.session.Home(f.ctx))
		_, ok := f.session.LocationCache()
		assert.False(t, ok)
	})

	t.Run("instrument home clears it", func(t *testing.T) {
		require.NoError(t, f.pip.MoveTo(f.ctx, a1.Top(0)))
		f.reset()
		require.NoError(t, f.pip.Home(f.ctx))
		assert.Equal(t, []string{"home_z", "home_plunger"}, f.sim.Methods())
		_, ok := f.session.LocationCache()
		assert.False(t, ok)
	})

	t.Run("explicit clear", func(t *testing.T) {
		require.NoError(t, f.pip.MoveTo(f.ctx, a1.Top(0)))
		f.session.ClearLocationCache()
		_, ok := f.session.LocationCache()
		assert.False(t, ok)
	})

	t.Run("reconnect clears it", func(t *testing.T) {
		require.NoError(t, f.pip.MoveTo(f.ctx, a1.Top(0)))
		f.session.Reconnect(f.sim)
		_, ok := f.session.LocationCache()
		assert.False(t, ok)
	})
}

// assertNoImplicitLocation checks that calls relying on the cached
// location fail without touching the hardware.
func assertNoImplicitLocation(t *testing.T, f *fixture) {
	t.Helper()
	f.reset()
	assert.ErrorIs(t, f.pip.Aspirate(f.ctx, 10, domain.Target{}, 1), domain.ErrUnresolvedLocation)
	assert.ErrorIs(t, f.pip.BlowOut(f.ctx, domain.Target{}), domain.ErrUnresolvedLocation)
	assert.Empty(t, f.sim.Calls())
	assert.Empty(t, f.events)
}

func TestSession_MotionFailureClearsCache(t *testing.T) {
	boom := errors.New("limit switch")
	a1 := func(f *fixture) domain.Location { return well(t, f.plate, "A1").Top(0) }

	for _, method := range []string{"gantry_position", "move_to"} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.pip.PickUpTip(f.ctx, domain.Target{}))
			require.NoError(t, f.pip.MoveTo(f.ctx, a1(f)))
			f.reset()

			f.sim.FailOn(method, boom)
			err := f.pip.MoveTo(f.ctx, well(t, f.plate, "H12").Top(0))
			assert.ErrorIs(t, err, domain.ErrHardwareFault)
			assert.ErrorIs(t, err, boom)

			_, ok := f.session.LocationCache()
			assert.False(t, ok)
			assert.Equal(t, []string{"before:move_to"}, f.events)

			assertNoImplicitLocation(t, f)
		})
	}

	t.Run("planning", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.Target{}))
		require.NoError(t, f.pip.MoveTo(f.ctx, a1(f)))
		err := f.pip.MoveTo(f.ctx, domain.PointAt(0, 0, 500))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "above the max z")
		_, ok := f.session.LocationCache()
		assert.False(t, ok)

		assertNoImplicitLocation(t, f)
	})
}

func TestSession_MoveToOptions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pip.MoveTo(f.ctx, well(t, f.plate, "A1").Top(0)))
	f.reset()

	target := well(t, f.tips, "A1").Top(0)
	require.NoError(t, f.pip.MoveTo(f.ctx, target, runtime.ForceDirect(), runtime.Speed(50)))
	assert.Equal(t, []string{"gantry_position", "move_to"}, f.sim.Methods())
	p, _, speed := lastMove(t, f.sim)
	assert.Equal(t, target.Point, p)
	assert.InDelta(t, 50, speed, 1e-9)

	f.reset()
	require.NoError(t, f.pip.MoveTo(f.ctx, well(t, f.plate, "A1").Top(0), runtime.MinimumZ(150)))
	first := f.sim.Calls()[1].Args[0].(domain.Point)
	assert.InDelta(t, 150, first.Z, 1e-9, "arc rises to the minimum height")
	assert.Equal(t, []string{"before:move_to", "after:move_to", "before:move_to", "after:move_to"}, f.events)
}

func TestSession_RunControl(t *testing.T) {
	f := newFixture(t)
	f.reset()

	require.NoError(t, f.session.Pause(f.ctx))
	assert.True(t, f.sim.Paused())
	require.NoError(t, f.session.Resume(f.ctx))
	assert.False(t, f.sim.Paused())
	require.NoError(t, f.session.Delay(f.ctx, 1500*time.Millisecond))
	assert.ErrorIs(t, f.session.Delay(f.ctx, -time.Second), domain.ErrInvalidArgument)
	f.session.Comment(f.ctx, "hello")

	assert.Equal(t, []string{"pause", "resume", "delay"}, f.sim.Methods())
	assert.Equal(t, []string{
		"before:pause", "after:pause",
		"before:resume", "after:resume",
		"before:delay", "after:delay",
		"before:comment", "after:comment",
	}, f.events)
}

func TestSession_DefaultSpeed(t *testing.T) {
	sim, err := simulator.New()
	require.NoError(t, err)

	_, err = runtime.NewSession(sim, runtime.WithDefaultSpeed(0))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestModules(t *testing.T) {
	f := newFixture(t)

	temp, err := f.session.LoadModule(f.ctx, domain.ModuleTemperature, "3", "")
	require.NoError(t, err)
	assert.Equal(t, "temperature-3", temp.ID())

	mag, err := f.session.LoadModule(f.ctx, domain.ModuleMagnetic, "6", "mag")
	require.NoError(t, err)
	tc, err := f.session.LoadModule(f.ctx, domain.ModuleThermocycler, "7", "tc")
	require.NoError(t, err)

	t.Run("supported operations reach the controller", func(t *testing.T) {
		require.NoError(t, temp.SetTemperature(f.ctx, 4))
		require.NoError(t, mag.Engage(f.ctx, 12.5))
		require.NoError(t, tc.SetTemperature(f.ctx, 95))
		require.NoError(t, tc.SetLidTemperature(f.ctx, 105))
		require.NoError(t, tc.OpenLid(f.ctx))

		st, ok := f.sim.Module("temperature-3")
		require.True(t, ok)
		assert.InDelta(t, 4, st.Temperature, 1e-9)
		st, _ = f.sim.Module("mag")
		assert.InDelta(t, 12.5, st.MagnetHeight, 1e-9)
		st, _ = f.sim.Module("tc")
		assert.InDelta(t, 105, st.LidTemperature, 1e-9)
		assert.True(t, st.LidOpen)

		require.NoError(t, tc.CloseLid(f.ctx))
		require.NoError(t, mag.Disengage(f.ctx))
		require.NoError(t, tc.Deactivate(f.ctx))
		st, _ = f.sim.Module("tc")
		assert.False(t, st.LidOpen)
		assert.Zero(t, st.Temperature)
	})

	t.Run("wrong kind", func(t *testing.T) {
		f.reset()
		assert.ErrorIs(t, temp.Engage(f.ctx, 5), domain.ErrInvalidArgument)
		assert.ErrorIs(t, temp.OpenLid(f.ctx), domain.ErrInvalidArgument)
		assert.ErrorIs(t, mag.SetTemperature(f.ctx, 37), domain.ErrInvalidArgument)
		assert.ErrorIs(t, tc.Engage(f.ctx, 5), domain.ErrInvalidArgument)
		assert.ErrorIs(t, mag.Engage(f.ctx, -1), domain.ErrInvalidArgument)
		assert.Empty(t, f.sim.Calls())
		assert.Empty(t, f.events)
	})

	t.Run("lookup", func(t *testing.T) {
		got, err := f.session.Module("mag")
		require.NoError(t, err)
		assert.Same(t, mag, got)
		_, err = f.session.Module("nope")
		assert.ErrorIs(t, err, domain.ErrModuleNotFound)
		assert.Len(t, f.session.Modules(), 3)
	})

	t.Run("load errors", func(t *testing.T) {
		_, err := f.session.LoadModule(f.ctx, domain.ModuleMagnetic, "3", "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "slot taken")
		_, err = f.session.LoadModule(f.ctx, domain.ModuleMagnetic, "8", "mag")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "duplicate id")
		_, err = f.session.LoadModule(f.ctx, domain.ModuleKind(0), "9", "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("no controller", func(t *testing.T) {
		s, err := runtime.NewSession(f.sim)
		require.NoError(t, err)
		_, err = s.LoadModule(f.ctx, domain.ModuleTemperature, "3", "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}
