package runtime_test

import (
	"testing"

	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/labware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickUpTip_Sequence(t *testing.T) {
	f := newFixture(t)
	f.reset()

	require.NoError(t, f.pip.PickUpTip(f.ctx, domain.Target{}))

	assert.Equal(t, []string{
		"gantry_position", "move_to", "move_to", "move_to",
		"set_current_tiprack_diameter",
		"pick_up_tip",
		"set_working_volume",
	}, f.sim.Methods())

	calls := f.sim.Calls()
	assert.Equal(t, []any{5.23}, calls[4].Args, "rack well diameter")
	assert.Equal(t, []any{51.83, 3, 1.0}, calls[5].Args, "tip length, presses, increment")

	a1 := well(t, f.tips, "A1")
	assert.True(t, f.pip.HasTip())
	assert.Same(t, a1, f.pip.AttachedTip())
	assert.Same(t, a1, f.pip.LastTip())
	has, err := f.tips.HasTip(f.ctx, a1)
	require.NoError(t, err)
	assert.False(t, has, "tip is tracked as used")
	assert.Equal(t, []string{"before:pick_up_tip", "after:pick_up_tip"}, f.events)
}

func TestPickUpTip_Allocation(t *testing.T) {
	f := newFixture(t)

	for _, want := range []string{"A1", "B1", "C1"} {
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.Target{}))
		assert.Equal(t, "tips/"+want, domain.WellID(f.pip.AttachedTip()))
		require.NoError(t, f.pip.DropTip(f.ctx, domain.Target{}))
	}
}

func TestPickUpTip_Targets(t *testing.T) {
	f := newFixture(t)

	t.Run("explicit well", func(t *testing.T) {
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.AtWell(well(t, f.tips, "H12"))))
		assert.Equal(t, "tips/H12", domain.WellID(f.pip.AttachedTip()))
		require.NoError(t, f.pip.DropTip(f.ctx, domain.Target{}))
	})

	t.Run("location in a well", func(t *testing.T) {
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.At(well(t, f.tips, "D3").Top(0))))
		assert.Equal(t, "tips/D3", domain.WellID(f.pip.AttachedTip()))
		require.NoError(t, f.pip.DropTip(f.ctx, domain.Target{}))
	})

	t.Run("location on a rack takes its next tip", func(t *testing.T) {
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.At(domain.Location{Labware: f.tips})))
		assert.Equal(t, "tips/A1", domain.WellID(f.pip.AttachedTip()))
	})

	t.Run("already holding a tip", func(t *testing.T) {
		assert.ErrorIs(t, f.pip.PickUpTip(f.ctx, domain.Target{}), domain.ErrInvalidArgument)
		require.NoError(t, f.pip.DropTip(f.ctx, domain.Target{}))
	})

	t.Run("not a tip rack", func(t *testing.T) {
		assert.ErrorIs(t, f.pip.PickUpTip(f.ctx, domain.AtWell(well(t, f.plate, "A1"))), domain.ErrInvalidArgument)
		assert.ErrorIs(t, f.pip.PickUpTip(f.ctx, domain.At(domain.PointAt(1, 2, 3))), domain.ErrInvalidArgument)
		assert.False(t, f.pip.HasTip())
	})

	t.Run("used tip is picked up anyway", func(t *testing.T) {
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.AtWell(well(t, f.tips, "A1"))))
		assert.True(t, f.pip.HasTip())
	})
}

func TestPickUpTip_StartingTipAndRacks(t *testing.T) {
	f := newFixture(t)
	second, err := f.session.LoadLabware("opentrons_96_tiprack_300ul", "4", labware.WithID("tips2"))
	require.NoError(t, err)

	pip, err := f.session.LoadInstrument(f.ctx, domain.MountLeft,
		runtime.WithTipRacks(f.tips, second),
		runtime.WithStartingTip(well(t, second, "C1")),
	)
	require.NoError(t, err)

	require.NoError(t, pip.PickUpTip(f.ctx, domain.Target{}))
	assert.Equal(t, "tips2/C1", domain.WellID(pip.AttachedTip()), "racks before the starting tip are skipped")
	require.NoError(t, pip.DropTip(f.ctx, domain.Target{}))

	require.NoError(t, pip.SetStartingTip(nil))
	require.NoError(t, pip.PickUpTip(f.ctx, domain.Target{}))
	assert.Equal(t, "tips/A1", domain.WellID(pip.AttachedTip()))

	err = pip.SetStartingTip(well(t, f.plate, "A1"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.session.LoadInstrument(f.ctx, domain.MountLeft, runtime.WithStartingTip(well(t, second, "A1")))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument, "starting tip outside the assigned racks")
}

func TestPickUpTip_OutOfTips(t *testing.T) {
	f := newFixture(t)
	for _, w := range f.tips.Wells() {
		require.NoError(t, f.tips.UseTips(f.ctx, w, 1))
	}
	f.reset()

	assert.ErrorIs(t, f.pip.PickUpTip(f.ctx, domain.Target{}), domain.ErrOutOfTips)
	assert.ErrorIs(t, f.pip.PickUpTip(f.ctx, domain.At(domain.Location{Labware: f.tips})), domain.ErrOutOfTips)
	assert.Empty(t, f.sim.Calls())

	_, ok, err := f.pip.NextTipCapacity(f.ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.pip.ResetTipTracking(f.ctx))
	capacity, ok, err := f.pip.NextTipCapacity(f.ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 300, capacity, 1e-9)
}

func TestDropTip(t *testing.T) {
	t.Run("defaults to the trash", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.Target{}))
		require.NoError(t, f.pip.Aspirate(f.ctx, 100, domain.AtWell(well(t, f.plate, "A1")), 1))
		f.reset()

		require.NoError(t, f.pip.DropTip(f.ctx, domain.Target{}))
		p, cp, _ := lastMove(t, f.sim)
		trash := f.session.FixedTrash().Wells()[0]
		assert.Equal(t, trash.Top(0).Point, p)
		assert.Equal(t, domain.CriticalPointXYCenter, cp)
		assert.Equal(t, "drop_tip", f.sim.Methods()[len(f.sim.Methods())-1])

		assert.False(t, f.pip.HasTip())
		assert.Nil(t, f.pip.AttachedTip())
		assert.Nil(t, f.pip.LastTip())
		assert.Zero(t, f.pip.CurrentVolume())

		f.reset()
		require.NoError(t, f.pip.MoveTo(f.ctx, well(t, f.plate, "A1").Top(0)))
		assert.Equal(t, []any{domain.CriticalPointXYCenter}, f.sim.Calls()[0].Args, "leaving the trash uses the xy center")
	})

	t.Run("into a tip rack well restores the tip", func(t *testing.T) {
		f := newFixture(t)
		a1 := well(t, f.tips, "A1")
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.AtWell(a1)))
		f.reset()

		require.NoError(t, f.pip.DropTip(f.ctx, domain.AtWell(a1)))
		p, _, _ := lastMove(t, f.sim)
		assert.InDelta(t, a1.Bottom(10).Point.Z, p.Z, 1e-9)

		has, err := f.tips.HasTip(f.ctx, a1)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("restoring onto an occupied well only warns", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.Target{}))
		require.NoError(t, f.pip.DropTip(f.ctx, domain.AtWell(well(t, f.tips, "B1"))))
		assert.False(t, f.pip.HasTip())
	})

	t.Run("location must be in a well", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.pip.PickUpTip(f.ctx, domain.Target{}))
		assert.ErrorIs(t, f.pip.DropTip(f.ctx, domain.At(domain.PointAt(1, 2, 3))), domain.ErrInvalidArgument)
		assert.True(t, f.pip.HasTip())
	})
}

func TestReturnTip(t *testing.T) {
	f := newFixture(t)
	f.reset()
	assert.ErrorIs(t, f.pip.ReturnTip(f.ctx), domain.ErrUnresolvedLocation)
	assert.Empty(t, f.sim.Calls(), "fails before any hardware call")
	assert.Empty(t, f.events)

	require.NoError(t, f.pip.PickUpTip(f.ctx, domain.Target{}))
	a1 := well(t, f.tips, "A1")
	f.reset()

	require.NoError(t, f.pip.ReturnTip(f.ctx))
	p, _, _ := lastMove(t, f.sim)
	assert.InDelta(t, a1.Bottom(10).Point.Z, p.Z, 1e-9)
	assert.Equal(t, []string{"before:return_tip", "before:drop_tip", "after:drop_tip", "after:return_tip"}, f.events)

	has, err := f.tips.HasTip(f.ctx, a1)
	require.NoError(t, err)
	assert.True(t, has)
	assert.False(t, f.pip.HasTip())

	assert.ErrorIs(t, f.pip.ReturnTip(f.ctx), domain.ErrUnresolvedLocation, "last tip is cleared")
}
