package deck_test

import (
	"testing"

	"github.com/aretw0/aliquot/pkg/deck"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/labware"
	"github.com/aretw0/aliquot/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Geometry = (*deck.Planner)(nil)

func place(t *testing.T, d *deck.Deck, slot, loadName string) *labware.Labware {
	t.Helper()
	origin, err := deck.SlotOrigin(slot)
	require.NoError(t, err)
	lw, err := labware.Load(loadName, origin)
	require.NoError(t, err)
	require.NoError(t, d.Place(slot, lw))
	return lw
}

func TestDeck_Place(t *testing.T) {
	d := deck.New()
	place(t, d, "1", "corning_96_wellplate_360ul_flat")
	place(t, d, "10", "opentrons_96_tiprack_300ul")

	assert.Equal(t, []string{"1", "10"}, d.Slots())

	plate, err := labware.Load("corning_96_wellplate_360ul_flat", domain.Point{})
	require.NoError(t, err)
	assert.ErrorIs(t, d.Place("1", plate), domain.ErrInvalidArgument, "slot already taken")
	assert.ErrorIs(t, d.Place("13", plate), domain.ErrInvalidArgument, "no such slot")

	assert.InDelta(t, 64.49, d.HighestZ(), 1e-9)

	d.Remove("10")
	_, ok := d.At("10")
	assert.False(t, ok)
}

func TestPlanner_PlanMoves(t *testing.T) {
	d := deck.New()
	plate := place(t, d, "1", "corning_96_wellplate_360ul_flat")
	tips := place(t, d, "2", "opentrons_96_tiprack_300ul")
	trash := place(t, d, deck.FixedTrashSlot, "opentrons_1_trash_1100ml_fixed")
	p := deck.NewPlanner(d)

	a1, _ := plate.Well("A1")
	b1, _ := plate.Well("B1")
	tipA1, _ := tips.Well("A1")
	trashWell := trash.Wells()[0]

	t.Run("Same well goes straight", func(t *testing.T) {
		moves, err := p.PlanMoves(a1.Top(0), a1.Bottom(1), false, 0)
		require.NoError(t, err)
		require.Len(t, moves, 1)
		assert.Equal(t, a1.Bottom(1).Point, moves[0].Point)
	})

	t.Run("Force direct", func(t *testing.T) {
		moves, err := p.PlanMoves(a1.Top(0), tipA1.Top(0), true, 0)
		require.NoError(t, err)
		assert.Len(t, moves, 1)
	})

	t.Run("Within a labware travels just above it", func(t *testing.T) {
		moves, err := p.PlanMoves(a1.Bottom(1), b1.Bottom(1), false, 0)
		require.NoError(t, err)
		require.Len(t, moves, 3)
		assert.InDelta(t, plate.HighestZ()+5, moves[0].Point.Z, 1e-9)
		assert.Equal(t, b1.Bottom(1).Point, moves[2].Point)
	})

	t.Run("Between labware clears the whole deck", func(t *testing.T) {
		moves, err := p.PlanMoves(a1.Bottom(1), tipA1.Top(0), false, 0)
		require.NoError(t, err)
		require.Len(t, moves, 3)
		assert.InDelta(t, d.HighestZ()+10, moves[1].Point.Z, 1e-9)
		assert.Equal(t, tipA1.Top(0).Point, moves[2].Point)
	})

	t.Run("Minimum z is honored", func(t *testing.T) {
		moves, err := p.PlanMoves(a1.Bottom(1), tipA1.Top(0), false, 150)
		require.NoError(t, err)
		assert.Equal(t, 150.0, moves[0].Point.Z)
	})

	t.Run("Trash is entered by the center", func(t *testing.T) {
		moves, err := p.PlanMoves(a1.Top(0), trashWell.Top(0), false, 0)
		require.NoError(t, err)
		assert.Equal(t, domain.CriticalPointXYCenter, moves[len(moves)-1].CriticalPoint)
	})

	t.Run("Above max z fails", func(t *testing.T) {
		_, err := deck.NewPlanner(d, deck.WithMaxZ(50)).PlanMoves(a1.Top(0), tipA1.Top(0), false, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}
