package transfer_test

import (
	"fmt"
	"testing"

	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/labware"
	"github.com/aretw0/aliquot/pkg/transfer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	plate *labware.Labware
	trash domain.Well
	state transfer.State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	plate, err := labware.Load("corning_96_wellplate_360ul_flat", domain.Point{}, labware.WithID("plate"))
	require.NoError(t, err)
	trash, err := labware.Load("opentrons_1_trash_1100ml_fixed", domain.Point{}, labware.WithID("trash"))
	require.NoError(t, err)
	return &fixture{
		plate: plate,
		trash: trash.Wells()[0],
		state: transfer.State{
			MaxVolume:        300,
			MinVolume:        30,
			WorkingVolume:    300,
			NextTipMaxVolume: 300,
			HasNextTip:       true,
			Trash:            trash.Wells()[0],
		},
	}
}

func (f *fixture) wells(t *testing.T, names ...string) []domain.Well {
	t.Helper()
	out := make([]domain.Well, len(names))
	for i, n := range names {
		w, err := f.plate.Well(n)
		require.NoError(t, err)
		out[i] = w
	}
	return out
}

// render turns a plan into compact lines such as "aspirate 200 plate/A1".
func render(p domain.Plan) []string {
	out := make([]string, len(p))
	for i, c := range p {
		line := string(c.Method)
		switch c.Method {
		case domain.MethodAspirate, domain.MethodDispense, domain.MethodAirGap:
			line += fmt.Sprintf(" %g", c.Volume)
		case domain.MethodMix:
			line += fmt.Sprintf(" %dx%g", c.Repetitions, c.Volume)
		}
		if c.Target.Well != nil {
			line += " " + domain.WellID(c.Target.Well)
		}
		out[i] = line
	}
	return out
}

func assertPlan(t *testing.T, want []string, got domain.Plan) {
	t.Helper()
	if diff := cmp.Diff(want, render(got)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func request(mode domain.TransferMode, v domain.Volume, src, dst []domain.Well) domain.TransferRequest {
	return domain.TransferRequest{
		Mode:    mode,
		Volume:  v,
		Sources: src,
		Dests:   dst,
		Options: domain.DefaultTransferOptions(),
	}
}

func TestPlan_TransferOnce(t *testing.T) {
	f := newFixture(t)
	req := request(domain.ModeTransfer, domain.Uniform(200), f.wells(t, "A1"), f.wells(t, "B1", "B2", "B3"))

	plan, err := transfer.Plan(req, f.state)
	require.NoError(t, err)

	assertPlan(t, []string{
		"pick_up_tip",
		"aspirate 200 plate/A1",
		"dispense 200 plate/B1",
		"aspirate 200 plate/A1",
		"dispense 200 plate/B2",
		"aspirate 200 plate/A1",
		"dispense 200 plate/B3",
		"drop_tip",
	}, plan)
	for _, v := range plan.Volumes(domain.MethodAspirate) {
		assert.LessOrEqual(t, v, 300.0)
	}
}

func TestPlan_DistributeDisposal(t *testing.T) {
	f := newFixture(t)
	req := request(domain.ModeDistribute, domain.Uniform(50), f.wells(t, "A1"), f.wells(t, "B1", "B2", "B3", "B4"))

	plan, err := transfer.Plan(req, f.state)
	require.NoError(t, err)

	assertPlan(t, []string{
		"pick_up_tip",
		"aspirate 230 plate/A1",
		"dispense 50 plate/B1",
		"dispense 50 plate/B2",
		"dispense 50 plate/B3",
		"dispense 50 plate/B4",
		"blow_out trash/A1",
		"drop_tip",
	}, plan)
}

func TestPlan_DistributeDisposalPerRun(t *testing.T) {
	f := newFixture(t)

	t.Run("Each run aspirates and blows out its own disposal", func(t *testing.T) {
		req := request(domain.ModeDistribute, domain.Uniform(100), f.wells(t, "A1"),
			f.wells(t, "B1", "B2", "B3", "B4", "B5", "B6"))
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)

		assert.Equal(t, []float64{230, 230, 230}, plan.Volumes(domain.MethodAspirate))
		assert.Equal(t, 6, plan.Count(domain.MethodDispense))
		assert.Equal(t, 3, plan.Count(domain.MethodBlowOut))
	})

	t.Run("Mix before starts on an empty tip", func(t *testing.T) {
		req := request(domain.ModeDistribute, domain.Uniform(100), f.wells(t, "A1"),
			f.wells(t, "B1", "B2", "B3", "B4"))
		req.Options.MixBefore = &domain.MixSpec{Repetitions: 2, Volume: 280}
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)

		assertPlan(t, []string{
			"pick_up_tip",
			"mix 2x280 plate/A1",
			"aspirate 230 plate/A1",
			"dispense 100 plate/B1",
			"dispense 100 plate/B2",
			"blow_out trash/A1",
			"mix 2x280 plate/A1",
			"aspirate 230 plate/A1",
			"dispense 100 plate/B3",
			"dispense 100 plate/B4",
			"blow_out trash/A1",
			"drop_tip",
		}, plan)
	})

	t.Run("Trash blow-out strategy blows out once per run", func(t *testing.T) {
		req := request(domain.ModeDistribute, domain.Uniform(100), f.wells(t, "A1"),
			f.wells(t, "B1", "B2", "B3", "B4"))
		req.Options.BlowOut = domain.BlowOutTrash
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Equal(t, 2, plan.Count(domain.MethodBlowOut))
	})
}

func TestPlan_InvalidMix(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		before *domain.MixSpec
		after  *domain.MixSpec
	}{
		{"zero repetitions before", &domain.MixSpec{Repetitions: 0, Volume: 50}, nil},
		{"negative repetitions after", nil, &domain.MixSpec{Repetitions: -1, Volume: 50}},
		{"negative volume", &domain.MixSpec{Repetitions: 2, Volume: -5}, nil},
		{"volume over capacity", nil, &domain.MixSpec{Repetitions: 2, Volume: 301}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request(domain.ModeTransfer, domain.Uniform(50), f.wells(t, "A1"), f.wells(t, "B1"))
			req.Options.MixBefore = tt.before
			req.Options.MixAfter = tt.after
			plan, err := transfer.Plan(req, f.state)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Nil(t, plan)
		})
	}

	t.Run("Ignored side is not checked", func(t *testing.T) {
		req := request(domain.ModeDistribute, domain.Uniform(50), f.wells(t, "A1"), f.wells(t, "B1"))
		req.Options.MixAfter = &domain.MixSpec{Repetitions: 0, Volume: 50}
		_, err := transfer.Plan(req, f.state)
		assert.NoError(t, err)
	})
}

func TestPlan_DistributeOptions(t *testing.T) {
	f := newFixture(t)

	t.Run("Explicit zero disposal skips blow-out", func(t *testing.T) {
		req := request(domain.ModeDistribute, domain.Uniform(50), f.wells(t, "A1"), f.wells(t, "B1", "B2"))
		zero := 0.0
		req.Options.DisposalVolume = &zero
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Equal(t, []float64{100}, plan.Volumes(domain.MethodAspirate))
		assert.Zero(t, plan.Count(domain.MethodBlowOut))
	})

	t.Run("Mix after is ignored", func(t *testing.T) {
		req := request(domain.ModeDistribute, domain.Uniform(50), f.wells(t, "A1"), f.wells(t, "B1"))
		req.Options.MixAfter = &domain.MixSpec{Repetitions: 3, Volume: 20}
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Zero(t, plan.Count(domain.MethodMix))
	})

	t.Run("Missing trash", func(t *testing.T) {
		req := request(domain.ModeDistribute, domain.Uniform(50), f.wells(t, "A1"), f.wells(t, "B1"))
		st := f.state
		st.Trash = nil
		_, err := transfer.Plan(req, st)
		assert.ErrorIs(t, err, domain.ErrUnresolvedLocation)
	})

	t.Run("Multiple sources", func(t *testing.T) {
		req := request(domain.ModeDistribute, domain.Uniform(50), f.wells(t, "A1", "A2"), f.wells(t, "B1"))
		_, err := transfer.Plan(req, f.state)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestPlan_Gradient(t *testing.T) {
	f := newFixture(t)
	req := request(domain.ModeTransfer, domain.Ramp(10, 100), f.wells(t, "A1"),
		f.wells(t, "B1", "B2", "B3", "B4", "B5"))

	plan, err := transfer.Plan(req, f.state)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10, 32.5, 55, 77.5, 100}, plan.Volumes(domain.MethodDispense), 1e-9)

	t.Run("Custom curve", func(t *testing.T) {
		req := req
		req.Options.Curve = func(x float64) float64 { return x * x }
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{10, 15.625, 32.5, 60.625, 100}, plan.Volumes(domain.MethodDispense), 1e-9)
	})

	t.Run("Single pair takes the start", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Ramp(10, 100), f.wells(t, "A1"), f.wells(t, "B1"))
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Equal(t, []float64{10}, plan.Volumes(domain.MethodDispense))
	})
}

func TestPlan_Carryover(t *testing.T) {
	f := newFixture(t)

	t.Run("Splits over capacity", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(700), f.wells(t, "A1"), f.wells(t, "B1"))
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Equal(t, []float64{300, 200, 200}, plan.Volumes(domain.MethodAspirate))
		assert.Equal(t, []float64{300, 200, 200}, plan.Volumes(domain.MethodDispense))
		assert.Equal(t, 1, plan.Count(domain.MethodPickUpTip))
	})

	t.Run("Air gap reserves room", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(300), f.wells(t, "A1"), f.wells(t, "B1", "B2"))
		req.Options.AirGap = 20
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Equal(t, []float64{150, 150, 150, 150}, plan.Volumes(domain.MethodAspirate))
		assert.Equal(t, []float64{150, 170, 170, 170}, plan.Volumes(domain.MethodDispense),
			"air gaps are pushed out by the next dispense")
		assert.Equal(t, 4, plan.Count(domain.MethodAirGap))
	})

	t.Run("Disabled fails before planning anything", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.PerPair(100, 400), f.wells(t, "A1"), f.wells(t, "B1", "B2"))
		req.Options.Carryover = false
		plan, err := transfer.Plan(req, f.state)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.Nil(t, plan)
	})

	t.Run("Capacity is the smaller of tip and pipette", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(15), f.wells(t, "A1"), f.wells(t, "B1"))
		st := f.state
		st.NextTipMaxVolume = 10
		plan, err := transfer.Plan(req, st)
		require.NoError(t, err)
		assert.Equal(t, []float64{7.5, 7.5}, plan.Volumes(domain.MethodAspirate))
	})
}

func TestPlan_TipPolicies(t *testing.T) {
	f := newFixture(t)
	src, dst := f.wells(t, "A1"), f.wells(t, "B1", "B2", "B3")

	t.Run("Always", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(100), src, dst)
		req.Options.NewTip = domain.TipAlways
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Equal(t, 3, plan.Count(domain.MethodPickUpTip))
		assert.Equal(t, 3, plan.Count(domain.MethodDropTip))
		assert.Equal(t, domain.MethodDropTip, plan[len(plan)-1].Method)
	})

	t.Run("Never requires a tip", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(100), src, dst)
		req.Options.NewTip = domain.TipNever
		_, err := transfer.Plan(req, f.state)
		assert.ErrorIs(t, err, domain.ErrNoTipAttached)

		st := f.state
		st.HasTip = true
		st.WorkingVolume = 200
		st.HasNextTip = false
		plan, err := transfer.Plan(req, st)
		require.NoError(t, err)
		assert.Zero(t, plan.Count(domain.MethodPickUpTip))
		assert.Zero(t, plan.Count(domain.MethodDropTip))
	})

	t.Run("Once keeps a held tip", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(100), src, dst)
		st := f.state
		st.HasTip = true
		st.HasNextTip = false
		plan, err := transfer.Plan(req, st)
		require.NoError(t, err)
		assert.Zero(t, plan.Count(domain.MethodPickUpTip))
		assert.Equal(t, 1, plan.Count(domain.MethodDropTip))
	})

	t.Run("Out of tips", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(100), src, dst)
		st := f.state
		st.HasNextTip = false
		_, err := transfer.Plan(req, st)
		assert.ErrorIs(t, err, domain.ErrOutOfTips)
	})

	t.Run("Return instead of trash", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(100), src, dst)
		req.Options.DropTip = domain.DropTipReturn
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Equal(t, 1, plan.Count(domain.MethodReturnTip))
		assert.Zero(t, plan.Count(domain.MethodDropTip))
	})
}

func TestPlan_FullCycleOrder(t *testing.T) {
	f := newFixture(t)
	req := request(domain.ModeTransfer, domain.Uniform(100), f.wells(t, "A1"), f.wells(t, "B1"))
	req.Options.MixBefore = &domain.MixSpec{Repetitions: 2, Volume: 50}
	req.Options.MixAfter = &domain.MixSpec{Repetitions: 3, Volume: 60}
	req.Options.TouchTip = domain.TouchTipAlways
	req.Options.AirGap = 10
	req.Options.BlowOut = domain.BlowOutTrash

	plan, err := transfer.Plan(req, f.state)
	require.NoError(t, err)

	assertPlan(t, []string{
		"pick_up_tip",
		"mix 2x50 plate/A1",
		"aspirate 100 plate/A1",
		"touch_tip plate/A1",
		"dispense 100 plate/B1",
		"touch_tip plate/B1",
		"mix 3x60 plate/B1",
		"air_gap 10",
		"blow_out trash/A1",
		"drop_tip",
	}, plan)
}

func TestPlan_Consolidate(t *testing.T) {
	f := newFixture(t)
	req := request(domain.ModeConsolidate, domain.Uniform(100), f.wells(t, "A1", "A2", "A3", "A4"), f.wells(t, "H12"))
	req.Options.MixBefore = &domain.MixSpec{Repetitions: 2, Volume: 50}

	plan, err := transfer.Plan(req, f.state)
	require.NoError(t, err)

	assertPlan(t, []string{
		"pick_up_tip",
		"aspirate 100 plate/A1",
		"aspirate 100 plate/A2",
		"aspirate 100 plate/A3",
		"dispense 300 plate/H12",
		"aspirate 100 plate/A4",
		"dispense 100 plate/H12",
		"drop_tip",
	}, plan)

	t.Run("Multiple destinations", func(t *testing.T) {
		req := request(domain.ModeConsolidate, domain.Uniform(100), f.wells(t, "A1"), f.wells(t, "B1", "B2"))
		_, err := transfer.Plan(req, f.state)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestPlan_Pairing(t *testing.T) {
	f := newFixture(t)

	t.Run("Shorter side is repeated", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.PerPair(1, 2, 3, 4), f.wells(t, "A1", "A2"), f.wells(t, "B1", "B2", "B3", "B4"))
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		var sources []string
		for _, c := range plan {
			if c.Method == domain.MethodAspirate {
				sources = append(sources, c.Target.Well.Name())
			}
		}
		assert.Equal(t, []string{"A1", "A2", "A1", "A2"}, sources)
		assert.Equal(t, []float64{1, 2, 3, 4}, plan.Volumes(domain.MethodDispense))
	})

	t.Run("Lengths must reconcile", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(10), f.wells(t, "A1", "A2"), f.wells(t, "B1", "B2", "B3"))
		_, err := transfer.Plan(req, f.state)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Volume list must match", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.PerPair(10, 20), f.wells(t, "A1"), f.wells(t, "B1", "B2", "B3"))
		_, err := transfer.Plan(req, f.state)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Negative volume", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(-1), f.wells(t, "A1"), f.wells(t, "B1"))
		_, err := transfer.Plan(req, f.state)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("Zero volumes are skipped", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.PerPair(0, 20), f.wells(t, "A1"), f.wells(t, "B1", "B2"))
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Equal(t, []float64{20}, plan.Volumes(domain.MethodDispense))
	})

	t.Run("Nothing to move", func(t *testing.T) {
		req := request(domain.ModeTransfer, domain.Uniform(0), f.wells(t, "A1"), f.wells(t, "B1"))
		plan, err := transfer.Plan(req, f.state)
		require.NoError(t, err)
		assert.Empty(t, plan)
	})
}
