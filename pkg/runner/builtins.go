package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// RegisterBuiltins adds every builtin protocol command to reg.
func RegisterBuiltins(reg *registry.Registry) {
	reg.Register("aspirate", aspirate)
	reg.Register("dispense", dispense)
	reg.Register("mix", mix)
	reg.Register("blow_out", blowOut)
	reg.Register("touch_tip", touchTip)
	reg.Register("air_gap", airGap)
	reg.Register("pick_up_tip", pickUpTip)
	reg.Register("drop_tip", dropTip)
	reg.Register("return_tip", returnTip)
	reg.Register("move_to", moveTo)
	reg.Register("home", home)

	reg.Register("transfer", compound(domain.ModeTransfer))
	reg.Register("distribute", compound(domain.ModeDistribute))
	reg.Register("consolidate", compound(domain.ModeConsolidate))

	reg.Register("pause", pause)
	reg.Register("resume", resume)
	reg.Register("delay", delay)
	reg.Register("comment", comment)

	reg.Register("set_temperature", setTemperature)
	reg.Register("set_lid_temperature", setLidTemperature)
	reg.Register("deactivate", deactivate)
	reg.Register("engage", engage)
	reg.Register("disengage", disengage)
	reg.Register("open_lid", openLid)
	reg.Register("close_lid", closeLid)
}

// decode fills out from raw step params. Unknown keys are rejected so a typo
// does not silently fall back to a default.
func decode(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// instrument picks the instrument on mount, or the only loaded one.
func instrument(s *runtime.Session, mount string) (*runtime.Instrument, error) {
	if mount == "" {
		insts := s.Instruments()
		if len(insts) != 1 {
			return nil, fmt.Errorf("%w: mount is required with %d instruments loaded", domain.ErrInvalidArgument, len(insts))
		}
		return insts[0], nil
	}
	m, err := domain.ParseMount(mount)
	if err != nil {
		return nil, err
	}
	return s.Instrument(m)
}

// Placement is the optional location of a step: a well, and where in it.
// Position is top, bottom or center; Offset is a height in mm from it.
type Placement struct {
	Well     string  `mapstructure:"well"`
	Position string  `mapstructure:"position"`
	Offset   float64 `mapstructure:"offset"`
}

func (p Placement) target(s *runtime.Session) (domain.Target, error) {
	if p.Well == "" {
		if p.Position != "" || p.Offset != 0 {
			return domain.Target{}, fmt.Errorf("%w: position needs a well", domain.ErrInvalidArgument)
		}
		return domain.Target{}, nil
	}
	w, err := lookupWell(s, p.Well)
	if err != nil {
		return domain.Target{}, err
	}
	switch strings.ToLower(p.Position) {
	case "":
		if p.Offset != 0 {
			return domain.Target{}, fmt.Errorf("%w: offset needs a position", domain.ErrInvalidArgument)
		}
		return domain.AtWell(w), nil
	case "top":
		return domain.At(w.Top(p.Offset)), nil
	case "bottom":
		return domain.At(w.Bottom(p.Offset)), nil
	case "center":
		return domain.At(w.Center().Move(domain.Point{Z: p.Offset})), nil
	}
	return domain.Target{}, fmt.Errorf("%w: unknown position %q", domain.ErrInvalidArgument, p.Position)
}

type liquidParams struct {
	Mount     string  `mapstructure:"mount"`
	Volume    float64 `mapstructure:"volume"`
	Rate      float64 `mapstructure:"rate"`
	Placement `mapstructure:",squash"`
}

// liquid decodes the params shared by aspirate and dispense.
func liquid(s *runtime.Session, params map[string]any) (*runtime.Instrument, liquidParams, domain.Target, error) {
	p := liquidParams{Rate: 1}
	if err := decode(params, &p); err != nil {
		return nil, p, domain.Target{}, err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return nil, p, domain.Target{}, err
	}
	t, err := p.target(s)
	return inst, p, t, err
}

func aspirate(ctx context.Context, s *runtime.Session, params map[string]any) error {
	inst, p, t, err := liquid(s, params)
	if err != nil {
		return err
	}
	return inst.Aspirate(ctx, p.Volume, t, p.Rate)
}

func dispense(ctx context.Context, s *runtime.Session, params map[string]any) error {
	inst, p, t, err := liquid(s, params)
	if err != nil {
		return err
	}
	return inst.Dispense(ctx, p.Volume, t, p.Rate)
}

func mix(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount       string  `mapstructure:"mount"`
		Repetitions int     `mapstructure:"repetitions"`
		Volume      float64 `mapstructure:"volume"`
		Rate        float64 `mapstructure:"rate"`
		Placement   `mapstructure:",squash"`
	}{Repetitions: 1, Rate: 1}
	if err := decode(params, &p); err != nil {
		return err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}
	t, err := p.target(s)
	if err != nil {
		return err
	}
	return inst.Mix(ctx, p.Repetitions, p.Volume, t, p.Rate)
}

func blowOut(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount     string `mapstructure:"mount"`
		Placement `mapstructure:",squash"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}
	t, err := p.target(s)
	if err != nil {
		return err
	}
	return inst.BlowOut(ctx, t)
}

func touchTip(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount   string   `mapstructure:"mount"`
		Well    string   `mapstructure:"well"`
		Radius  *float64 `mapstructure:"radius"`
		VOffset *float64 `mapstructure:"v_offset"`
		Speed   *float64 `mapstructure:"speed"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}
	var t domain.Target
	if p.Well != "" {
		w, err := lookupWell(s, p.Well)
		if err != nil {
			return err
		}
		t = domain.AtWell(w)
	}
	var opts []runtime.TouchTipOption
	if p.Radius != nil {
		opts = append(opts, runtime.TouchRadius(*p.Radius))
	}
	if p.VOffset != nil {
		opts = append(opts, runtime.TouchOffset(*p.VOffset))
	}
	if p.Speed != nil {
		opts = append(opts, runtime.TouchSpeed(*p.Speed))
	}
	return inst.TouchTip(ctx, t, opts...)
}

func airGap(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount  string  `mapstructure:"mount"`
		Volume float64 `mapstructure:"volume"`
		Height float64 `mapstructure:"height"`
	}{Height: runtime.DefaultAirGapHeight}
	if err := decode(params, &p); err != nil {
		return err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}
	return inst.AirGap(ctx, p.Volume, p.Height)
}

func pickUpTip(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount     string   `mapstructure:"mount"`
		Well      string   `mapstructure:"well"`
		Rack      string   `mapstructure:"rack"`
		Presses   *int     `mapstructure:"presses"`
		Increment *float64 `mapstructure:"increment"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}
	var t domain.Target
	switch {
	case p.Well != "" && p.Rack != "":
		return fmt.Errorf("%w: pick_up_tip takes a well or a rack, not both", domain.ErrInvalidArgument)
	case p.Well != "":
		w, err := lookupWell(s, p.Well)
		if err != nil {
			return err
		}
		t = domain.AtWell(w)
	case p.Rack != "":
		lw, err := s.Labware(p.Rack)
		if err != nil {
			return err
		}
		t = domain.At(domain.Location{Point: lw.Origin(), Labware: lw})
	}
	var opts []runtime.PickUpOption
	if p.Presses != nil {
		opts = append(opts, runtime.Presses(*p.Presses))
	}
	if p.Increment != nil {
		opts = append(opts, runtime.Increment(*p.Increment))
	}
	return inst.PickUpTip(ctx, t, opts...)
}

func dropTip(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount     string `mapstructure:"mount"`
		Placement `mapstructure:",squash"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}
	t, err := p.target(s)
	if err != nil {
		return err
	}
	return inst.DropTip(ctx, t)
}

func returnTip(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount string `mapstructure:"mount"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}
	return inst.ReturnTip(ctx)
}

func moveTo(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount     string        `mapstructure:"mount"`
		Point     *domain.Point `mapstructure:"point"`
		Strategy  string        `mapstructure:"strategy"`
		MinimumZ  float64       `mapstructure:"minimum_z"`
		Speed     *float64      `mapstructure:"speed"`
		Placement `mapstructure:",squash"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}

	var loc domain.Location
	switch {
	case p.Point != nil && p.Well != "":
		return fmt.Errorf("%w: move_to takes a point or a well, not both", domain.ErrInvalidArgument)
	case p.Point != nil:
		loc = domain.Location{Point: *p.Point}
	case p.Well != "":
		if p.Position == "" {
			p.Position = "top"
		}
		t, err := p.target(s)
		if err != nil {
			return err
		}
		loc = *t.Location
	default:
		return fmt.Errorf("%w: move_to needs a point or a well", domain.ErrInvalidArgument)
	}

	var opts []runtime.MoveOption
	switch strings.ToLower(p.Strategy) {
	case "", "arc":
	case "direct":
		opts = append(opts, runtime.ForceDirect())
	default:
		return fmt.Errorf("%w: unknown move strategy %q", domain.ErrInvalidArgument, p.Strategy)
	}
	if p.MinimumZ != 0 {
		opts = append(opts, runtime.MinimumZ(p.MinimumZ))
	}
	if p.Speed != nil {
		opts = append(opts, runtime.Speed(*p.Speed))
	}
	return inst.MoveTo(ctx, loc, opts...)
}

func home(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Mount string `mapstructure:"mount"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	if p.Mount == "" {
		return s.Home(ctx)
	}
	inst, err := instrument(s, p.Mount)
	if err != nil {
		return err
	}
	return inst.Home(ctx)
}

func pause(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Message string `mapstructure:"message"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	if p.Message != "" {
		if err := comment(ctx, s, map[string]any{"text": p.Message}); err != nil {
			return err
		}
	}
	return s.Pause(ctx)
}

func resume(ctx context.Context, s *runtime.Session, params map[string]any) error {
	if err := decode(params, &struct{}{}); err != nil {
		return err
	}
	return s.Resume(ctx)
}

func delay(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Duration time.Duration `mapstructure:"duration"`
		Seconds  float64       `mapstructure:"seconds"`
		Minutes  float64       `mapstructure:"minutes"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	d := p.Duration +
		time.Duration(p.Seconds*float64(time.Second)) +
		time.Duration(p.Minutes*float64(time.Minute))
	return s.Delay(ctx, d)
}

func comment(ctx context.Context, s *runtime.Session, params map[string]any) error {
	p := struct {
		Text string `mapstructure:"text"`
	}{}
	if err := decode(params, &p); err != nil {
		return err
	}
	text, err := SanitizeInput(p.Text)
	if err != nil {
		return err
	}
	s.Comment(ctx, text)
	return nil
}
