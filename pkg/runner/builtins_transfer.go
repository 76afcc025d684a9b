package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

type transferParams struct {
	Mount   string   `mapstructure:"mount"`
	Volume  any      `mapstructure:"volume"`
	Source  string   `mapstructure:"source"`
	Sources []string `mapstructure:"sources"`
	Dest    string   `mapstructure:"dest"`
	Dests   []string `mapstructure:"dests"`

	NewTip         string          `mapstructure:"new_tip"`
	AirGap         float64         `mapstructure:"air_gap"`
	Carryover      *bool           `mapstructure:"carryover"`
	DisposalVolume *float64        `mapstructure:"disposal_volume"`
	MixBefore      *domain.MixSpec `mapstructure:"mix_before"`
	MixAfter       *domain.MixSpec `mapstructure:"mix_after"`
	DropTip        string          `mapstructure:"drop_tip"`
	BlowOut        bool            `mapstructure:"blow_out"`
	TouchTip       bool            `mapstructure:"touch_tip"`
}

// compound registers transfer, distribute and consolidate. Volume is a
// number, a list of per-pair numbers, or {start, end} for a gradient.
func compound(mode domain.TransferMode) func(context.Context, *runtime.Session, map[string]any) error {
	return func(ctx context.Context, s *runtime.Session, params map[string]any) error {
		var p transferParams
		if err := decode(params, &p); err != nil {
			return err
		}
		inst, err := instrument(s, p.Mount)
		if err != nil {
			return err
		}
		req, err := p.request(s, mode)
		if err != nil {
			return err
		}
		return inst.RunTransfer(ctx, req)
	}
}

func (p transferParams) request(s *runtime.Session, mode domain.TransferMode) (domain.TransferRequest, error) {
	req := domain.TransferRequest{Mode: mode, Options: domain.DefaultTransferOptions()}

	var err error
	if req.Volume, err = parseVolume(p.Volume); err != nil {
		return req, err
	}
	if req.Sources, err = wellList(s, "source", p.Source, p.Sources); err != nil {
		return req, err
	}
	if req.Dests, err = wellList(s, "dest", p.Dest, p.Dests); err != nil {
		return req, err
	}

	o := &req.Options
	if o.NewTip, err = domain.ParseTipPolicy(p.NewTip); err != nil {
		return req, err
	}
	o.AirGap = p.AirGap
	if p.Carryover != nil {
		o.Carryover = *p.Carryover
	}
	o.DisposalVolume = p.DisposalVolume
	o.MixBefore = p.MixBefore
	o.MixAfter = p.MixAfter
	switch strings.ToLower(p.DropTip) {
	case "", "trash":
		o.DropTip = domain.DropTipTrash
	case "return":
		o.DropTip = domain.DropTipReturn
	default:
		return req, fmt.Errorf("%w: unknown drop_tip %q", domain.ErrInvalidArgument, p.DropTip)
	}
	if p.BlowOut {
		o.BlowOut = domain.BlowOutTrash
	}
	if p.TouchTip {
		o.TouchTip = domain.TouchTipAlways
	}
	return req, nil
}

func parseVolume(raw any) (domain.Volume, error) {
	switch v := raw.(type) {
	case nil:
		return domain.Volume{}, fmt.Errorf("%w: volume is required", domain.ErrInvalidArgument)
	case []any:
		var vs []float64
		if err := decodeValue(v, &vs); err != nil {
			return domain.Volume{}, err
		}
		return domain.PerPair(vs...), nil
	case map[string]any:
		var g domain.Gradient
		if err := decode(v, &g); err != nil {
			return domain.Volume{}, err
		}
		return domain.Ramp(g.Start, g.End), nil
	default:
		var f float64
		if err := decodeValue(v, &f); err != nil {
			return domain.Volume{}, err
		}
		return domain.Uniform(f), nil
	}
}

func decodeValue(in, out any) error {
	if err := mapstructure.WeakDecode(in, out); err != nil {
		return fmt.Errorf("%w: volume: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func wellList(s *runtime.Session, what, one string, many []string) ([]domain.Well, error) {
	refs := many
	if one != "" {
		refs = append([]string{one}, many...)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: at least one %s well is required", domain.ErrInvalidArgument, what)
	}
	out := make([]domain.Well, len(refs))
	for i, ref := range refs {
		w, err := lookupWell(s, ref)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}
