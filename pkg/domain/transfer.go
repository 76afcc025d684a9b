package domain

import (
	"fmt"
	"strings"
)

// TransferMode selects how sources and destinations are paired.
type TransferMode int

const (
	ModeTransfer TransferMode = iota
	ModeDistribute
	ModeConsolidate
)

func (m TransferMode) String() string {
	switch m {
	case ModeTransfer:
		return "transfer"
	case ModeDistribute:
		return "distribute"
	case ModeConsolidate:
		return "consolidate"
	}
	return fmt.Sprintf("TransferMode(%d)", int(m))
}

// TipPolicy controls when a compound transfer changes tips.
// The zero value is TipOnce.
type TipPolicy int

const (
	TipOnce TipPolicy = iota
	TipNever
	TipAlways
)

func (p TipPolicy) String() string {
	switch p {
	case TipOnce:
		return "once"
	case TipNever:
		return "never"
	case TipAlways:
		return "always"
	}
	return fmt.Sprintf("TipPolicy(%d)", int(p))
}

// ParseTipPolicy accepts "once", "never" and "always".
func ParseTipPolicy(s string) (TipPolicy, error) {
	switch strings.ToLower(s) {
	case "", "once":
		return TipOnce, nil
	case "never":
		return TipNever, nil
	case "always":
		return TipAlways, nil
	}
	return 0, fmt.Errorf("%w: unknown tip policy %q", ErrInvalidArgument, s)
}

// MixStrategy is derived from which mix specs were requested.
type MixStrategy int

const (
	MixNever MixStrategy = iota
	MixBefore
	MixAfter
	MixBoth
)

func (m MixStrategy) String() string {
	switch m {
	case MixNever:
		return "never"
	case MixBefore:
		return "before"
	case MixAfter:
		return "after"
	case MixBoth:
		return "both"
	}
	return fmt.Sprintf("MixStrategy(%d)", int(m))
}

// DropTipStrategy says where a used tip goes. The zero value is DropTipTrash.
type DropTipStrategy int

const (
	DropTipTrash DropTipStrategy = iota
	DropTipReturn
)

func (d DropTipStrategy) String() string {
	switch d {
	case DropTipTrash:
		return "trash"
	case DropTipReturn:
		return "return"
	}
	return fmt.Sprintf("DropTipStrategy(%d)", int(d))
}

// BlowOutStrategy says whether residual liquid is blown into the trash.
type BlowOutStrategy int

const (
	BlowOutNone BlowOutStrategy = iota
	BlowOutTrash
)

func (b BlowOutStrategy) String() string {
	switch b {
	case BlowOutNone:
		return "none"
	case BlowOutTrash:
		return "trash"
	}
	return fmt.Sprintf("BlowOutStrategy(%d)", int(b))
}

// TouchTipStrategy says whether the tip touches the well walls after liquid moves.
type TouchTipStrategy int

const (
	TouchTipNone TouchTipStrategy = iota
	TouchTipAlways
)

func (t TouchTipStrategy) String() string {
	switch t {
	case TouchTipNone:
		return "none"
	case TouchTipAlways:
		return "always"
	}
	return fmt.Sprintf("TouchTipStrategy(%d)", int(t))
}

// MixSpec is a (repetitions, volume) pair. The zero value means "no mix".
type MixSpec struct {
	Repetitions int     `json:"repetitions" yaml:"repetitions" mapstructure:"repetitions"`
	Volume      float64 `json:"volume" yaml:"volume" mapstructure:"volume"`
}

// Requested reports whether any mixing was asked for.
func (m *MixSpec) Requested() bool {
	return m != nil && !(m.Repetitions == 0 && m.Volume == 0)
}

// DeriveMixStrategy combines the before and after specs.
func DeriveMixStrategy(before, after *MixSpec) MixStrategy {
	switch b, a := before.Requested(), after.Requested(); {
	case b && a:
		return MixBoth
	case b:
		return MixBefore
	case a:
		return MixAfter
	default:
		return MixNever
	}
}

// Gradient is a volume ramp between two endpoints.
type Gradient struct {
	Start float64
	End   float64
}

// Volume is a scalar, a per-pair list, or a gradient.
type Volume struct {
	Values   []float64
	Gradient *Gradient
}

// Uniform applies one volume to every pair.
func Uniform(v float64) Volume {
	return Volume{Values: []float64{v}}
}

// PerPair pairs volumes positionally with the expanded source/destination pairs.
func PerPair(vs ...float64) Volume {
	return Volume{Values: vs}
}

// Ramp interpolates between start and end over all pairs.
func Ramp(start, end float64) Volume {
	return Volume{Gradient: &Gradient{Start: start, End: end}}
}

// TransferOptions configure a compound transfer.
// Use DefaultTransferOptions as the starting point; the zero value disables carryover.
type TransferOptions struct {
	NewTip         TipPolicy
	AirGap         float64
	Carryover      bool
	Curve          func(float64) float64
	DisposalVolume *float64
	MixBefore      *MixSpec
	MixAfter       *MixSpec
	DropTip        DropTipStrategy
	BlowOut        BlowOutStrategy
	TouchTip       TouchTipStrategy
}

// DefaultTransferOptions returns ONCE tips, carryover on and a linear curve.
func DefaultTransferOptions() TransferOptions {
	return TransferOptions{
		NewTip:    TipOnce,
		Carryover: true,
		Curve:     func(x float64) float64 { return x },
	}
}

// TransferRequest is a compound liquid move to be compiled into a Plan.
type TransferRequest struct {
	Mode    TransferMode
	Volume  Volume
	Sources []Well
	Dests   []Well
	Options TransferOptions
}
