package domain

import (
	"fmt"
	"strings"
)

// Method names a primitive instrument operation.
type Method string

const (
	MethodPickUpTip Method = "pick_up_tip"
	MethodDropTip   Method = "drop_tip"
	MethodReturnTip Method = "return_tip"
	MethodAspirate  Method = "aspirate"
	MethodDispense  Method = "dispense"
	MethodMix       Method = "mix"
	MethodBlowOut   Method = "blow_out"
	MethodTouchTip  Method = "touch_tip"
	MethodAirGap    Method = "air_gap"
)

// Call is one primitive operation in a Plan. Only the fields that the
// method takes are set.
type Call struct {
	Method      Method
	Volume      float64
	Target      Target
	Rate        float64
	Repetitions int
	Height      float64
}

// Args renders the call's arguments as a map for events and printing.
func (c Call) Args() map[string]any {
	args := map[string]any{}
	switch c.Method {
	case MethodAspirate, MethodDispense:
		args["volume"] = c.Volume
		args["rate"] = c.Rate
	case MethodMix:
		args["repetitions"] = c.Repetitions
		args["volume"] = c.Volume
		args["rate"] = c.Rate
	case MethodAirGap:
		args["volume"] = c.Volume
		args["height"] = c.Height
	}
	if !c.Target.IsZero() {
		args["location"] = c.Target.String()
	}
	return args
}

func (c Call) String() string {
	var b strings.Builder
	b.WriteString(string(c.Method))
	switch c.Method {
	case MethodAspirate, MethodDispense:
		fmt.Fprintf(&b, " %.2f", c.Volume)
	case MethodMix:
		fmt.Fprintf(&b, " %dx%.2f", c.Repetitions, c.Volume)
	case MethodAirGap:
		fmt.Fprintf(&b, " %.2f +%.1f", c.Volume, c.Height)
	}
	if !c.Target.IsZero() {
		b.WriteString(" @ ")
		b.WriteString(c.Target.String())
	}
	return b.String()
}

// Plan is an ordered sequence of primitive calls, consumed once.
type Plan []Call

// Count returns how many calls use the method.
func (p Plan) Count(m Method) int {
	n := 0
	for _, c := range p {
		if c.Method == m {
			n++
		}
	}
	return n
}

// Volumes returns the volumes of every call of the method, in order.
func (p Plan) Volumes(m Method) []float64 {
	var out []float64
	for _, c := range p {
		if c.Method == m {
			out = append(out, c.Volume)
		}
	}
	return out
}
