package transfer

import (
	"fmt"

	"github.com/aretw0/aliquot/pkg/domain"
	"gonum.org/v1/gonum/floats"
)

const epsilon = 1e-9

type pair struct {
	source domain.Well
	dest   domain.Well
}

// expandPairs lines sources up with destinations for the mode.
func expandPairs(mode domain.TransferMode, sources, dests []domain.Well) ([]pair, error) {
	if len(sources) == 0 || len(dests) == 0 {
		return nil, fmt.Errorf("%w: %s needs at least one source and one destination", domain.ErrInvalidArgument, mode)
	}
	switch mode {
	case domain.ModeDistribute:
		if len(sources) != 1 {
			return nil, fmt.Errorf("%w: distribute takes one source, got %d", domain.ErrInvalidArgument, len(sources))
		}
	case domain.ModeConsolidate:
		if len(dests) != 1 {
			return nil, fmt.Errorf("%w: consolidate takes one destination, got %d", domain.ErrInvalidArgument, len(dests))
		}
	case domain.ModeTransfer:
	default:
		return nil, fmt.Errorf("%w: unknown transfer mode %s", domain.ErrInvalidArgument, mode)
	}

	n := max(len(sources), len(dests))
	if n%len(sources) != 0 || n%len(dests) != 0 {
		return nil, fmt.Errorf("%w: cannot pair %d sources with %d destinations",
			domain.ErrInvalidArgument, len(sources), len(dests))
	}
	pairs := make([]pair, n)
	for i := range pairs {
		pairs[i] = pair{source: sources[i%len(sources)], dest: dests[i%len(dests)]}
	}
	return pairs, nil
}

// resolveVolumes returns one volume per pair.
func resolveVolumes(v domain.Volume, n int, curve func(float64) float64) ([]float64, error) {
	var out []float64
	switch {
	case v.Gradient != nil:
		out = gradient(v.Gradient.Start, v.Gradient.End, n, curve)
	case len(v.Values) == 1:
		out = make([]float64, n)
		for i := range out {
			out[i] = v.Values[0]
		}
	case len(v.Values) == n:
		out = append([]float64(nil), v.Values...)
	default:
		return nil, fmt.Errorf("%w: %d volumes for %d transfers", domain.ErrInvalidArgument, len(v.Values), n)
	}
	for i, vol := range out {
		if vol < 0 {
			return nil, fmt.Errorf("%w: volume %d is negative (%v)", domain.ErrInvalidArgument, i, vol)
		}
	}
	return out, nil
}

// gradient maps n evenly spaced points of [0, 1] through curve onto [start, end].
func gradient(start, end float64, n int, curve func(float64) float64) []float64 {
	if n == 1 {
		return []float64{start}
	}
	xs := floats.Span(make([]float64, n), 0, 1)
	for i, x := range xs {
		xs[i] = start + curve(x)*(end-start)
	}
	return xs
}

// split breaks v into passes no larger than limit. The last two passes of
// an uneven split share the remainder equally.
func split(v, limit float64, carryover bool) ([]float64, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: no usable tip capacity (%.2f µL)", domain.ErrInvalidArgument, limit)
	}
	if v <= limit+epsilon {
		return []float64{v}, nil
	}
	if !carryover {
		return nil, fmt.Errorf("%w: volume %.2f exceeds capacity %.2f and carryover is disabled",
			domain.ErrInvalidArgument, v, limit)
	}
	var out []float64
	for v > 2*limit+epsilon {
		out = append(out, limit)
		v -= limit
	}
	if v > limit+epsilon {
		return append(out, v/2, v/2), nil
	}
	return append(out, v), nil
}
