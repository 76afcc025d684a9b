package aliquot

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/aliquot/pkg/adapters/simulator"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/runner"
)

// DefaultSimulatedPipette is attached to mounts whose protocol entry names
// no pipette.
const DefaultSimulatedPipette = "p300_single_v1"

// Simulation is the outcome of a dry run.
type Simulation struct {
	Report *runner.Report
	Calls  []simulator.Call
	Events []domain.CommandEvent
}

// Simulate runs a protocol against simulated hardware with the pipettes the
// protocol asks for. Options apply as for New; hooks passed with
// WithLifecycleHooks still fire. The partial simulation is returned along
// with any run error.
func Simulate(ctx context.Context, p *domain.Protocol, opts ...Option) (*Simulation, error) {
	simOpts := make([]simulator.Option, 0, len(p.Instruments))
	for _, inst := range p.Instruments {
		mount, err := domain.ParseMount(inst.Mount)
		if err != nil {
			return nil, err
		}
		name := inst.Name
		if name == "" {
			name = DefaultSimulatedPipette
		}
		simOpts = append(simOpts, simulator.WithInstrument(mount, name))
	}
	sim, err := simulator.New(simOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator: %w", err)
	}

	out := &Simulation{}
	var mu sync.Mutex
	record := domain.LifecycleHooks{
		OnCommandAfter: func(_ context.Context, e *domain.CommandEvent) {
			mu.Lock()
			defer mu.Unlock()
			out.Events = append(out.Events, *e)
		},
	}

	// Merge after user options so caller hooks are kept.
	probe := &Robot{}
	for _, opt := range opts {
		opt(probe)
	}
	opts = append(opts, WithLifecycleHooks(domain.MergeHooks(probe.hooks, record)))

	robot, err := New(sim, opts...)
	if err != nil {
		return nil, err
	}
	out.Report, err = robot.Run(ctx, p)
	out.Calls = sim.Calls()
	return out, err
}
