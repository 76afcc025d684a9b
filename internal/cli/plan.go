package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aretw0/aliquot"
	"github.com/aretw0/aliquot/internal/compiler"
	"github.com/aretw0/aliquot/internal/presentation/graph"
	"github.com/aretw0/aliquot/pkg/domain"
)

// PlanOptions configures the plan command.
type PlanOptions struct {
	Options
	ProtocolPath string
	Primitives   bool // include the primitives nested in transfers
	JSON         bool
	Mermaid      bool // print the liquid flow as a Mermaid flowchart
}

// Plan dry-runs a protocol on simulated hardware and prints every command
// the robot would perform, in order.
func Plan(ctx context.Context, opts PlanOptions, out, stderr io.Writer) error {
	_, logger, err := loadConfig(opts.Options, stderr)
	if err != nil {
		return err
	}
	proto, err := compiler.NewParser().ParseFile(opts.ProtocolPath)
	if err != nil {
		return err
	}

	rec := &recorder{primitives: opts.Primitives}
	sim, err := aliquot.Simulate(ctx, proto,
		aliquot.WithLogger(logger),
		aliquot.WithLifecycleHooks(domain.MergeHooks(hooks(opts.Options, logger), rec.hooks())),
	)
	if sim == nil {
		return err
	}
	if opts.Mermaid {
		overlay := &graph.Overlay{VisitedWells: rec.wells}
		if err != nil && len(rec.wells) > 0 {
			overlay.CurrentWell = rec.wells[len(rec.wells)-1]
		}
		fmt.Fprint(out, graph.GenerateMermaid(proto, overlay))
		return err
	}
	if opts.JSON {
		if perr := printJSON(out, rec.events); perr != nil {
			return perr
		}
		return err
	}
	for i, e := range rec.events {
		fmt.Fprintf(out, "%3d  %s\n", i+1, describe(e))
	}
	return err
}

// recorder keeps completed commands. Unless primitives is set, only
// top-level commands are kept, not the steps nested in a transfer. Wells
// touched by aspirate and dispense are kept at every depth.
type recorder struct {
	primitives bool
	depth      int
	events     []domain.CommandEvent
	wells      []string
}

func (r *recorder) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCommandBefore: func(context.Context, *domain.CommandEvent) {
			r.depth++
		},
		OnCommandAfter: func(_ context.Context, e *domain.CommandEvent) {
			r.depth--
			if e.Command == "aspirate" || e.Command == "dispense" {
				if w, ok := e.Args["well"].(string); ok {
					r.wells = append(r.wells, w)
				}
			}
			if r.primitives || r.depth == 0 {
				r.events = append(r.events, *e)
			}
		},
	}
}

func describe(e domain.CommandEvent) string {
	var b strings.Builder
	b.WriteString(e.Command)
	if e.Mount != "" {
		fmt.Fprintf(&b, " [%s]", e.Mount)
	}
	keys := make([]string, 0, len(e.Args))
	for k := range e.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Args[k])
	}
	return b.String()
}
