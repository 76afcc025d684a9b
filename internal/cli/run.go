package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/aliquot"
	"github.com/aretw0/aliquot/internal/compiler"
	"github.com/aretw0/aliquot/pkg/runner"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	Options
	ProtocolPath string
	Confirm      bool     // ask before every step
	Deny         []string // commands to refuse
	JSON         bool     // print the report as JSON
}

// IO bundles the streams a command talks to.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Run executes a protocol file on the configured robot. SIGINT stops the
// run between steps.
func Run(opts RunOptions, stdio IO) error {
	cfg, logger, err := loadConfig(opts.Options, stdio.Err)
	if err != nil {
		return err
	}
	proto, err := compiler.NewParser().ParseFile(opts.ProtocolPath)
	if err != nil {
		return err
	}

	sm := runner.NewSignalManager()
	defer sm.Stop()
	ctx := sm.Context()

	b, err := Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	hw, mc, err := b.Hardware()
	if err != nil {
		return err
	}
	robotOpts := []aliquot.Option{
		aliquot.WithLogger(logger),
		aliquot.WithLifecycleHooks(hooks(opts.Options, logger)),
		aliquot.WithTipStore(b.Store),
		aliquot.WithDefaultSpeed(cfg.DefaultSpeed),
	}
	if mc != nil {
		robotOpts = append(robotOpts, aliquot.WithModuleController(mc))
	}
	if i := interceptor(opts, stdio); i != nil {
		robotOpts = append(robotOpts, aliquot.WithInterceptor(i))
	}
	robot, err := aliquot.New(hw, robotOpts...)
	if err != nil {
		return err
	}

	report, err := robot.Run(ctx, proto)
	if err != nil {
		sm.CheckRace()
		if sm.Interrupted() {
			err = fmt.Errorf("run interrupted: %w", context.Canceled)
		}
	}
	if report != nil {
		if opts.JSON {
			if perr := printJSON(stdio.Out, report); perr != nil {
				return perr
			}
		} else {
			printReport(stdio.Out, report)
		}
	}
	return err
}

func interceptor(opts RunOptions, stdio IO) runner.CommandInterceptor {
	var chain []runner.CommandInterceptor
	if len(opts.Deny) > 0 {
		chain = append(chain, runner.DenyCommands(opts.Deny...))
	}
	if opts.Confirm {
		chain = append(chain, runner.ConfirmationMiddleware(stdio.In, stdio.Out))
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return runner.MultiInterceptor(chain...)
}

func printReport(w io.Writer, r *runner.Report) {
	name := r.Protocol
	if name == "" {
		name = "protocol"
	}
	fmt.Fprintf(w, "%s: %d/%d steps in %s (run %s)\n",
		name, r.Completed, r.Steps, r.Finished.Sub(r.Started).Round(1e6), r.RunID)
}
