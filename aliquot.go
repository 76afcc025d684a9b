package aliquot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/aliquot/internal/compiler"
	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/internal/validator"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/ports"
	"github.com/aretw0/aliquot/pkg/registry"
	"github.com/aretw0/aliquot/pkg/runner"
)

// Robot is the high-level entry point: one session on one piece of hardware
// plus the runner that drives protocols through it.
type Robot struct {
	session *runtime.Session
	runner  *runner.Runner

	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	store       ports.TipStore
	modules     ports.ModuleController
	speed       float64
	registry    *registry.Registry
	interceptor runner.CommandInterceptor
	skipChecks  bool
}

// Option defines a functional option for configuring the Robot.
type Option func(*Robot)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Robot) {
		r.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Robot) {
		r.logger = logger
	}
}

// WithTipStore shares tip tracking, e.g. through Redis.
func WithTipStore(store ports.TipStore) Option {
	return func(r *Robot) {
		r.store = store
	}
}

// WithModuleController drives hardware modules. When the hardware itself
// implements ports.ModuleController it is used by default.
func WithModuleController(mc ports.ModuleController) Option {
	return func(r *Robot) {
		r.modules = mc
	}
}

// WithDefaultSpeed sets the gantry speed in mm/s.
func WithDefaultSpeed(mmPerSec float64) Option {
	return func(r *Robot) {
		r.speed = mmPerSec
	}
}

// WithRegistry replaces the builtin command set.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Robot) {
		r.registry = reg
	}
}

// WithInterceptor vets every protocol step before it runs.
func WithInterceptor(i runner.CommandInterceptor) Option {
	return func(r *Robot) {
		r.interceptor = i
	}
}

// WithoutValidation skips the reference checks Run performs before loading.
func WithoutValidation() Option {
	return func(r *Robot) {
		r.skipChecks = true
	}
}

// New creates a robot on the given hardware.
func New(hw ports.Hardware, opts ...Option) (*Robot, error) {
	r := &Robot{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.modules == nil {
		if mc, ok := hw.(ports.ModuleController); ok {
			r.modules = mc
		}
	}

	sessionOpts := []runtime.Option{
		runtime.WithLifecycleHooks(r.hooks),
		runtime.WithLogger(r.logger),
	}
	if r.store != nil {
		sessionOpts = append(sessionOpts, runtime.WithTipStore(r.store))
	}
	if r.modules != nil {
		sessionOpts = append(sessionOpts, runtime.WithModuleController(r.modules))
	}
	if r.speed != 0 {
		sessionOpts = append(sessionOpts, runtime.WithDefaultSpeed(r.speed))
	}
	s, err := runtime.NewSession(hw, sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	r.session = s

	runnerOpts := []runner.Option{runner.WithLogger(r.logger)}
	if r.registry != nil {
		runnerOpts = append(runnerOpts, runner.WithRegistry(r.registry))
	}
	if r.interceptor != nil {
		runnerOpts = append(runnerOpts, runner.WithInterceptor(r.interceptor))
	}
	r.runner = runner.NewRunner(runnerOpts...)
	return r, nil
}

// Session exposes the underlying session for direct instrument control.
func (r *Robot) Session() *runtime.Session {
	return r.session
}

// Commands lists the command names protocols may use.
func (r *Robot) Commands() []string {
	return r.runner.Registry.Names()
}

// Validate checks a protocol's references against this robot's commands.
func (r *Robot) Validate(p *domain.Protocol) error {
	return validator.Validate(p, validator.WithCommands(r.Commands()))
}

// Run validates the protocol, loads its deck and runs its commands.
func (r *Robot) Run(ctx context.Context, p *domain.Protocol) (*runner.Report, error) {
	if !r.skipChecks {
		if err := r.Validate(p); err != nil {
			return nil, fmt.Errorf("invalid protocol: %w", err)
		}
	}
	return r.runner.Run(ctx, r.session, p)
}

// RunFile parses a YAML or JSON protocol document and runs it.
func (r *Robot) RunFile(ctx context.Context, path string) (*runner.Report, error) {
	p, err := compiler.NewParser().ParseFile(path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, p)
}

// Execute runs commands against the already loaded deck.
func (r *Robot) Execute(ctx context.Context, commands ...domain.CommandSpec) (*runner.Report, error) {
	return r.runner.Execute(ctx, r.session, commands)
}

// Home homes every axis.
func (r *Robot) Home(ctx context.Context) error {
	return r.session.Home(ctx)
}
