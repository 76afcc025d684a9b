package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/aliquot/internal/logging"
	"github.com/aretw0/aliquot/internal/runtime"
	"github.com/aretw0/aliquot/pkg/domain"
	"github.com/aretw0/aliquot/pkg/registry"
	"github.com/google/uuid"
)

// ErrDenied is returned when an interceptor blocks a step.
var ErrDenied = errors.New("step denied")

// StepError reports which protocol step stopped a run.
type StepError struct {
	Index   int // 1-based
	Command string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Command, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Report summarizes a run.
type Report struct {
	RunID     string    `json:"run_id"`
	Protocol  string    `json:"protocol,omitempty"`
	Steps     int       `json:"steps"`
	Completed int       `json:"completed"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// Runner executes protocol commands against a session, one at a time.
type Runner struct {
	Registry    *registry.Registry
	Interceptor CommandInterceptor
	Logger      *slog.Logger
	RunID       string
}

// NewRunner creates a runner with the builtin commands registered.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Registry == nil {
		r.Registry = registry.NewRegistry()
		RegisterBuiltins(r.Registry)
	}
	return r
}

// Run loads the protocol's deck into s and executes its commands in order.
// The first failing step stops the run; nothing already done is undone.
func (r *Runner) Run(ctx context.Context, s *runtime.Session, p *domain.Protocol) (*Report, error) {
	if err := Load(ctx, s, p); err != nil {
		return nil, fmt.Errorf("failed to load protocol: %w", err)
	}
	report, err := r.Execute(ctx, s, p.Commands)
	if report != nil {
		report.Protocol = p.Metadata.Name
	}
	return report, err
}

// Execute runs commands against an already loaded session.
func (r *Runner) Execute(ctx context.Context, s *runtime.Session, commands []domain.CommandSpec) (*Report, error) {
	report := &Report{
		RunID:   r.RunID,
		Steps:   len(commands),
		Started: time.Now(),
	}
	if report.RunID == "" {
		report.RunID = uuid.NewString()
	}
	logger := r.Logger.With("run_id", report.RunID)
	logger.Info("run started", "steps", len(commands))

	for i, cmd := range commands {
		step := Step{Index: i + 1, Command: cmd.Command, Params: cmd.Params}
		if err := r.step(ctx, s, step); err != nil {
			report.Finished = time.Now()
			logger.Error("run stopped", "step", step.Index, "command", step.Command, "err", err)
			return report, &StepError{Index: step.Index, Command: step.Command, Err: err}
		}
		report.Completed++
		logger.Debug("step done", "step", step.Index, "command", step.Command)
	}

	report.Finished = time.Now()
	logger.Info("run finished", "steps", report.Completed, "elapsed", report.Finished.Sub(report.Started))
	return report, nil
}

func (r *Runner) step(ctx context.Context, s *runtime.Session, step Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Interceptor != nil {
		allowed, err := r.Interceptor(ctx, step)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrDenied
		}
	}
	return r.Registry.Execute(ctx, s, step.Command, step.Params)
}
