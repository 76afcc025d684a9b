package runner

import (
	"log/slog"

	"github.com/aretw0/aliquot/pkg/registry"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithRegistry replaces the builtin command set.
// Use RegisterBuiltins to start from the builtins and add custom commands.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Runner) {
		r.Registry = reg
	}
}

// WithInterceptor configures the per-step middleware.
func WithInterceptor(interceptor CommandInterceptor) Option {
	return func(r *Runner) {
		r.Interceptor = interceptor
	}
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.RunID = id
	}
}
