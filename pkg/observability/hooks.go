package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/aliquot/pkg/domain"
)

// LoggingHooks logs every command event at Debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnCommandBefore: func(ctx context.Context, e *domain.CommandEvent) {
			logger.DebugContext(ctx, "command started", eventAttrs(e)...)
		},
		OnCommandAfter: func(ctx context.Context, e *domain.CommandEvent) {
			logger.DebugContext(ctx, "command finished", eventAttrs(e)...)
		},
	}
}

func eventAttrs(e *domain.CommandEvent) []any {
	attrs := []any{"command", e.Command}
	if e.Mount != "" {
		attrs = append(attrs, "mount", string(e.Mount))
	}
	if len(e.Args) > 0 {
		attrs = append(attrs, "args", e.Args)
	}
	return attrs
}
