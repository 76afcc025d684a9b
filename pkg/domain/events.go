package domain

import (
	"context"
	"time"
)

// EventPhase marks an event as issued before or after an operation.
type EventPhase string

const (
	PhaseBefore EventPhase = "before"
	PhaseAfter  EventPhase = "after"
)

// CommandEvent describes one public operation. A "before" event is published
// ahead of any hardware call; the matching "after" event only on success.
type CommandEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Phase     EventPhase     `json:"phase"`
	Command   string         `json:"command"`
	Mount     Mount          `json:"mount,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
}

// LifecycleHooks defines callbacks for robot observability.
type LifecycleHooks struct {
	OnCommandBefore func(context.Context, *CommandEvent)
	OnCommandAfter  func(context.Context, *CommandEvent)
}

// MergeHooks fans events out to every set of hooks in order.
func MergeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnCommandBefore: func(ctx context.Context, e *CommandEvent) {
			for _, h := range hooks {
				if h.OnCommandBefore != nil {
					h.OnCommandBefore(ctx, e)
				}
			}
		},
		OnCommandAfter: func(ctx context.Context, e *CommandEvent) {
			for _, h := range hooks {
				if h.OnCommandAfter != nil {
					h.OnCommandAfter(ctx, e)
				}
			}
		},
	}
}
