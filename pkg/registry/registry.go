// Package registry maps protocol command names to their implementations.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/aliquot/internal/runtime"
)

// ErrCommandNotFound is returned when no command is registered under a name.
var ErrCommandNotFound = errors.New("command not found")

// CommandFunc defines the signature for a command implementation.
// It receives the session to act on and the raw params of the protocol step.
type CommandFunc func(ctx context.Context, s *runtime.Session, params map[string]any) error

// Registry manages the available commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]CommandFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]CommandFunc),
	}
}

// Register adds a command to the registry.
// If a command with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = fn
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[name]
	return ok
}

// Names lists the registered commands, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute looks up a command by name and runs it against the session.
func (r *Registry) Execute(ctx context.Context, s *runtime.Session, name string, params map[string]any) error {
	r.mu.RLock()
	fn, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}

	return fn(ctx, s, params)
}
