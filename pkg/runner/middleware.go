package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Step is a protocol command about to run.
type Step struct {
	Index   int
	Command string
	Params  map[string]any
}

// CommandInterceptor is a middleware that can inspect or block a step.
// It returns true if execution should proceed. A returned error stops the run
// as a system failure; a plain false stops it with ErrDenied.
type CommandInterceptor func(ctx context.Context, step Step) (bool, error)

// MultiInterceptor chains multiple interceptors.
func MultiInterceptor(interceptors ...CommandInterceptor) CommandInterceptor {
	return func(ctx context.Context, step Step) (bool, error) {
		for _, interceptor := range interceptors {
			allowed, err := interceptor(ctx, step)
			if err != nil {
				return false, err
			}
			if !allowed {
				return false, nil
			}
		}
		return true, nil
	}
}

// ConfirmationMiddleware asks on out before every step and reads the answer
// from in. Only "y" or "yes" lets the step run.
func ConfirmationMiddleware(in io.Reader, out io.Writer) CommandInterceptor {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, step Step) (bool, error) {
		if _, err := fmt.Fprintf(out, "step %d: %s %v\nrun? [y/N] ", step.Index, step.Command, step.Params); err != nil {
			return false, err
		}
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		answer, err := SanitizeInput(line)
		if err != nil {
			return false, err
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		return answer == "y" || answer == "yes", nil
	}
}

// DenyCommands blocks the named commands, e.g. to dry-run a protocol
// without pausing the robot.
func DenyCommands(names ...string) CommandInterceptor {
	return func(ctx context.Context, step Step) (bool, error) {
		return !slices.Contains(names, step.Command), nil
	}
}

// AutoApproveMiddleware allows everything.
func AutoApproveMiddleware() CommandInterceptor {
	return func(ctx context.Context, step Step) (bool, error) {
		return true, nil
	}
}
