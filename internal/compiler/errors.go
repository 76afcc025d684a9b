package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/aliquot/pkg/domain"
)

// ValidationError represents a single problem in a protocol document.
type ValidationError struct {
	Path   string // e.g. "commands[2].params.well"
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Unwrap lets callers match every document problem as an invalid argument.
func (e *ValidationError) Unwrap() error { return domain.ErrInvalidArgument }

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}

// Collector accumulates validation errors with their paths.
type Collector struct {
	errs []error
}

// Addf records a problem at path.
func (c *Collector) Addf(path, format string, args ...any) {
	c.errs = append(c.errs, &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)})
}

// Err returns nil when nothing was recorded, otherwise an *AggregateError.
func (c *Collector) Err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: c.errs}
}
