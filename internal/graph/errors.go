package graph

import (
	"errors"
	"fmt"
)

// Graph construction errors, reported by Compile
var (
	ErrDuplicateStep   = errors.New("duplicate step")
	ErrInvalidStep     = errors.New("invalid step")
	ErrUnknownStep     = errors.New("unknown step")
	ErrAmbiguousEdge   = errors.New("ambiguous edge")
	ErrIncompleteGraph = errors.New("incomplete graph")
)

// Run errors
var (
	ErrRoutingKey = errors.New("routing key not in outcomes")
	ErrStepLimit  = errors.New("step limit exceeded")
)

// StepError wraps an error returned by a step, aborting the run.
type StepError struct {
	Step  string
	RunID string
	Err   error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

// Unwrap enables errors.Is and errors.As on the step's own error.
func (e *StepError) Unwrap() error {
	return e.Err
}
