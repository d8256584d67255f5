package pipeline

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrMultipleDispatch indicates a chain already holds a dispatch stage
	ErrMultipleDispatch = errors.New("pipeline already contains a dispatch stage")

	// ErrPipelineFrozen indicates Chain was called after the pipeline ran
	ErrPipelineFrozen = errors.New("pipeline is frozen")

	// ErrPipelineSpent indicates Run was called on an already-run pipeline
	ErrPipelineSpent = errors.New("pipeline already ran")
)

// MultipleDispatchError reports the second dispatch stage chained onto a
// pipeline that already has one.
type MultipleDispatchError struct {
	// Existing is the plugin name of the dispatch stage already chained
	Existing string

	// Added is the plugin name of the rejected dispatch stage
	Added string
}

// Error implements the error interface
func (e *MultipleDispatchError) Error() string {
	return fmt.Sprintf("cannot chain dispatch stage %q: pipeline already dispatches via %q", e.Added, e.Existing)
}

// Is reports whether target matches the multiple-dispatch sentinel
func (e *MultipleDispatchError) Is(target error) bool {
	return target == ErrMultipleDispatch
}
