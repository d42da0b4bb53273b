package searcher

import (
	"errors"
	"fmt"

	"gbop/env"
)

var (
	// ErrConfig reports an invalid or incomplete planner configuration
	ErrConfig = errors.New("invalid planner configuration")
	// ErrUnknownBound reports a confidence-bound scheme other than kullback-leibler
	ErrUnknownBound = fmt.Errorf("%w: unknown upper-bound type", ErrConfig)
	// ErrCapacity reports more distinct next states than a chance node has slots for
	ErrCapacity = errors.New("no more placeholder nodes available")
	// ErrPrecondition reports a caller or internal logic fault
	ErrPrecondition = errors.New("precondition violated")
	// ErrInvalidInput reports bad arguments to the bound math
	ErrInvalidInput = errors.New("invalid input")
)

// CapacityError carries the transition that overflowed a chance node so the
// caller can re-tune max_next_states_count.
type CapacityError struct {
	State       string
	Action      env.Action
	Observation string
	Capacity    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%v: state %q action %d observed %q, but only %d next states are allowed by max_next_states_count",
		ErrCapacity, e.State, e.Action, e.Observation, e.Capacity)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacity
}
