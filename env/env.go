package env

import (
	"errors"
	"fmt"
)

// ErrNoActions is returned for environments that expose neither legal actions
// nor a discrete action space.
var ErrNoActions = errors.New("environment does not enumerate its actions")

// Action indexes a discrete action.
type Action int

// Observation is an opaque state identifier. Observations with the same Key
// are the same state to the planner.
type Observation any

// Transition is the outcome of one environment step.
type Transition struct {
	Observation Observation
	Reward      float64 // assumed normalised to [0, 1]
	Done        bool
	Info        map[string]any
}

// Environment is a simulator the planner can clone and step.
type Environment interface {
	// Clone returns an independent deep copy of the current simulated state
	Clone() Environment
	Seed(seed uint64)
	Step(action Action) (Transition, error)
}

// LegalActioner lists the actions available in the current state.
type LegalActioner interface {
	LegalActions() []Action
}

// DiscreteSpace exposes a fixed action range [0, n).
type DiscreteSpace interface {
	ActionSpaceSize() int
}

// Actions enumerates the actions available in e, preferring explicit legal
// actions over the discrete action range.
func Actions(e Environment) ([]Action, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil environment", ErrNoActions)
	}
	if la, ok := e.(LegalActioner); ok {
		return la.LegalActions(), nil
	}
	if ds, ok := e.(DiscreteSpace); ok {
		actions := make([]Action, ds.ActionSpaceSize())
		for i := range actions {
			actions[i] = Action(i)
		}
		return actions, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNoActions, e)
}

// ActionCount is the size of the action space, falling back to the number of
// legal actions in the current state.
func ActionCount(e Environment) (int, error) {
	if ds, ok := e.(DiscreteSpace); ok {
		return ds.ActionSpaceSize(), nil
	}
	actions, err := Actions(e)
	if err != nil {
		return 0, err
	}
	return len(actions), nil
}

// Key renders an observation into the identity used by the planner's node table.
func Key(o Observation) string {
	return fmt.Sprint(o)
}

// Observer exposes the observation of the current state.
type Observer interface {
	Observation() Observation
}

// Current returns the observation of e's current state.
func Current(e Environment) (Observation, error) {
	o, ok := e.(Observer)
	if !ok {
		return nil, fmt.Errorf("environment %T does not expose its observation", e)
	}
	return o.Observation(), nil
}
