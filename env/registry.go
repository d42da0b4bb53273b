package env

import (
	"fmt"
	"sort"
)

type entry struct {
	build    func() (Environment, error)
	// Most distinct next states a single action can lead to
	outcomes int
}

var registry = map[string]entry{
	"bandit": {
		build: func() (Environment, error) {
			return NewBernoulliBandit([]float64{0.2, 0.5, 0.8}, true), nil
		},
		outcomes: 1,
	},
	"coin": {
		build: func() (Environment, error) {
			return NewCoin([]Outcome{
				{Observation: "heads", Probability: 0.6, Reward: 1},
				{Observation: "tails", Probability: 0.4, Reward: 0},
			}, false)
		},
		outcomes: 2,
	},
	"windy-grid": {
		build: func() (Environment, error) {
			return NewWindyGrid(), nil
		},
		outcomes: 3,
	},
}

// Names lists the reference environments known to Make.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Make builds a seeded reference environment by name.
func Make(name string, seed uint64) (Environment, error) {
	entry, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q (known: %v)", name, Names())
	}
	e, err := entry.build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", name, err)
	}
	e.Seed(seed)
	return e, nil
}

// Outcomes is the number of next-state slots a planner needs for the named
// environment, or 0 when the name is unknown.
func Outcomes(name string) int {
	return registry[name].outcomes
}
