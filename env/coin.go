package env

import (
	"errors"
	"fmt"
	"math"
)

// Outcome is one possible result of tossing a Coin.
type Outcome struct {
	Observation string
	Probability float64
	Reward      float64
}

// Coin has a single action whose next state is drawn from Outcomes.
type Coin struct {
	Outcomes []Outcome
	Terminal bool
	random   random
	current  string
}

func NewCoin(outcomes []Outcome, terminal bool) (*Coin, error) {
	if len(outcomes) == 0 {
		return nil, errors.New("coin needs at least one outcome")
	}
	total := 0.0
	for _, o := range outcomes {
		if o.Probability < 0 {
			return nil, fmt.Errorf("outcome %q has negative probability", o.Observation)
		}
		total += o.Probability
	}
	if math.Abs(total-1) > 1e-9 {
		return nil, fmt.Errorf("outcome probabilities sum to %v", total)
	}
	return &Coin{Outcomes: outcomes, Terminal: terminal, random: newRandom(0), current: "start"}, nil
}

func (c *Coin) Clone() Environment {
	outcomes := make([]Outcome, len(c.Outcomes))
	copy(outcomes, c.Outcomes)
	return &Coin{Outcomes: outcomes, Terminal: c.Terminal, random: c.random.clone(), current: c.current}
}

func (c *Coin) Seed(seed uint64) {
	c.random.seed(seed)
}

func (c *Coin) LegalActions() []Action {
	return []Action{0}
}

func (c *Coin) Observation() Observation {
	return c.current
}

func (c *Coin) Step(action Action) (Transition, error) {
	if action != 0 {
		return Transition{}, fmt.Errorf("coin has no action %d", action)
	}
	probabilities := make([]float64, len(c.Outcomes))
	for i, o := range c.Outcomes {
		probabilities[i] = o.Probability
	}
	outcome := c.Outcomes[c.random.pick(probabilities)]
	c.current = outcome.Observation
	return Transition{Observation: outcome.Observation, Reward: outcome.Reward, Done: c.Terminal}, nil
}
