package env

import "fmt"

// Bandit is a single-state environment with one arm per action.
type Bandit struct {
	// Means holds each arm's reward, or its success probability when Bernoulli
	Means     []float64
	Bernoulli bool
	// Terminal ends the episode after every pull
	Terminal bool
	random   random
	pulls    int
}

func NewBandit(means []float64, terminal bool) *Bandit {
	return &Bandit{Means: means, Terminal: terminal, random: newRandom(0)}
}

func NewBernoulliBandit(means []float64, terminal bool) *Bandit {
	b := NewBandit(means, terminal)
	b.Bernoulli = true
	return b
}

func (b *Bandit) Clone() Environment {
	means := make([]float64, len(b.Means))
	copy(means, b.Means)
	return &Bandit{
		Means:     means,
		Bernoulli: b.Bernoulli,
		Terminal:  b.Terminal,
		random:    b.random.clone(),
		pulls:     b.pulls,
	}
}

func (b *Bandit) Seed(seed uint64) {
	b.random.seed(seed)
}

func (b *Bandit) ActionSpaceSize() int {
	return len(b.Means)
}

func (b *Bandit) Observation() Observation {
	return "bandit"
}

func (b *Bandit) Step(action Action) (Transition, error) {
	if action < 0 || int(action) >= len(b.Means) {
		return Transition{}, fmt.Errorf("bandit has no arm %d", action)
	}
	b.pulls++
	reward := b.Means[action]
	if b.Bernoulli {
		reward = 0
		if b.random.rng.Float64() < b.Means[action] {
			reward = 1
		}
	}
	return Transition{
		Observation: b.Observation(),
		Reward:      reward,
		Done:        b.Terminal,
		Info:        map[string]any{"pulls": b.pulls},
	}, nil
}
