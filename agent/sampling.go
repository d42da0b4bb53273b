package agent

import (
	"context"
	"fmt"
	"math"

	"gbop/env"
	"gbop/experiments/metrics"
	"gbop/searcher"

	"golang.org/x/exp/rand"
)

type samplingAgent struct {
	planner     Planner
	temperature float64
	rng         *rand.Rand
}

// NewSamplingAgent returns an exploring agent that samples the root action in
// proportion to visits^(1/temperature) instead of playing the plan.
func NewSamplingAgent(planner Planner, temperature float64, seed uint64) (Agent, error) {
	if temperature <= 0 {
		return nil, fmt.Errorf("temperature must be positive, got %v", temperature)
	}
	return samplingAgent{planner: planner, temperature: temperature, rng: rand.New(rand.NewSource(seed))}, nil
}

func (a samplingAgent) Act(ctx context.Context, e env.Environment, obs env.Observation) (env.Action, metrics.SearchMetric, error) {
	plan, err := a.planner.Plan(ctx, e, obs)
	if err != nil {
		return 0, metrics.SearchMetric{}, err
	}
	if len(plan.Values) == 0 {
		return 0, plan.Metric, fmt.Errorf("no root actions from %q", env.Key(obs))
	}
	policy := adjustTemperature(plan.Values, a.temperature)
	return plan.Values[sample(policy, a.rng)].Action, plan.Metric, nil
}

func (a samplingAgent) Reset() {
	a.planner.Reset()
}

func adjustTemperature(values []searcher.ActionValue, temperature float64) []float64 {
	// Compute temperature-adjusted action probabilities
	exponent := 1.0 / temperature
	sum := 0.0
	policy := make([]float64, len(values))
	for i, value := range values {
		policy[i] = math.Pow(float64(value.Visits), exponent)
		sum += policy[i]
	}
	if sum == 0 { // No action visited
		for i := range policy {
			policy[i] = 1 / float64(len(policy))
		}
		return policy
	}
	// Normalize
	for i := range policy {
		policy[i] /= sum
	}
	return policy
}

func sample(policy []float64, rng *rand.Rand) int {
	sampled := rng.Float64()
	cumulative := 0.0
	for i, prob := range policy {
		cumulative += prob
		if sampled < cumulative {
			return i
		}
	}
	return len(policy) - 1 // Fallback in case of rounding errors
}
