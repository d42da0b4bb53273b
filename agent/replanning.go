package agent

import (
	"context"
	"fmt"

	"gbop/env"
	"gbop/experiments/metrics"
)

type replanningAgent struct {
	planner Planner
}

// NewReplanningAgent returns an agent that plans again at every step
// and plays the first action of the plan.
func NewReplanningAgent(planner Planner) Agent {
	return replanningAgent{planner: planner}
}

func (a replanningAgent) Act(ctx context.Context, e env.Environment, obs env.Observation) (env.Action, metrics.SearchMetric, error) {
	plan, err := a.planner.Plan(ctx, e, obs)
	if err != nil {
		return 0, metrics.SearchMetric{}, err
	}
	if len(plan.Actions) == 0 {
		return 0, plan.Metric, fmt.Errorf("empty plan from %q", env.Key(obs))
	}
	return plan.Actions[0], plan.Metric, nil
}

func (a replanningAgent) Reset() {
	a.planner.Reset()
}
