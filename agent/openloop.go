package agent

import (
	"context"
	"fmt"

	"gbop/env"
	"gbop/experiments/metrics"
)

type openLoopAgent struct {
	planner Planner
	pending []env.Action
}

// NewOpenLoopAgent returns an agent that plays a whole plan before planning
// again, regardless of the observations met along the way.
func NewOpenLoopAgent(planner Planner) Agent {
	return &openLoopAgent{planner: planner}
}

func (a *openLoopAgent) Act(ctx context.Context, e env.Environment, obs env.Observation) (env.Action, metrics.SearchMetric, error) {
	var metric metrics.SearchMetric
	if len(a.pending) == 0 {
		plan, err := a.planner.Plan(ctx, e, obs)
		if err != nil {
			return 0, metric, err
		}
		if len(plan.Actions) == 0 {
			return 0, plan.Metric, fmt.Errorf("empty plan from %q", env.Key(obs))
		}
		a.pending = plan.Actions
		metric = plan.Metric
	}
	action := a.pending[0]
	a.pending = a.pending[1:]
	return action, metric, nil
}

func (a *openLoopAgent) Reset() {
	a.pending = nil
	a.planner.Reset()
}
